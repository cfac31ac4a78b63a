// Package errs contains the error kinds used across layers for stable error mapping.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch without matching messages.
type Kind string

const (
	KindUnknown    Kind = ""
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindTransient  Kind = "transient"
	KindIntegrity  Kind = "integrity"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

// Common sentinels across repository/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = New(KindNotFound, "not found")

	// ErrVersionConflict indicates an optimistic concurrency failure.
	ErrVersionConflict = New(KindConflict, "version conflict")

	// ErrDuplicate indicates a unique index collision (digest or tx hash).
	ErrDuplicate = New(KindIntegrity, "duplicate key")

	// ErrAlreadyCertified is returned when a certified thesis is certified again
	// with a different transaction or through a fresh anchor request.
	ErrAlreadyCertified = New(KindConflict, "already certified")

	// ErrIllegalTransition is returned for any transition the lifecycle does not allow.
	ErrIllegalTransition = New(KindConflict, "illegal transition")

	// ErrNotCertified is returned when a certificate is requested for a thesis
	// that has no confirmed anchor yet.
	ErrNotCertified = New(KindNotFound, "not certified")

	// ErrUnauthenticated indicates a missing or invalid actor.
	ErrUnauthenticated = New(KindForbidden, "unauthenticated")

	// ErrTimeout is a caller deadline or cancellation that ended the operation.
	ErrTimeout = New(KindTransient, "deadline exceeded")
)

// Error is a tagged error carrying a Kind and a caller-safe reason.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

// New creates a tagged error without a cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap tags err with kind and reason. It returns nil if err is nil.
func Wrap(kind Kind, reason string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Validation builds a validation error with a formatted reason.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Forbidden builds an authorization error carrying the denial reason.
func Forbidden(reason string) error {
	return &Error{Kind: KindForbidden, Reason: reason}
}

// Transient wraps an infrastructure failure that the caller may retry.
func Transient(reason string, err error) error {
	return &Error{Kind: KindTransient, Reason: reason, Err: err}
}

// Integrity builds a consistency error.
func Integrity(reason string, err error) error {
	return &Error{Kind: KindIntegrity, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and reason, so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// KindOf returns the kind of the outermost tagged error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the reason of the outermost tagged error in the chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsRetryable reports whether err is a transient infrastructure error.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// FromContext tags an untagged context cancellation or deadline in err's chain as
// ErrTimeout. Tagged errors and nil pass through unchanged.
func FromContext(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTransient, Reason: ErrTimeout.Reason, Err: err}
	}
	return err
}
