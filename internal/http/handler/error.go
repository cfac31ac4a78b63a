package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"thesiscert/internal/errs"
	"thesiscert/internal/http/middleware"
	"thesiscert/internal/ledger"
	"thesiscert/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTEGRITY_WARNING")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps an error kind to its HTTP status. Reasons of tagged
// errors are caller-safe and passed through; anything untagged is a 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	err = errs.FromContext(err)
	reason := errs.ReasonOf(err)

	switch errs.KindOf(err) {
	case errs.KindValidation:
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", reason)

	case errs.KindForbidden:
		if errors.Is(err, errs.ErrUnauthenticated) {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", reason)
		}
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", reason)

	case errs.KindNotFound:
		if errors.Is(err, errs.ErrNotCertified) {
			return writeError(c, fiber.StatusNotFound, "NOT_CERTIFIED", reason)
		}
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", reason)

	case errs.KindConflict:
		switch {
		case errors.Is(err, errs.ErrAlreadyCertified):
			return writeError(c, fiber.StatusConflict, "ALREADY_CERTIFIED", reason)
		case errors.Is(err, errs.ErrIllegalTransition):
			return writeError(c, fiber.StatusConflict, "ILLEGAL_TRANSITION", reason)
		case errors.Is(err, ledger.ErrReverted):
			return writeError(c, fiber.StatusConflict, "LEDGER_REVERTED", reason)
		case errors.Is(err, service.ErrAnchoredRecord):
			return writeError(c, fiber.StatusConflict, "ANCHORED_RECORD", reason)
		}
		return writeError(c, fiber.StatusConflict, "CONFLICT", reason)

	case errs.KindIntegrity:
		c.Locals(middleware.ErrorLocalKey, err)
		if errors.Is(err, errs.ErrDuplicate) {
			return writeError(c, fiber.StatusConflict, "INTEGRITY_WARNING", reason)
		}
		return writeError(c, fiber.StatusUnprocessableEntity, "INTEGRITY_WARNING", reason)

	case errs.KindTransient:
		c.Locals(middleware.ErrorLocalKey, err)
		switch {
		case errors.Is(err, ledger.ErrConfirmationTimeout):
			return writeError(c, fiber.StatusServiceUnavailable, "CONFIRMATION_PENDING", reason)
		case errors.Is(err, errs.ErrTimeout):
			return writeError(c, fiber.StatusServiceUnavailable, "TIMEOUT", reason)
		}
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", reason)
	}

	c.Locals(middleware.ErrorLocalKey, err)
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHENTICATED", "authentication required")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
