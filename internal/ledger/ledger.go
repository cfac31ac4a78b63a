// Package ledger anchors thesis fingerprints on a public ledger and reads them back.
//
// Submission and confirmation are separate steps so that a caller whose
// confirmation wait timed out can re-poll the transaction it already sent
// instead of anchoring a second time.
package ledger

import (
	"context"
	"fmt"

	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/model"
)

// AnchorRequest is the payload written to the ledger for one thesis.
type AnchorRequest struct {
	ThesisID        string
	UploaderID      string
	InstitutionID   string
	ContentID       string
	Digest          string
	DigestAlgorithm fingerprint.Algorithm
}

// Receipt identifies a confirmed anchor transaction.
type Receipt struct {
	TxHash      string
	ChainID     int64
	BlockNumber uint64
}

// Client is a ledger anchor client. Implementations keep no per-request state
// and are safe for concurrent use.
type Client interface {
	// Submit sends the anchor transaction and returns its hash without waiting for it to be mined.
	Submit(ctx context.Context, req AnchorRequest) (string, error)
	// WaitConfirmed blocks until txHash is mined, ctx ends, or the client's confirmation timeout expires.
	WaitConfirmed(ctx context.Context, txHash string) (Receipt, error)
	// GetCertificate reads the ledger record for thesisID. It returns errs.ErrNotCertified when absent.
	GetCertificate(ctx context.Context, thesisID string) (*model.LedgerCertificate, error)
	// IsCertified reports whether the ledger holds a record for thesisID.
	IsCertified(ctx context.Context, thesisID string) (bool, error)
	// ChainID is the chain the client writes to.
	ChainID() int64
	// Provider names the backing ledger implementation.
	Provider() string
}

// Submission failures. They are reported distinctly from ErrConfirmationTimeout:
// a failed submission may be retried, a timed out confirmation must be re-polled.
var (
	// ErrSubmission is the parent of every submission failure.
	ErrSubmission = errs.New(errs.KindTransient, "ledger submission failed")

	// ErrRPCUnavailable marks a submission that never reached the network. It is the
	// only submission failure retried automatically.
	ErrRPCUnavailable = &errs.Error{Kind: errs.KindTransient, Reason: "ledger rpc unavailable", Err: ErrSubmission}

	// ErrInsufficientFunds marks a submission the signer cannot pay for.
	ErrInsufficientFunds = &errs.Error{Kind: errs.KindTransient, Reason: "insufficient funds for anchoring", Err: ErrSubmission}

	// ErrReverted marks a transaction rejected by the contract.
	ErrReverted = &errs.Error{Kind: errs.KindConflict, Reason: "anchor transaction reverted", Err: ErrSubmission}

	// ErrDropped marks a submitted transaction the network no longer knows about.
	// It will never confirm and has to be submitted again.
	ErrDropped = &errs.Error{Kind: errs.KindTransient, Reason: "anchor transaction dropped", Err: ErrSubmission}

	// ErrConfirmationTimeout is the parent of TimeoutError.
	ErrConfirmationTimeout = errs.New(errs.KindTransient, "ledger confirmation timed out")
)

// TimeoutError reports a submitted transaction that was not confirmed in time.
// TxHash is kept so the caller can re-poll it later.
type TimeoutError struct {
	TxHash string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: tx %s", ErrConfirmationTimeout.Reason, e.TxHash)
}

func (e *TimeoutError) Unwrap() error { return ErrConfirmationTimeout }

// Anchor submits req and waits for its confirmation.
func Anchor(ctx context.Context, c Client, req AnchorRequest) (Receipt, error) {
	txHash, err := c.Submit(ctx, req)
	if err != nil {
		return Receipt{}, err
	}
	return c.WaitConfirmed(ctx, txHash)
}

// Validate checks that every anchored field is present.
func (r AnchorRequest) Validate() error {
	switch {
	case r.ThesisID == "":
		return errs.Validation("anchor request: thesis id is required")
	case r.UploaderID == "":
		return errs.Validation("anchor request: uploader id is required")
	case r.InstitutionID == "":
		return errs.Validation("anchor request: institution id is required")
	case r.ContentID == "":
		return errs.Validation("anchor request: content id is required")
	case !fingerprint.ValidHex(r.Digest, r.DigestAlgorithm):
		return errs.Validation("anchor request: digest is not a valid %s hex string", r.DigestAlgorithm)
	}
	return nil
}
