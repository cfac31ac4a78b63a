// Package verifier answers public certificate lookups by joining the local
// thesis record with a live ledger read and reporting every field on which
// the two disagree.
package verifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/ledger"
	"thesiscert/internal/metrics"
	"thesiscert/internal/model"
	"thesiscert/internal/repository"
)

// Mismatch field names.
const (
	FieldThesisID        = "thesis_id"
	FieldDigest          = "digest"
	FieldContentID       = "content_id"
	FieldDigestAlgorithm = "digest_algorithm"
	FieldInstitutionID   = "institution_id"
	FieldUploaderID      = "uploader_id"
	FieldLedgerRecord    = "ledger_record"
)

// RefKind is what a lookup reference was recognized as.
type RefKind string

const (
	RefThesisID RefKind = "thesis_id"
	RefDigest   RefKind = "digest"
	RefTxHash   RefKind = "tx_hash"
)

// Verifier resolves references and cross-checks them against the ledger.
type Verifier struct {
	theses  repository.ThesisRepository
	ledger  ledger.Client
	metrics *metrics.Pipeline
	logger  *zap.Logger
	now     func() time.Time

	reads       singleflight.Group
	readTimeout time.Duration
}

// DefaultReadTimeout bounds one shared ledger read.
const DefaultReadTimeout = 30 * time.Second

// New builds a Verifier. m may be nil.
func New(theses repository.ThesisRepository, lc ledger.Client, m *metrics.Pipeline, logger *zap.Logger) *Verifier {
	return &Verifier{
		theses:  theses,
		ledger:  lc,
		metrics: m,
		logger:  logger.With(zap.String("component", "verifier")),
		now:     func() time.Time { return time.Now().UTC() },

		readTimeout: DefaultReadTimeout,
	}
}

// ParseRef classifies ref as a thesis id (UUID), a transaction hash (0x + 64 hex)
// or a file digest (64 hex). The returned value is normalized to lowercase.
func ParseRef(ref string) (RefKind, string, error) {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "0x") && len(lower) == 66 && isHex(lower[2:]):
		return RefTxHash, lower, nil
	case len(lower) == 64 && isHex(lower):
		return RefDigest, lower, nil
	}
	if _, err := uuid.Parse(ref); err == nil {
		return RefThesisID, lower, nil
	}
	return "", "", errs.Validation("reference %q is not a thesis id, digest or transaction hash", ref)
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Resolve returns the local thesis identified by ref.
func (v *Verifier) Resolve(ctx context.Context, ref string) (*model.Thesis, error) {
	kind, val, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	var t *model.Thesis
	switch kind {
	case RefTxHash:
		t, err = v.theses.FindByTxHash(ctx, val)
	case RefDigest:
		t, err = v.theses.FindByDigest(ctx, val)
	default:
		t, err = v.theses.FindByID(ctx, val)
	}
	if err != nil {
		return nil, errs.FromContext(err)
	}
	return t, nil
}

// Certificate resolves ref and returns the joined certificate view. A thesis that
// was never anchored and has no ledger record yields errs.ErrNotCertified; callers
// should treat that as "not yet", not as a final answer.
func (v *Verifier) Certificate(ctx context.Context, ref string) (*model.Certificate, error) {
	t, err := v.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return v.certificateFor(ctx, t)
}

// VerifyFile re-derives the digest of a presented file and verifies it by digest.
func (v *Verifier) VerifyFile(ctx context.Context, data []byte, algo fingerprint.Algorithm) (*model.Certificate, error) {
	if len(data) == 0 {
		return nil, errs.Validation("file is empty")
	}
	digest, err := fingerprint.Digest(data, algo)
	if err != nil {
		return nil, err
	}
	t, err := v.theses.FindByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Wrap(errs.KindNotFound, "no thesis matches the presented file", errs.ErrNotFound)
		}
		return nil, errs.FromContext(err)
	}
	return v.certificateFor(ctx, t)
}

// IsCertified reports whether the ledger holds a record for thesisID.
func (v *Verifier) IsCertified(ctx context.Context, thesisID string) (bool, error) {
	res, err := v.shared(ctx, "certified:"+thesisID, func(ctx context.Context) (any, error) {
		return v.ledger.IsCertified(ctx, thesisID)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (v *Verifier) ledgerCertificate(ctx context.Context, thesisID string) (*model.LedgerCertificate, error) {
	res, err := v.shared(ctx, "cert:"+thesisID, func(ctx context.Context) (any, error) {
		return v.ledger.GetCertificate(ctx, thesisID)
	})
	if err != nil {
		return nil, err
	}
	c := *res.(*model.LedgerCertificate)
	return &c, nil
}

// shared collapses identical concurrent ledger reads. The read itself runs detached
// from any one caller and is bounded by readTimeout; each caller waits only as long
// as its own ctx allows.
func (v *Verifier) shared(ctx context.Context, key string, read func(context.Context) (any, error)) (any, error) {
	ch := v.reads.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.readTimeout)
		defer cancel()
		return read(rctx)
	})
	select {
	case res := <-ch:
		return res.Val, errs.FromContext(res.Err)
	case <-ctx.Done():
		return nil, errs.FromContext(ctx.Err())
	}
}

func (v *Verifier) certificateFor(ctx context.Context, t *model.Thesis) (*model.Certificate, error) {
	onchain, err := v.ledgerCertificate(ctx, t.ID)
	switch {
	case errors.Is(err, errs.ErrNotCertified):
		if !t.Anchored() {
			return nil, errs.Wrap(errs.KindNotFound, "thesis "+t.ID+" is not certified yet", errs.ErrNotCertified)
		}
		onchain = nil
	case err != nil:
		return nil, err
	}

	cert := &model.Certificate{
		ThesisID:        t.ID,
		InstitutionID:   t.InstitutionID,
		UploaderID:      t.UploadedBy,
		ContentID:       t.ContentID,
		Digest:          t.Digest,
		DigestAlgorithm: t.DigestAlgorithm,
		Status:          t.Status,
		TxHash:          t.TxHash,
		ChainID:         t.ChainID,
		BlockNumber:     t.BlockNumber,
		Revoked:         t.Revoked(),
		CheckedAt:       v.now(),
	}
	if cert.Revoked {
		cert.RevokedAt = t.RevokedAt
		cert.RevokedBy = t.RevokedBy
	}

	if onchain == nil {
		cert.Mismatches = []string{FieldLedgerRecord}
	} else {
		cert.OnLedger = true
		cert.Ledger = onchain
		issued := onchain.IssuedAt
		cert.IssuedAt = &issued
		cert.Mismatches = Compare(t, onchain)
	}
	cert.Consistent = len(cert.Mismatches) == 0

	if !cert.Consistent {
		v.metrics.Mismatch(cert.Mismatches)
		v.logger.Warn("certificate integrity mismatch",
			zap.String("thesis_id", t.ID),
			zap.Strings("fields", cert.Mismatches),
		)
	}
	return cert, nil
}

// Compare lists the fields on which the local record and the ledger record differ.
func Compare(local *model.Thesis, onchain *model.LedgerCertificate) []string {
	var out []string
	check := func(field, a, b string) {
		if a != b {
			out = append(out, field)
		}
	}
	check(FieldThesisID, local.ID, onchain.ThesisID)
	check(FieldDigest, local.Digest, onchain.Digest)
	check(FieldContentID, local.ContentID, onchain.ContentID)
	check(FieldDigestAlgorithm, string(local.DigestAlgorithm), string(onchain.DigestAlgorithm))
	check(FieldInstitutionID, local.InstitutionID, onchain.InstitutionID)
	check(FieldUploaderID, local.UploadedBy, onchain.UploaderID)
	return out
}
