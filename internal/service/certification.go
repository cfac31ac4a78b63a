package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/ledger"
	"thesiscert/internal/lifecycle"
	"thesiscert/internal/metrics"
	"thesiscert/internal/model"
	"thesiscert/internal/policy"
	"thesiscert/internal/repository"
	"thesiscert/internal/storage"
	"thesiscert/internal/verifier"
)

var tracer = otel.Tracer("thesiscert/internal/service")

// ErrAnchoredRecord is returned when deleting a thesis that has, or may have, a
// ledger anchor.
var ErrAnchoredRecord = errs.New(errs.KindConflict, "anchored record")

const (
	defaultListLimit = 10
	maxListLimit     = 100

	// persistTimeout bounds bookkeeping writes that must survive the caller's deadline.
	persistTimeout = 30 * time.Second
)

// ThesisListResult is the service-level DTO for paginated theses.
type ThesisListResult struct {
	Items []model.Thesis `json:"data"`
	Total int            `json:"total"`
}

// ListFilter narrows List. Status must be one of the lifecycle states when set.
type ListFilter struct {
	Status        string
	InstitutionID string
	UploadedBy    string
	Limit         int
	Offset        int
}

// CertificationService is the certification pipeline: upload, institutional
// sign-off, one-time ledger anchoring, revocation and public verification.
type CertificationService interface {
	// SubmitThesis digests and pins the file, then creates a pending thesis.
	// If any step fails no record is left behind.
	SubmitThesis(ctx context.Context, actor model.Actor, meta model.ThesisMetadata, file []byte, filename, contentType string) (*model.Thesis, error)

	// RequestInstitutionVerification records institutional sign-off without anchoring.
	RequestInstitutionVerification(ctx context.Context, actor model.Actor, thesisID, institutionID string) (*model.Thesis, error)

	// Certify anchors the thesis on the ledger and marks it certified. A thesis
	// that is already certified yields errs.ErrAlreadyCertified.
	Certify(ctx context.Context, actor model.Actor, thesisID string) (*model.Thesis, error)

	// ApplyCertification is the terminal transition of an anchor. Repeating it with
	// the same transaction returns the record unchanged; a different transaction
	// on a certified thesis yields errs.ErrAlreadyCertified.
	ApplyCertification(ctx context.Context, actor model.Actor, thesisID string, rcpt ledger.Receipt) (*model.Thesis, error)

	Reject(ctx context.Context, actor model.Actor, thesisID, reason string) (*model.Thesis, error)

	// Revoke annotates a certified thesis as revoked. The ledger trail is kept.
	Revoke(ctx context.Context, actor model.Actor, thesisID, reason string) (*model.Thesis, error)

	// GetCertificate resolves a thesis id, digest or transaction hash and cross-checks it with the ledger.
	GetCertificate(ctx context.Context, ref string) (*model.Certificate, error)

	// IsCertifiedOnChain reads the ledger directly.
	IsCertifiedOnChain(ctx context.Context, thesisID string) (bool, error)

	// VerifyFile re-derives the digest of a presented file and verifies it.
	VerifyFile(ctx context.Context, file []byte, algorithm string) (*model.Certificate, error)

	Get(ctx context.Context, id string) (*model.Thesis, error)
	List(ctx context.Context, f ListFilter) (*ThesisListResult, error)
	Events(ctx context.Context, id string) ([]model.ThesisEvent, error)

	// Delete soft-deletes a thesis. Content is unpinned only if it was never anchored.
	Delete(ctx context.Context, actor model.Actor, id string) error
}

// Deps are the collaborators of the certification service. Metrics may be nil.
type Deps struct {
	Theses       repository.ThesisRepository
	Institutions repository.InstitutionRepository
	Store        storage.ContentStore
	Ledger       ledger.Client
	Locker       repository.Locker
	Policy       *policy.Policy
	Verifier     *verifier.Verifier
	Metrics      *metrics.Pipeline
	Logger       *zap.Logger

	Limits           storage.Limits
	DefaultAlgorithm fingerprint.Algorithm
	SubmitRetries    int
}

type certificationService struct {
	theses       repository.ThesisRepository
	institutions repository.InstitutionRepository
	store        storage.ContentStore
	ledger       ledger.Client
	locker       repository.Locker
	policy       *policy.Policy
	verifier     *verifier.Verifier
	metrics      *metrics.Pipeline
	logger       *zap.Logger

	limits        storage.Limits
	defaultAlgo   fingerprint.Algorithm
	submitRetries int
	newBackOff    func() backoff.BackOff
	now           func() time.Time
}

// NewCertificationService constructs the service from its collaborators.
func NewCertificationService(d Deps) CertificationService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Locker == nil {
		d.Locker = repository.NewKeyedMutex()
	}
	if d.Policy == nil {
		d.Policy = policy.New()
	}
	if d.Verifier == nil {
		d.Verifier = verifier.New(d.Theses, d.Ledger, d.Metrics, d.Logger)
	}
	if d.DefaultAlgorithm == "" {
		d.DefaultAlgorithm = fingerprint.Default
	}
	return &certificationService{
		theses:        d.Theses,
		institutions:  d.Institutions,
		store:         d.Store,
		ledger:        d.Ledger,
		locker:        d.Locker,
		policy:        d.Policy,
		verifier:      d.Verifier,
		metrics:       d.Metrics,
		logger:        d.Logger.With(zap.String("component", "service")),
		limits:        d.Limits,
		defaultAlgo:   d.DefaultAlgorithm,
		submitRetries: d.SubmitRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// endSpan tags a bare context error in *err as a timeout and records the outcome.
func endSpan(span trace.Span, err *error) {
	if *err != nil {
		*err = errs.FromContext(*err)
		span.RecordError(*err)
		span.SetStatus(codes.Error, string(errs.KindOf(*err)))
	}
	span.End()
}

func (s *certificationService) SubmitThesis(ctx context.Context, actor model.Actor, meta model.ThesisMetadata, file []byte, filename, contentType string) (_ *model.Thesis, err error) {
	ctx, span := tracer.Start(ctx, "service.SubmitThesis")
	defer endSpan(span, &err)

	if err := s.limits.Validate(int64(len(file)), contentType); err != nil {
		return nil, err
	}
	if err := validateMetadata(meta); err != nil {
		return nil, err
	}
	algo := s.defaultAlgo
	if meta.DigestAlgorithm != "" {
		if algo, err = fingerprint.ParseAlgorithm(meta.DigestAlgorithm); err != nil {
			return nil, err
		}
	}
	if !algo.Supported() {
		return nil, errs.Wrap(errs.KindValidation, fmt.Sprintf("digest algorithm %s is declared but not computable", algo), fingerprint.ErrUnsupportedAlgorithm)
	}

	inst, err := s.institution(ctx, meta.InstitutionID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanAct(actor, inst, policy.ActionSubmit).Err(); err != nil {
		return nil, err
	}

	digest, err := fingerprint.Digest(file, algo)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("thesis.digest", digest))

	switch existing, err := s.theses.FindByDigest(ctx, digest); {
	case err == nil:
		return nil, errs.Wrap(errs.KindIntegrity, "file already registered as thesis "+existing.ID, errs.ErrDuplicate)
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	status, err := lifecycle.Next("", lifecycle.EventUpload)
	if err != nil {
		return nil, err
	}

	pin, err := s.store.Upload(ctx, file, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload to store: %w", err)
	}

	now := s.now()
	t := &model.Thesis{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(meta.Title),
		Summary:         meta.Summary,
		Keywords:        meta.Keywords,
		Authors:         meta.Authors,
		Language:        meta.Language,
		DegreeType:      meta.DegreeType,
		Department:      meta.Department,
		Field:           meta.Field,
		DOI:             meta.DOI,
		Filename:        filename,
		ContentType:     contentType,
		Size:            int64(len(file)),
		StorageKey:      pin.Key,
		Digest:          digest,
		DigestAlgorithm: algo,
		ContentID:       pin.ContentID,
		UploadedBy:      actor.ID,
		InstitutionID:   inst.ID,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stored, err := s.theses.Create(ctx, t)
	if err != nil {
		// Rollback: release the pin so no content is left without a record.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if delErr := s.store.Unpin(rctx, pin.Key); delErr != nil {
			s.logger.Error("rollback unpin failed", zap.String("cid", pin.ContentID), zap.Error(delErr))
			return nil, fmt.Errorf("save thesis: %w; rollback unpin failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("save thesis: %w", err)
	}

	s.metrics.Transition(string(stored.Status))
	s.logger.Info("thesis submitted",
		zap.String("thesis_id", stored.ID),
		zap.String("institution_id", stored.InstitutionID),
		zap.String("digest", stored.Digest),
		zap.String("cid", stored.ContentID),
	)
	return stored, nil
}

func validateMetadata(m model.ThesisMetadata) error {
	if strings.TrimSpace(m.Title) == "" {
		return errs.Validation("title is required")
	}
	if strings.TrimSpace(m.InstitutionID) == "" {
		return errs.Validation("institution_id is required")
	}
	if len(m.Authors) == 0 {
		return errs.Validation("at least one author is required")
	}
	for i, a := range m.Authors {
		if strings.TrimSpace(a.Name) == "" {
			return errs.Validation("author %d has no name", i+1)
		}
	}
	return nil
}

func (s *certificationService) institution(ctx context.Context, id string) (*model.Institution, error) {
	inst, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Wrap(errs.KindNotFound, "institution "+id+" not found", errs.ErrNotFound)
		}
		return nil, err
	}
	return inst, nil
}

// load returns the thesis and its owning institution.
func (s *certificationService) load(ctx context.Context, id string) (*model.Thesis, *model.Institution, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	inst, err := s.institution(ctx, t.InstitutionID)
	if err != nil {
		return nil, nil, err
	}
	return t, inst, nil
}

// lock serializes work on one thesis and reloads it once the lock is held.
func (s *certificationService) lock(ctx context.Context, id string) (*model.Thesis, func(), error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, nil, errs.Transient("thesis is busy", err)
	}
	t, err := s.theses.FindByID(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return t, unlock, nil
}

// transition applies a guarded, non-anchoring lifecycle move.
func (s *certificationService) transition(ctx context.Context, actor model.Actor, id string, action policy.Action, ev lifecycle.Event, reason string, apply func(t *model.Thesis, now time.Time)) (*model.Thesis, error) {
	_, inst, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanAct(actor, inst, action).Err(); err != nil {
		return nil, err
	}

	t, unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	to, err := lifecycle.Next(t.Status, ev)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := t.Clone()
	next.Status = to
	next.UpdatedAt = now
	apply(next, now)

	return s.save(ctx, next, &model.ThesisEvent{
		ThesisID: t.ID,
		From:     t.Status,
		To:       to,
		ActorID:  actor.ID,
		Reason:   reason,
		At:       now,
	})
}

func (s *certificationService) save(ctx context.Context, next *model.Thesis, ev *model.ThesisEvent) (*model.Thesis, error) {
	updated, err := s.theses.Update(ctx, next, ev)
	if err != nil {
		return nil, err
	}
	if ev != nil {
		s.metrics.Transition(string(ev.To))
		s.logger.Info("thesis transition",
			zap.String("thesis_id", updated.ID),
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)),
			zap.String("actor_id", ev.ActorID),
		)
	}
	return updated, nil
}

func (s *certificationService) RequestInstitutionVerification(ctx context.Context, actor model.Actor, thesisID, institutionID string) (_ *model.Thesis, err error) {
	ctx, span := tracer.Start(ctx, "service.RequestInstitutionVerification", trace.WithAttributes(attribute.String("thesis.id", thesisID)))
	defer endSpan(span, &err)

	if institutionID != "" {
		t, err := s.Get(ctx, thesisID)
		if err != nil {
			return nil, err
		}
		if t.InstitutionID != institutionID {
			return nil, errs.Forbidden(policy.ReasonWrongInstitution)
		}
	}
	return s.transition(ctx, actor, thesisID, policy.ActionRequestVerification, lifecycle.EventRequestVerification, "",
		func(t *model.Thesis, now time.Time) {
			t.VerifiedBy = actor.ID
			t.VerifiedAt = &now
		})
}

func (s *certificationService) Reject(ctx context.Context, actor model.Actor, thesisID, reason string) (_ *model.Thesis, err error) {
	ctx, span := tracer.Start(ctx, "service.Reject", trace.WithAttributes(attribute.String("thesis.id", thesisID)))
	defer endSpan(span, &err)

	return s.transition(ctx, actor, thesisID, policy.ActionReject, lifecycle.EventReject, reason,
		func(t *model.Thesis, now time.Time) {
			t.RejectedBy = actor.ID
			t.RejectedAt = &now
			t.RejectReason = reason
		})
}

func (s *certificationService) Revoke(ctx context.Context, actor model.Actor, thesisID, reason string) (_ *model.Thesis, err error) {
	ctx, span := tracer.Start(ctx, "service.Revoke", trace.WithAttributes(attribute.String("thesis.id", thesisID)))
	defer endSpan(span, &err)

	return s.transition(ctx, actor, thesisID, policy.ActionRevoke, lifecycle.EventRevoke, reason,
		func(t *model.Thesis, now time.Time) {
			t.RevokedBy = actor.ID
			t.RevokedAt = &now
			t.RevokeReason = reason
		})
}

func (s *certificationService) GetCertificate(ctx context.Context, ref string) (_ *model.Certificate, err error) {
	ctx, span := tracer.Start(ctx, "service.GetCertificate")
	defer endSpan(span, &err)
	return s.verifier.Certificate(ctx, ref)
}

func (s *certificationService) IsCertifiedOnChain(ctx context.Context, thesisID string) (bool, error) {
	if _, err := uuid.Parse(thesisID); err != nil {
		return false, errs.Validation("invalid thesis id %q", thesisID)
	}
	return s.verifier.IsCertified(ctx, thesisID)
}

func (s *certificationService) VerifyFile(ctx context.Context, file []byte, algorithm string) (_ *model.Certificate, err error) {
	ctx, span := tracer.Start(ctx, "service.VerifyFile")
	defer endSpan(span, &err)

	algo := s.defaultAlgo
	if algorithm != "" {
		if algo, err = fingerprint.ParseAlgorithm(algorithm); err != nil {
			return nil, err
		}
	}
	return s.verifier.VerifyFile(ctx, file, algo)
}

func (s *certificationService) Get(ctx context.Context, id string) (*model.Thesis, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.Validation("invalid thesis id %q", id)
	}
	t, err := s.theses.FindByID(ctx, id)
	if err != nil {
		return nil, errs.FromContext(err)
	}
	return t, nil
}

// List returns paginated theses without exposing repository types.
func (s *certificationService) List(ctx context.Context, f ListFilter) (*ThesisListResult, error) {
	rf := repository.ThesisFilter{
		InstitutionID: f.InstitutionID,
		UploadedBy:    f.UploadedBy,
		Page:          repository.PageQuery{Limit: f.Limit, Offset: f.Offset},
	}
	if f.Status != "" {
		st, err := lifecycle.ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		rf.Status = st
	}
	if rf.Page.Limit <= 0 {
		rf.Page.Limit = defaultListLimit
	}
	if rf.Page.Limit > maxListLimit {
		rf.Page.Limit = maxListLimit
	}
	if rf.Page.Offset < 0 {
		rf.Page.Offset = 0
	}

	res, err := s.theses.List(ctx, rf)
	if err != nil {
		return nil, errs.FromContext(err)
	}
	return &ThesisListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *certificationService) Events(ctx context.Context, id string) ([]model.ThesisEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	evs, err := s.theses.Events(ctx, id)
	if err != nil {
		return nil, errs.FromContext(err)
	}
	return evs, nil
}

func (s *certificationService) Delete(ctx context.Context, actor model.Actor, id string) (err error) {
	ctx, span := tracer.Start(ctx, "service.Delete", trace.WithAttributes(attribute.String("thesis.id", id)))
	defer endSpan(span, &err)

	_, inst, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanAct(actor, inst, policy.ActionDelete).Err(); err != nil {
		return err
	}

	t, unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	// Anchored records stay resolvable for third parties holding the file or tx hash.
	if t.Anchored() || t.PendingTxHash != "" {
		return errs.Wrap(errs.KindConflict, "thesis "+t.ID+" is anchored on the ledger and cannot be deleted", ErrAnchoredRecord)
	}

	if err := s.theses.SoftDelete(ctx, t.ID, t.Version, s.now()); err != nil {
		return err
	}
	s.logger.Info("thesis deleted", zap.String("thesis_id", t.ID), zap.String("actor_id", actor.ID))

	if err := s.store.Unpin(ctx, t.StorageKey); err != nil {
		s.logger.Warn("unpin after delete failed", zap.String("thesis_id", t.ID), zap.String("cid", t.ContentID), zap.Error(err))
	}
	return nil
}

func (s *certificationService) Certify(ctx context.Context, actor model.Actor, thesisID string) (_ *model.Thesis, err error) {
	ctx, span := tracer.Start(ctx, "service.Certify", trace.WithAttributes(attribute.String("thesis.id", thesisID)))
	defer endSpan(span, &err)

	_, inst, err := s.load(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanAct(actor, inst, policy.ActionCertify).Err(); err != nil {
		return nil, err
	}

	t, unlock, err := s.lock(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if t.Status == model.StatusCertified {
		return nil, errs.Wrap(errs.KindConflict, "thesis "+t.ID+" is already certified", errs.ErrAlreadyCertified)
	}
	if _, err := lifecycle.Next(t.Status, lifecycle.EventCertify); err != nil {
		return nil, err
	}

	start := time.Now()
	rcpt, result, err := s.anchor(ctx, t)
	if err != nil {
		return nil, err
	}
	s.metrics.Anchor(result, time.Since(start))

	return s.applyCertification(ctx, actor, t.ID, rcpt)
}

// anchor returns the receipt to certify t with. It reuses an existing anchor
// or re-polls a pending transaction before it submits anything new. Called
// with the thesis lock held.
func (s *certificationService) anchor(ctx context.Context, t *model.Thesis) (ledger.Receipt, string, error) {
	log := s.logger.With(zap.String("thesis_id", t.ID))

	if t.Anchored() {
		log.Info("reinstating existing anchor", zap.String("tx_hash", t.TxHash))
		return ledger.Receipt{TxHash: t.TxHash, ChainID: t.ChainID, BlockNumber: t.BlockNumber}, metrics.ResultReinstated, nil
	}

	txHash := t.PendingTxHash
	if txHash == "" {
		onchain, err := s.ledger.IsCertified(ctx, t.ID)
		if err != nil {
			return ledger.Receipt{}, "", err
		}
		if onchain {
			s.metrics.Mismatch([]string{verifier.FieldLedgerRecord})
			log.Error("ledger already holds a record for an unanchored thesis")
			return ledger.Receipt{}, "", errs.Integrity("ledger holds a certificate that is not recorded locally", errs.ErrAlreadyCertified)
		}

		if txHash, err = s.submit(ctx, t); err != nil {
			s.metrics.Anchor(metrics.ResultFailed, 0)
			return ledger.Receipt{}, "", err
		}

		// The transaction is already sent: the hash must be saved even if the caller is gone.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		pending := t.Clone()
		pending.PendingTxHash = txHash
		stored, err := s.theses.Update(pctx, pending, nil)
		cancel()
		if err != nil {
			log.Error("persist pending transaction failed", zap.String("tx_hash", txHash), zap.Error(err))
			return ledger.Receipt{}, "", err
		}
		*t = *stored
		log.Info("anchor submitted", zap.String("tx_hash", txHash))
	} else {
		log.Info("re-polling pending anchor", zap.String("tx_hash", txHash))
	}

	rcpt, err := s.ledger.WaitConfirmed(ctx, txHash)
	var timeout *ledger.TimeoutError
	switch {
	case err == nil:
		return rcpt, metrics.ResultConfirmed, nil
	case errors.As(err, &timeout):
		s.metrics.Anchor(metrics.ResultTimeout, 0)
		log.Warn("anchor confirmation timed out", zap.String("tx_hash", txHash))
		return ledger.Receipt{}, "", errs.Transient("anchor not yet confirmed, retry to re-poll "+txHash, err)
	case errors.Is(err, ledger.ErrReverted), errors.Is(err, ledger.ErrDropped):
		// Neither will ever confirm; forget the hash so the next call resubmits.
		s.clearPending(ctx, t, txHash)
		s.metrics.Anchor(metrics.ResultFailed, 0)
		log.Warn("anchor transaction abandoned", zap.String("tx_hash", txHash), zap.Error(err))
		return ledger.Receipt{}, "", err
	default:
		return ledger.Receipt{}, "", err
	}
}

func (s *certificationService) clearPending(ctx context.Context, t *model.Thesis, txHash string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	cleared := t.Clone()
	cleared.PendingTxHash = ""
	if _, err := s.theses.Update(cctx, cleared, nil); err != nil {
		s.logger.Error("clear pending transaction failed",
			zap.String("thesis_id", t.ID),
			zap.String("tx_hash", txHash),
			zap.Error(err),
		)
	}
}

// submit sends the anchor transaction, retrying only when the RPC endpoint was unreachable.
func (s *certificationService) submit(ctx context.Context, t *model.Thesis) (string, error) {
	req := ledger.AnchorRequest{
		ThesisID:        t.ID,
		UploaderID:      t.UploadedBy,
		InstitutionID:   t.InstitutionID,
		ContentID:       t.ContentID,
		Digest:          t.Digest,
		DigestAlgorithm: t.DigestAlgorithm,
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	var txHash string
	bo := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(max(s.submitRetries, 0))), ctx)
	err := backoff.RetryNotify(func() error {
		h, err := s.ledger.Submit(ctx, req)
		if err != nil {
			if errors.Is(err, ledger.ErrRPCUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		txHash = h
		return nil
	}, bo, func(err error, wait time.Duration) {
		s.logger.Warn("anchor submission failed, retrying",
			zap.String("thesis_id", t.ID), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return "", err
	}
	return txHash, nil
}

func (s *certificationService) ApplyCertification(ctx context.Context, actor model.Actor, thesisID string, rcpt ledger.Receipt) (_ *model.Thesis, err error) {
	ctx, span := tracer.Start(ctx, "service.ApplyCertification", trace.WithAttributes(attribute.String("thesis.id", thesisID)))
	defer endSpan(span, &err)

	if rcpt.TxHash == "" {
		return nil, errs.Validation("tx hash is required")
	}
	_, inst, err := s.load(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanAct(actor, inst, policy.ActionCertify).Err(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, thesisID)
	if err != nil {
		return nil, errs.Transient("thesis is busy", err)
	}
	defer unlock()

	return s.applyCertification(ctx, actor, thesisID, rcpt)
}

// applyCertification persists the ledger payload. Called with the thesis lock held.
func (s *certificationService) applyCertification(ctx context.Context, actor model.Actor, thesisID string, rcpt ledger.Receipt) (*model.Thesis, error) {
	t, err := s.theses.FindByID(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.StatusCertified {
		if t.TxHash == rcpt.TxHash {
			return t, nil
		}
		return nil, errs.Wrap(errs.KindConflict, "thesis "+t.ID+" is certified by "+t.TxHash, errs.ErrAlreadyCertified)
	}
	if t.Anchored() && t.TxHash != rcpt.TxHash {
		return nil, errs.Wrap(errs.KindConflict, "thesis "+t.ID+" is anchored by "+t.TxHash, errs.ErrAlreadyCertified)
	}

	to, err := lifecycle.Next(t.Status, lifecycle.EventCertify)
	if err != nil {
		return nil, err
	}

	now := s.now()
	next := t.Clone()
	next.Status = to
	next.TxHash = rcpt.TxHash
	next.ChainID = rcpt.ChainID
	next.BlockNumber = rcpt.BlockNumber
	next.PendingTxHash = ""
	next.CertifiedAt = &now
	next.UpdatedAt = now

	return s.save(ctx, next, &model.ThesisEvent{
		ThesisID: t.ID,
		From:     t.Status,
		To:       to,
		ActorID:  actor.ID,
		TxHash:   rcpt.TxHash,
		At:       now,
	})
}
