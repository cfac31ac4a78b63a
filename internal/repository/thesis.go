package repository

import (
	"context"
	"time"

	"thesiscert/internal/model"
)

// ThesisRepository defines data access for thesis records using SQL queries only.
// No business logic here; lifecycle rules live in the service.
//
// Lookups never return soft-deleted rows and report a missing row as errs.ErrNotFound.
type ThesisRepository interface {
	// Create inserts a new thesis. A digest collision is reported as errs.ErrDuplicate.
	Create(ctx context.Context, t *model.Thesis) (*model.Thesis, error)

	// FindByID returns a thesis by its ID.
	FindByID(ctx context.Context, id string) (*model.Thesis, error)

	// FindByDigest returns the thesis whose file has the given digest.
	// More than one live row is an integrity fault reported as errs.ErrDuplicate.
	FindByDigest(ctx context.Context, digest string) (*model.Thesis, error)

	// FindByTxHash returns the thesis anchored by the given transaction.
	FindByTxHash(ctx context.Context, txHash string) (*model.Thesis, error)

	// List returns a filtered, paginated list of theses and the total count.
	List(ctx context.Context, f ThesisFilter) (*PageResult[model.Thesis], error)

	// Update writes t if its stored version still equals t.Version and appends ev
	// (when non-nil) in the same transaction. The returned record carries the bumped
	// version. A stale version yields errs.ErrVersionConflict.
	Update(ctx context.Context, t *model.Thesis, ev *model.ThesisEvent) (*model.Thesis, error)

	// Events returns the audit trail of a thesis in insertion order.
	Events(ctx context.Context, thesisID string) ([]model.ThesisEvent, error)

	// SoftDelete marks the thesis deleted if its version still matches.
	SoftDelete(ctx context.Context, id string, version int64, at time.Time) error
}

// InstitutionRepository defines data access for institutions.
type InstitutionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Institution, error)
	Upsert(ctx context.Context, inst *model.Institution) (*model.Institution, error)
}

// ThesisFilter narrows a listing. Zero values mean "any".
type ThesisFilter struct {
	Status        model.Status
	InstitutionID string
	UploadedBy    string
	Page          PageQuery
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
