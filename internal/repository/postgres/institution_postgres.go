package postgres

import (
	"context"
	"database/sql"
	"time"

	"thesiscert/internal/model"
	"thesiscert/internal/repository"
)

// InstitutionPostgres is a PostgreSQL implementation of repository.InstitutionRepository.
type InstitutionPostgres struct {
	db *sql.DB
}

// NewInstitutionPostgres creates a new InstitutionPostgres repository.
func NewInstitutionPostgres(db *sql.DB) *InstitutionPostgres {
	return &InstitutionPostgres{db: db}
}

var _ repository.InstitutionRepository = (*InstitutionPostgres)(nil)

const institutionColumns = `id, name, country, domain, is_member, can_verify, created_at, updated_at`

// FindByID fetches an institution by its ID.
func (r *InstitutionPostgres) FindByID(ctx context.Context, id string) (*model.Institution, error) {
	q := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	var i model.Institution
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&i.ID, &i.Name, &i.Country, &i.Domain, &i.IsMember, &i.CanVerify, &i.CreatedAt, &i.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &i, nil
}

// Upsert inserts the institution or refreshes its descriptive fields and flags.
func (r *InstitutionPostgres) Upsert(ctx context.Context, inst *model.Institution) (*model.Institution, error) {
	q := `
		INSERT INTO institutions (id, name, country, domain, is_member, can_verify, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, country = EXCLUDED.country, domain = EXCLUDED.domain,
			is_member = EXCLUDED.is_member, can_verify = EXCLUDED.can_verify, updated_at = EXCLUDED.updated_at
		RETURNING ` + institutionColumns
	var out model.Institution
	if err := r.db.QueryRowContext(ctx, q,
		inst.ID, inst.Name, inst.Country, inst.Domain, inst.IsMember, inst.CanVerify, time.Now().UTC(),
	).Scan(
		&out.ID, &out.Name, &out.Country, &out.Domain, &out.IsMember, &out.CanVerify, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}
