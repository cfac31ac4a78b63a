package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/model"
	"thesiscert/internal/repository"
)

// ThesisPostgres is a PostgreSQL implementation of repository.ThesisRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ThesisPostgres struct {
	db *sql.DB
}

// NewThesisPostgres creates a new ThesisPostgres repository.
func NewThesisPostgres(db *sql.DB) *ThesisPostgres {
	return &ThesisPostgres{db: db}
}

var _ repository.ThesisRepository = (*ThesisPostgres)(nil)

const thesisColumns = `id, title, summary, keywords, authors, language, degree_type, department, field, doi,
		filename, content_type, size, storage_key, digest, digest_algorithm, content_id,
		uploaded_by, institution_id, status, tx_hash, chain_id, block_number, pending_tx_hash,
		verified_by, verified_at, certified_at, rejected_by, rejected_at, reject_reason,
		revoked_by, revoked_at, revoke_reason, deleted_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThesis(row rowScanner) (*model.Thesis, error) {
	var (
		t                                              model.Thesis
		keywords, authors                              []byte
		algo, status                                   string
		blockNumber                                    int64
		verifiedAt, certifiedAt, rejectedAt, revokedAt sql.NullTime
		deletedAt                                      sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.Title, &t.Summary, &keywords, &authors, &t.Language, &t.DegreeType, &t.Department, &t.Field, &t.DOI,
		&t.Filename, &t.ContentType, &t.Size, &t.StorageKey, &t.Digest, &algo, &t.ContentID,
		&t.UploadedBy, &t.InstitutionID, &status, &t.TxHash, &t.ChainID, &blockNumber, &t.PendingTxHash,
		&t.VerifiedBy, &verifiedAt, &certifiedAt, &t.RejectedBy, &rejectedAt, &t.RejectReason,
		&t.RevokedBy, &revokedAt, &t.RevokeReason, &deletedAt, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(keywords, &t.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if err := json.Unmarshal(authors, &t.Authors); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	t.DigestAlgorithm = fingerprint.Algorithm(algo)
	t.Status = model.Status(status)
	t.BlockNumber = uint64(blockNumber)
	t.VerifiedAt = timePtr(verifiedAt)
	t.CertifiedAt = timePtr(certifiedAt)
	t.RejectedAt = timePtr(rejectedAt)
	t.RevokedAt = timePtr(revokedAt)
	t.DeletedAt = timePtr(deletedAt)
	return &t, nil
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func jsonList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

// Create inserts a new thesis row and returns the stored record.
func (r *ThesisPostgres) Create(ctx context.Context, t *model.Thesis) (*model.Thesis, error) {
	keywords, err := jsonList(t.Keywords)
	if err != nil {
		return nil, err
	}
	authors, err := jsonList(t.Authors)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO theses (id, title, summary, keywords, authors, language, degree_type, department, field, doi,
			filename, content_type, size, storage_key, digest, digest_algorithm, content_id,
			uploaded_by, institution_id, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, 1, $21, $21)
		RETURNING ` + thesisColumns
	row := r.db.QueryRowContext(ctx, q,
		t.ID, t.Title, t.Summary, keywords, authors, t.Language, t.DegreeType, t.Department, t.Field, t.DOI,
		t.Filename, t.ContentType, t.Size, t.StorageKey, t.Digest, string(t.DigestAlgorithm), t.ContentID,
		t.UploadedBy, t.InstitutionID, string(t.Status), t.CreatedAt,
	)
	out, err := scanThesis(row)
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// FindByID fetches a single live thesis by its ID.
func (r *ThesisPostgres) FindByID(ctx context.Context, id string) (*model.Thesis, error) {
	q := `SELECT ` + thesisColumns + ` FROM theses WHERE id = $1 AND deleted_at IS NULL`
	t, err := scanThesis(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// FindByDigest fetches the live thesis with the given file digest.
func (r *ThesisPostgres) FindByDigest(ctx context.Context, digest string) (*model.Thesis, error) {
	return r.findUnique(ctx, "digest", digest)
}

// FindByTxHash fetches the live thesis anchored by txHash.
func (r *ThesisPostgres) FindByTxHash(ctx context.Context, txHash string) (*model.Thesis, error) {
	return r.findUnique(ctx, "tx_hash", txHash)
}

// findUnique reads up to two rows so that a broken uniqueness guarantee surfaces
// as errs.ErrDuplicate instead of an arbitrary pick.
func (r *ThesisPostgres) findUnique(ctx context.Context, column, value string) (*model.Thesis, error) {
	q := `SELECT ` + thesisColumns + ` FROM theses WHERE ` + column + ` = $1 AND deleted_at IS NULL LIMIT 2`
	rows, err := r.db.QueryContext(ctx, q, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*model.Thesis
	for rows.Next() {
		t, err := scanThesis(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, errs.ErrNotFound
	case 1:
		return found[0], nil
	}
	return nil, errs.Wrap(errs.KindIntegrity, fmt.Sprintf("more than one thesis with %s %s", column, value), errs.ErrDuplicate)
}

// List returns theses using LIMIT/OFFSET pagination and a total count.
func (r *ThesisPostgres) List(ctx context.Context, f repository.ThesisFilter) (*repository.PageResult[model.Thesis], error) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.InstitutionID != "" {
		add("institution_id = $%d", f.InstitutionID)
	}
	if f.UploadedBy != "" {
		add("uploaded_by = $%d", f.UploadedBy)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM theses WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := f.Page.Limit
	if limit <= 0 {
		limit = 10
	}
	qList := fmt.Sprintf(`SELECT %s FROM theses WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		thesisColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, limit, f.Page.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Thesis, 0)
	for rows.Next() {
		t, err := scanThesis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Thesis]{Items: items, Total: total}, nil
}

// Update writes the mutable columns under an optimistic version check and appends
// the audit event in the same transaction.
func (r *ThesisPostgres) Update(ctx context.Context, t *model.Thesis, ev *model.ThesisEvent) (*model.Thesis, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	q := `
		UPDATE theses SET
			status = $3, tx_hash = $4, chain_id = $5, block_number = $6, pending_tx_hash = $7,
			verified_by = $8, verified_at = $9, certified_at = $10,
			rejected_by = $11, rejected_at = $12, reject_reason = $13,
			revoked_by = $14, revoked_at = $15, revoke_reason = $16,
			version = version + 1, updated_at = $17
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING ` + thesisColumns
	out, err := scanThesis(tx.QueryRowContext(ctx, q,
		t.ID, t.Version,
		string(t.Status), t.TxHash, t.ChainID, int64(t.BlockNumber), t.PendingTxHash,
		t.VerifiedBy, nullTime(t.VerifiedAt), nullTime(t.CertifiedAt),
		t.RejectedBy, nullTime(t.RejectedAt), t.RejectReason,
		t.RevokedBy, nullTime(t.RevokedAt), t.RevokeReason,
		t.UpdatedAt,
	))
	if err != nil {
		if IsNoRowsError(err) {
			return nil, r.missOrConflict(ctx, tx, t.ID)
		}
		return nil, mapError(err)
	}

	if ev != nil {
		const qEv = `
			INSERT INTO thesis_events (thesis_id, from_status, to_status, actor_id, reason, tx_hash, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := tx.ExecContext(ctx, qEv,
			ev.ThesisID, string(ev.From), string(ev.To), ev.ActorID, ev.Reason, ev.TxHash, ev.At,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ThesisPostgres) missOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM theses WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}
	return errs.ErrVersionConflict
}

// Events returns the audit trail of a thesis ordered by insertion.
func (r *ThesisPostgres) Events(ctx context.Context, thesisID string) ([]model.ThesisEvent, error) {
	const q = `
		SELECT id, thesis_id, from_status, to_status, actor_id, reason, tx_hash, at
		FROM thesis_events
		WHERE thesis_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, thesisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.ThesisEvent, 0)
	for rows.Next() {
		var (
			e        model.ThesisEvent
			id       int64
			from, to string
		)
		if err := rows.Scan(&id, &e.ThesisID, &from, &to, &e.ActorID, &e.Reason, &e.TxHash, &e.At); err != nil {
			return nil, err
		}
		e.ID = fmt.Sprint(id)
		e.From = model.Status(from)
		e.To = model.Status(to)
		events = append(events, e)
	}
	return events, rows.Err()
}

// SoftDelete stamps deleted_at; the row and its ledger fields are kept.
func (r *ThesisPostgres) SoftDelete(ctx context.Context, id string, version int64, at time.Time) error {
	const q = `
		UPDATE theses SET deleted_at = $3, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, q, id, version, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM theses WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.ErrNotFound
		}
		return errs.ErrVersionConflict
	}
	return nil
}
