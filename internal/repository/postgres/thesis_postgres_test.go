package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/model"
	"thesiscert/internal/repository"
)

var thesisCols = []string{
	"id", "title", "summary", "keywords", "authors", "language", "degree_type", "department", "field", "doi",
	"filename", "content_type", "size", "storage_key", "digest", "digest_algorithm", "content_id",
	"uploaded_by", "institution_id", "status", "tx_hash", "chain_id", "block_number", "pending_tx_hash",
	"verified_by", "verified_at", "certified_at", "rejected_by", "rejected_at", "reject_reason",
	"revoked_by", "revoked_at", "revoke_reason", "deleted_at", "version", "created_at", "updated_at",
}

func thesisValues(t *model.Thesis) []driver.Value {
	var certifiedAt driver.Value
	if t.CertifiedAt != nil {
		certifiedAt = *t.CertifiedAt
	}
	return []driver.Value{
		t.ID, t.Title, t.Summary, []byte(`["blockchain","ipfs"]`), []byte(`[{"name":"Ada"}]`), t.Language, t.DegreeType, "", "", "",
		t.Filename, t.ContentType, t.Size, t.StorageKey, t.Digest, string(t.DigestAlgorithm), t.ContentID,
		t.UploadedBy, t.InstitutionID, string(t.Status), t.TxHash, t.ChainID, int64(t.BlockNumber), t.PendingTxHash,
		"", nil, certifiedAt, "", nil, "",
		"", nil, "", nil, t.Version, t.CreatedAt, t.UpdatedAt,
	}
}

func sampleThesis() *model.Thesis {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Thesis{
		ID:              "8a1f6f0e-1f4c-4a55-9a7b-1b2c3d4e5f60",
		Title:           "On Anchors",
		Language:        "en",
		DegreeType:      "msc",
		Filename:        "thesis.pdf",
		ContentType:     "application/pdf",
		Size:            10240,
		StorageKey:      "bafkreiabc",
		Digest:          "0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f",
		DigestAlgorithm: fingerprint.SHA256,
		ContentID:       "bafkreiabc",
		UploadedBy:      "user-1",
		InstitutionID:   "inst-1",
		Status:          model.StatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestThesisPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewThesisPostgres(db)
	ctx := context.Background()
	th := sampleThesis()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO theses").
			WillReturnRows(sqlmock.NewRows(thesisCols).AddRow(thesisValues(th)...))

		out, err := repo.Create(ctx, th)
		require.NoError(t, err)
		assert.Equal(t, th.ID, out.ID)
		assert.Equal(t, []string{"blockchain", "ipfs"}, out.Keywords)
		assert.Equal(t, "Ada", out.Authors[0].Name)
		assert.Equal(t, fingerprint.SHA256, out.DigestAlgorithm)
		assert.Nil(t, out.CertifiedAt)
	})

	t.Run("duplicate digest", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO theses").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_theses_digest"})

		out, err := repo.Create(ctx, th)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, errs.ErrDuplicate)
		assert.Equal(t, errs.KindIntegrity, errs.KindOf(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewThesisPostgres(db)
	ctx := context.Background()
	th := sampleThesis()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM theses WHERE id = (.+) AND deleted_at IS NULL").
			WithArgs(th.ID).
			WillReturnRows(sqlmock.NewRows(thesisCols).AddRow(thesisValues(th)...))

		got, err := repo.FindByID(ctx, th.ID)
		require.NoError(t, err)
		assert.Equal(t, th.Digest, got.Digest)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM theses WHERE id =").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(thesisCols))

		got, err := repo.FindByID(ctx, "missing")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisPostgres_FindByDigest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewThesisPostgres(db)
	ctx := context.Background()
	th := sampleThesis()

	t.Run("unique", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM theses WHERE digest = (.+) LIMIT 2").
			WithArgs(th.Digest).
			WillReturnRows(sqlmock.NewRows(thesisCols).AddRow(thesisValues(th)...))

		got, err := repo.FindByDigest(ctx, th.Digest)
		require.NoError(t, err)
		assert.Equal(t, th.ID, got.ID)
	})

	t.Run("duplicate rows are an integrity fault", func(t *testing.T) {
		other := sampleThesis()
		other.ID = "other"
		mock.ExpectQuery("SELECT (.+) FROM theses WHERE digest =").
			WithArgs(th.Digest).
			WillReturnRows(sqlmock.NewRows(thesisCols).AddRow(thesisValues(th)...).AddRow(thesisValues(other)...))

		_, err := repo.FindByDigest(ctx, th.Digest)
		assert.ErrorIs(t, err, errs.ErrDuplicate)
	})

	t.Run("by tx hash missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM theses WHERE tx_hash =").
			WithArgs("0xabc").
			WillReturnRows(sqlmock.NewRows(thesisCols))

		_, err := repo.FindByTxHash(ctx, "0xabc")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewThesisPostgres(db)
	th := sampleThesis()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM theses WHERE deleted_at IS NULL AND status = (.+) AND institution_id =`).
		WithArgs("pending", "inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM theses WHERE (.+) ORDER BY created_at DESC").
		WithArgs("pending", "inst-1", 10, 0).
		WillReturnRows(sqlmock.NewRows(thesisCols).AddRow(thesisValues(th)...))

	res, err := repo.List(context.Background(), repository.ThesisFilter{
		Status:        model.StatusPending,
		InstitutionID: "inst-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisPostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewThesisPostgres(db)
	ctx := context.Background()

	t.Run("writes row and event", func(t *testing.T) {
		th := sampleThesis()
		now := time.Now().UTC().Truncate(time.Second)
		th.Status = model.StatusCertified
		th.TxHash = "0xabc"
		th.ChainID = 80002
		th.BlockNumber = 123
		th.CertifiedAt = &now

		stored := th.Clone()
		stored.Version = 2

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE theses SET").
			WillReturnRows(sqlmock.NewRows(thesisCols).AddRow(thesisValues(stored)...))
		mock.ExpectExec("INSERT INTO thesis_events").
			WithArgs(th.ID, "pending", "certified", "admin-1", "", "0xabc", now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		out, err := repo.Update(ctx, th, &model.ThesisEvent{
			ThesisID: th.ID, From: model.StatusPending, To: model.StatusCertified,
			ActorID: "admin-1", TxHash: "0xabc", At: now,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), out.Version)
		assert.Equal(t, uint64(123), out.BlockNumber)
		assert.Equal(t, int64(80002), out.ChainID)
		require.NotNil(t, out.CertifiedAt)
	})

	t.Run("stale version", func(t *testing.T) {
		th := sampleThesis()
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE theses SET").WillReturnRows(sqlmock.NewRows(thesisCols))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(th.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := repo.Update(ctx, th, nil)
		assert.ErrorIs(t, err, errs.ErrVersionConflict)
	})

	t.Run("tx hash collision", func(t *testing.T) {
		th := sampleThesis()
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE theses SET").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_theses_tx_hash"})
		mock.ExpectRollback()

		_, err := repo.Update(ctx, th, nil)
		assert.ErrorIs(t, err, errs.ErrDuplicate)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisPostgres_SoftDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewThesisPostgres(db)
	ctx := context.Background()
	at := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE theses SET deleted_at").
			WithArgs("t1", int64(3), at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SoftDelete(ctx, "t1", 3, at))
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectExec("UPDATE theses SET deleted_at").
			WithArgs("t2", int64(1), at).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("t2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		assert.ErrorIs(t, repo.SoftDelete(ctx, "t2", 1, at), errs.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestThesisPostgres_Events(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM thesis_events WHERE thesis_id =").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "thesis_id", "from_status", "to_status", "actor_id", "reason", "tx_hash", "at"}).
			AddRow(int64(1), "t1", "", "pending", "user-1", "", "", at).
			AddRow(int64(2), "t1", "pending", "certified", "admin-1", "", "0xabc", at))

	events, err := NewThesisPostgres(db).Events(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[1].ID)
	assert.Equal(t, model.StatusCertified, events[1].To)
	assert.NoError(t, mock.ExpectationsWereMet())
}
