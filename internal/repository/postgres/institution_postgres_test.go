package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
)

var institutionCols = []string{"id", "name", "country", "domain", "is_member", "can_verify", "created_at", "updated_at"}

func TestInstitutionPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewInstitutionPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("find", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM institutions WHERE id =").
			WithArgs("inst-1").
			WillReturnRows(sqlmock.NewRows(institutionCols).AddRow("inst-1", "Uni", "ID", "uni.ac.id", true, false, now, now))

		got, err := repo.FindByID(ctx, "inst-1")
		require.NoError(t, err)
		assert.True(t, got.IsMember)
		assert.False(t, got.CanVerify)
	})

	t.Run("find missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM institutions").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(institutionCols))

		_, err := repo.FindByID(ctx, "nope")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("upsert", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO institutions (.+) ON CONFLICT").
			WillReturnRows(sqlmock.NewRows(institutionCols).AddRow("inst-2", "Poly", "", "", true, true, now, now))

		got, err := repo.Upsert(ctx, &model.Institution{ID: "inst-2", Name: "Poly", IsMember: true, CanVerify: true})
		require.NoError(t, err)
		assert.True(t, got.CanVerify)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLocker(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`SELECT pg_advisory_lock\(hashtextextended`).WithArgs("thesis-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(hashtextextended`).WithArgs("thesis-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	unlock, err := NewAdvisoryLocker(db).Lock(context.Background(), "thesis-1")
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}
