package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"thesiscert/internal/errs"
)

const pgUniqueViolation = "23505"

// IsNoRowsError reports whether err is database/sql's no-rows error.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// mapError translates driver errors into the repository error contract.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if IsNoRowsError(err) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errs.Wrap(errs.KindIntegrity, errs.ErrDuplicate.Reason+" ("+pgErr.ConstraintName+")", errs.ErrDuplicate)
	}
	return err
}
