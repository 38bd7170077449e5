package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medivision/medivision/internal/platform/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// MapError translates driver-level errors into the shared taxonomy:
// no rows becomes not-found, unique violations become conflicts and
// foreign key violations become not-found on the referenced record.
func MapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", resource)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Conflict("%s already exists", resource)
		case pgForeignKeyViolation:
			return apperr.NotFound("%s references a missing record", resource)
		}
	}
	return apperr.Internal(err, "database error")
}
