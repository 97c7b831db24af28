package postgres

import (
	"errors"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapPgError translates driver-level failures into the operational taxonomy.
// Anything it does not recognize passes through and gets treated as a
// programming error at the boundary.
func mapPgError(err error, resource string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("No " + resource + " was found with this id")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return apperr.DuplicateKey("Duplicate field value, please use another value")
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return apperr.Validation("Referenced " + resource + " does not exist")
		case pgErr.Code == pgerrcode.NotNullViolation,
			pgErr.Code == pgerrcode.CheckViolation:
			return apperr.Validation("Invalid input data")
		case pgErr.Code == pgerrcode.InvalidTextRepresentation:
			// e.g. malformed uuid in an id position
			return apperr.Validation("Invalid identifier")
		}
	}

	return err
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
