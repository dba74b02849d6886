package naturalkey

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// UpsertExistingHeader marks responses that return an existing entity instead of a new one.
const UpsertExistingHeader = "Upsert-Existing"

var (
	// ErrConflict is wrapped by repositories whose driver has no typed unique-violation error.
	ErrConflict = errors.New("natural key already exists")
	// ErrTransient is returned when the conflicting entity could not be fetched in time.
	ErrTransient = errors.New("existing entity not visible yet")
)

// IsUniqueViolation reports whether err is a uniqueness violation. If constraint is not empty,
// Postgres violations only count for that constraint.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var e *pgconn.PgError
	if errors.As(err, &e) && e.Code == pgerrcode.UniqueViolation {
		return constraint == "" || e.ConstraintName == constraint
	}
	return false
}
