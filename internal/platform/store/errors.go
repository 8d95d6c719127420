package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors shared by every repository and service.
// Use errors.Is() to check for them in calling code.
var (
	// ErrNotFound is returned when an operation references an id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a uniqueness violation or an invalid relationship change.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input, before any mutation is attempted.
	ErrValidation = errors.New("validation failed")
)

// PostgreSQL SQLSTATE codes translated into sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// Conflict wraps ErrConflict with a reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Invalid wraps ErrValidation with a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// FromPG maps driver errors onto the sentinels. Errors it does not
// recognise are returned unchanged.
func FromPG(kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s %s already exists", ErrConflict, kind, uniqueField(pgErr))
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing record (%s)", ErrConflict, kind, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s violates %s", ErrValidation, kind, pgErr.ConstraintName)
		}
	}
	return err
}

// uniqueField extracts the column name from constraints named <table>_<column>_key.
func uniqueField(pgErr *pgconn.PgError) string {
	name := strings.TrimSuffix(pgErr.ConstraintName, "_key")
	if pgErr.TableName != "" {
		name = strings.TrimPrefix(name, pgErr.TableName+"_")
	}
	return name
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
