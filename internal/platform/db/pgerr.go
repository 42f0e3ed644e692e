package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// UniqueConstraint reports the name of the violated unique constraint when
// err is a PostgreSQL unique-violation error. Callers discriminate on the
// constraint name, never on the human-readable detail text.
func UniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsUniqueViolation reports whether err violates the named unique constraint.
// An empty name matches any unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	name, ok := UniqueConstraint(err)
	if !ok {
		return false
	}
	return constraint == "" || name == constraint
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign-key
// violation, meaning the row is still referenced elsewhere.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}
