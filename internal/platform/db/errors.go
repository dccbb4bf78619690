package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/payables/internal/shared"
)

const (
	pgUniqueViolation   = "23505"
	pgSerializationFail = "40001"
	pgDeadlockDetected  = "40P01"
	pgLockNotAvailable  = "55P03"
)

// Classify maps driver errors onto domain kinds. notFound is returned for
// pgx.ErrNoRows; shared errors pass through untouched.
func Classify(err error, notFound *shared.Error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if notFound == nil {
			return shared.WrapError(err, shared.KindNotFound, "", "not found")
		}
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFail, pgDeadlockDetected, pgLockNotAvailable:
			return shared.WrapError(err, shared.KindConflict, pgErr.ConstraintName, "concurrent modification, retry the operation")
		}
	}
	return shared.WrapError(err, shared.KindDependency, "", "database operation failed")
}

// IsUniqueViolation reports whether err is a unique constraint violation on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
