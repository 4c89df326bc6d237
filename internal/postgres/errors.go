package postgres

import (
	"database/sql"
	"errors"

	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/lib/pq"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqCheckViolation       = "23514"
	pqInvalidText          = "22P02"
)

// MapError translates driver errors into the engine's error categories.
// entity names the record kind in hints, e.g. "invoice".
func MapError(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ierr.WithError(err).
			WithHintf("database operation on %s failed", entity).
			Mark(ierr.ErrDatabase)
	}

	details := map[string]any{
		"entity":     entity,
		"code":       string(pqErr.Code),
		"constraint": pqErr.Constraint,
	}

	switch string(pqErr.Code) {
	case pqSerializationFailure, pqDeadlockDetected:
		return ierr.WithError(err).
			WithHintf("concurrent update of %s, please retry", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrVersionConflict)
	case pqUniqueViolation:
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	case pqForeignKeyViolation, pqCheckViolation, pqInvalidText:
		return ierr.WithError(err).
			WithHintf("%s violates a database constraint", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	default:
		return ierr.WithError(err).
			WithHintf("database operation on %s failed", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrDatabase)
	}
}

// IsRetryable reports whether replaying the whole transaction may succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ierr.IsVersionConflict(err) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == pqSerializationFailure || code == pqDeadlockDetected
	}
	return false
}
