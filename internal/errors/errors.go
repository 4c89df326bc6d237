package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error categories shared by every engine operation. Domain packages keep
// their own sentinels and mark them with one of these through the builder.
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = new(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict  = new(ErrCodeVersionConflict, "version conflict")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrDataIntegrity    = new(ErrCodeDataIntegrity, "data integrity error")
	ErrTransient        = new(ErrCodeTransient, "transient failure")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")

	// exit codes used by the operator CLI, ordered from most to least specific
	exitCodes = []struct {
		err  error
		code int
	}{
		{ErrValidation, 2},
		{ErrNotFound, 3},
		{ErrAlreadyExists, 4},
		{ErrInvalidOperation, 5},
		{ErrDataIntegrity, 6},
		{ErrTransient, 7},
		{ErrVersionConflict, 7},
		{ErrDatabase, 8},
		{ErrSystem, 1},
	}
)

const (
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeVersionConflict  = "version_conflict"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeDataIntegrity    = "data_integrity_error"
	ErrCodeTransient        = "transient_error"
	ErrCodeDatabase         = "database_error"
)

// InternalError represents an error category
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Code returns the machine-readable category code of err
func Code(err error) string {
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.err.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}

// ExitCodeFromErr maps an error category to a process exit code
func ExitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return 1
}

// DisplayMessage returns the hints attached to err, falling back to the error text
func DisplayMessage(err error) string {
	if hint := errors.FlattenHints(err); hint != "" {
		return hint
	}
	return err.Error()
}
