package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the engine's failure taxonomy. Callers classify with
// errors.Is; wrapped messages carry the specifics.
var (
	// ErrNotFound: a referenced type, block, document or link does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLimitExceeded: the type's per-document multiplicity cap is reached.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrConflict: deleting a still-referenced block, or linking a block twice.
	ErrConflict = errors.New("conflict")
	// ErrDatabaseError: a gateway-layer failure, presumed transient.
	ErrDatabaseError = errors.New("database error")
	// ErrUnauthorized: ownership or visibility violation on edit.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument: an operation argument (usually a position) is out of range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEditCancelled: the shared-block decision was Cancel.
	ErrEditCancelled = errors.New("edit cancelled")
)

// ValidationError carries the ordered field errors from a failed validation.
type ValidationError struct {
	Type   BlockType
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Type, strings.Join(parts, "; "))
}

// NewValidationError wraps a failed ValidationResult.
func NewValidationError(t BlockType, res ValidationResult) error {
	return &ValidationError{Type: t, Errors: res.Errors}
}

// IsRetryable reports whether the error is transient and worth retrying.
// Only gateway failures are; invariant and lookup failures are final.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}
