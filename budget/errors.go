/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is(); structured variants carry context
  and unwrap to the sentinels.

ERROR CATEGORIES:
  1. Validation errors - malformed input, recoverable by caller correction
  2. Not-found errors  - missing period or category, trigger a setup flow
  3. Storage failures  - persistence problems, propagated unmodified

SEE ALSO:
  - engine.go: Raises these errors
  - store/sqlite: Wraps database failures as ErrStorage
*/
package budget

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: negative amounts,
	// non-positive periods, zero or negative spend postings. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when no active pay period exists or a
	// referenced period is absent. Callers surface a setup flow.
	ErrNotFound = errors.New("not found")

	// ErrCategoryNotFound is returned when a fixed-cost posting targets a
	// category with no allocation in the period. A configuration gap,
	// surfaced rather than silently dropped.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrStorage is returned when the persistence layer fails. The engine
	// performs no retries; those belong to the storage collaborator.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CategoryNotFoundError identifies the missing allocation.
type CategoryNotFoundError struct {
	PayPeriodID PayPeriodID
	Category    string
}

func (e *CategoryNotFoundError) Error() string {
	return fmt.Sprintf("no allocation for category %q in period %s", e.Category, e.PayPeriodID)
}

func (e *CategoryNotFoundError) Unwrap() error { return ErrCategoryNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// StorageError marks err as a storage failure while preserving it for
// errors.Is/As. Store implementations wrap their database errors with this;
// the engine passes them through untouched.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, err))
}
