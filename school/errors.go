/*
errors.go - Centralized error types for the school engines

PURPOSE:
  All error kinds in one place. The engines surface four kinds:
  1. Not-found errors    - a referenced student/fee/grade/payment id missing
  2. Validation errors   - malformed or out-of-range input
  3. Policy violations   - input is well-formed but the rules forbid it
  4. Transaction failures - the atomic operation could not commit

PROPAGATION:
  Validation and not-found errors are detected before any mutation.
  Policy violations abort before any write. Retryable conflicts trigger a
  bounded automatic retry of the whole atomic operation (see RunInTx in
  store.go) before surfacing ErrTransactionFailed.

USAGE:
  if school.IsNotFound(err) { ... 404 ... }
  var polErr *school.PolicyError
  if errors.As(err, &polErr) { ... polErr.Message ... }
*/
package school

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the base of every missing-reference error.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the base of every malformed-input error.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyViolation is the base of every rule-based rejection
	// (wrong term, fee already fully paid, student delete while
	// payments reference it).
	ErrPolicyViolation = errors.New("policy violation")

	// ErrConflict is returned when the store detects a concurrent
	// writer. Operations built on it are idempotent given the same
	// inputs, so RunInTx retries a bounded number of times.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrTransactionFailed is surfaced after retries are exhausted or
	// the store cannot commit for a non-retryable reason.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which reference was missing.
type NotFoundError struct {
	Kind string // "student", "fee", "grade", "payment", "credit"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError identifies the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PolicyError is a rule-based rejection with a stable code.
type PolicyError struct {
	Code    string // "wrong_term", "fee_fully_paid", "student_has_payments"
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }

// WrongTermError rejects a payment against a non-active term,
// naming the term that would be accepted.
func WrongTermError(got, want Term) *PolicyError {
	return &PolicyError{
		Code:    "wrong_term",
		Message: fmt.Sprintf("fee is for %s; payments are only accepted for the active term %s", got, want),
	}
}

// FullyPaidError rejects a payment against a fee that is already settled.
func FullyPaidError(feeID FeeID) *PolicyError {
	return &PolicyError{
		Code:    "fee_fully_paid",
		Message: fmt.Sprintf("fee %s is already fully paid; no further payments accepted", feeID),
	}
}

// =============================================================================
// ERROR CLASSIFIERS
// =============================================================================

func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool      { return errors.Is(err, ErrValidation) }
func IsPolicyViolation(err error) bool { return errors.Is(err, ErrPolicyViolation) }

// IsRetryable reports whether the operation might succeed if replayed.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }
