/*
errors.go - Error types for the projection engine

ERROR CATEGORIES:
  1. Validation errors - malformed or length-mismatched inputs. The run
     does not proceed.
  2. Invariant errors - an accounting identity failed by more than a cent.
     This is an engine defect. Returned only under PolicyStrict; under
     PolicyWarn the violations ride along in Model.Violations.

  Undefined ratios (DSCR, IRR, payback) are NOT errors. See sentinel.go.

USAGE:
  model, err := engine.Run(inputs, engine.WithPolicy(engine.PolicyStrict))
  var verr *engine.ValidationError
  if errors.As(err, &verr) {
      // 400 to the caller
  }
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("invalid engine inputs")

	// ErrInvariant wraps accounting identity failures under PolicyStrict.
	ErrInvariant = errors.New("accounting invariant violated")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LengthMismatch reports a per-year array whose length disagrees with the horizon.
func LengthMismatch(field string, expected, got int) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("expected %d yearly values, got %d", expected, got),
	}
}

// InvariantViolation is one failed identity check.
type InvariantViolation struct {
	Check string `json:"check"` // e.g. "balance_sheet", "cash_identity"
	Year  int    `json:"year"`
	Delta string `json:"delta"` // discrepancy, decimal string
}

func (v InvariantViolation) String() string {
	return fmt.Sprintf("%s failed in %d (off by %s)", v.Check, v.Year, v.Delta)
}

// InvariantError carries every violation found in a strict run.
type InvariantError struct {
	Violations []InvariantViolation
}

func (e *InvariantError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "accounting invariant violated: " + strings.Join(parts, "; ")
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if err came from input validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvariant returns true if err is an invariant failure.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}
