/*
errors.go - Error taxonomy of the payroll ledger

PURPOSE:
  A closed set of error kinds. Callers branch with errors.Is on the
  sentinels or errors.As on the structured types; nothing inspects
  message text. Human-readable messages for HTTP clients are produced
  in api/errors.go, not here.

ERROR KINDS:
  ValidationError             bad input, every violated field listed
  EmployeeNotFoundError       missing or soft-deleted employee (same answer for both)
  InsufficientBalanceError    withdrawal above the current balance
  NothingToSettleError        settlement with balance <= 0
  StoreUnavailableError       no connection could be acquired
  ErrNoChanges                empty directory patch

SEE ALSO:
  - validation.go: builds ValidationError
  - api/errors.go: maps kinds to HTTP status codes
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrAmountSuspicious       = errors.New("amount above sanity ceiling")
	ErrEmployeeNotFound       = errors.New("employee not found or inactive")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNothingToSettle        = errors.New("nothing to settle")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrNoChanges              = errors.New("no changes to apply")
)

// =============================================================================
// VALIDATION
// =============================================================================

// Violation codes carried by FieldViolation.Code.
const (
	CodeRequired               = "required"
	CodeInvalid                = "invalid"
	CodeOutOfRange             = "out_of_range"
	CodeInvalidTransactionType = "invalid_transaction_type"
	CodeAmountNotPositive      = "amount_not_positive"
	CodeAmountPrecision        = "amount_precision"
	CodeAmountSuspicious       = "amount_suspicious"
	CodeInvalidEmployeeID      = "invalid_employee_id"
)

// FieldViolation is one failed rule on one input field.
type FieldViolation struct {
	Field   string
	Code    string
	Message string
	Value   any
}

// ValidationError lists every violated field of a rejected input.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrValidation and the sentinel of any violation code.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	for _, v := range e.Violations {
		switch {
		case v.Code == CodeInvalidTransactionType && target == ErrInvalidTransactionType:
			return true
		case v.Code == CodeAmountSuspicious && target == ErrAmountSuspicious:
			return true
		}
	}
	return false
}

// Fields returns the distinct field names in violation order.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]bool, len(e.Violations))
	var fields []string
	for _, v := range e.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			fields = append(fields, v.Field)
		}
	}
	return fields
}

// HasCode reports whether any violation carries code.
func (e *ValidationError) HasCode(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Merge adds the violations carried by other for fields e does not list yet.
// other may be nil or any error; only a *ValidationError contributes.
func (e *ValidationError) Merge(other error) *ValidationError {
	var ve *ValidationError
	if !errors.As(other, &ve) {
		return e
	}
	listed := make(map[string]bool, len(e.Violations))
	for _, v := range e.Violations {
		listed[v.Field] = true
	}
	for _, v := range ve.Violations {
		if !listed[v.Field] {
			e.Violations = append(e.Violations, v)
		}
	}
	return e
}

type violations []FieldViolation

func (vs *violations) add(field, code, message string, value any) {
	*vs = append(*vs, FieldViolation{Field: field, Code: code, Message: message, Value: value})
}

func (vs violations) err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type EmployeeNotFoundError struct {
	EmployeeID int64
}

func (e *EmployeeNotFoundError) Error() string {
	return fmt.Sprintf("employee %d not found or inactive", e.EmployeeID)
}

func (e *EmployeeNotFoundError) Unwrap() error { return ErrEmployeeNotFound }

// InsufficientBalanceError provides details about a rejected withdrawal.
type InsufficientBalanceError struct {
	EmployeeID int64
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		FormatMoney(e.Requested), FormatMoney(e.Available))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

type NothingToSettleError struct {
	EmployeeID int64
	Balance    decimal.Decimal
}

func (e *NothingToSettleError) Error() string {
	return fmt.Sprintf("nothing to settle: balance is %s", FormatMoney(e.Balance))
}

func (e *NothingToSettleError) Unwrap() error { return ErrNothingToSettle }

// StoreUnavailableError wraps the cause of a failed connection checkout.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNothingToSettle) ||
		errors.Is(err, ErrNoChanges) ||
		errors.Is(err, ErrEmployeeNotFound)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound)
}
