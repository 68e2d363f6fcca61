package invoicing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("invoicing: validation failed")
	// ErrOverpayment matches every *OverpaymentError.
	ErrOverpayment = errors.New("invoicing: payment exceeds outstanding balance")
	// ErrInvalidState matches every *InvalidStateError.
	ErrInvalidState = errors.New("invoicing: invalid invoice state")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invoicing: " + e.Reason
	}
	return fmt.Sprintf("invoicing: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OverpaymentError reports a payment larger than the outstanding balance.
type OverpaymentError struct {
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("invoicing: payment %s exceeds outstanding balance %s",
		e.Amount.StringFixed(2), e.Outstanding.StringFixed(2))
}

// Is lets errors.Is(err, ErrOverpayment) succeed.
func (e *OverpaymentError) Is(target error) bool {
	return target == ErrOverpayment
}

// InvalidStateError reports a mutation the current status does not allow.
type InvalidStateError struct {
	Status Status
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invoicing: cannot %s an invoice in status %s", e.Action, e.Status)
}

// Is lets errors.Is(err, ErrInvalidState) succeed.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
