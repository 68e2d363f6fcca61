package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentInput carries a payment before it is recorded.
type PaymentInput struct {
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod PaymentMethod
	Reference     string
	Notes         string
}

// OutstandingBalance is the amount still owed on the invoice.
func OutstandingBalance(inv Invoice) decimal.Decimal {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

// AddPayment records a payment and re-derives the status. The returned Payment is the
// ledger record that was appended.
func (e *Engine) AddPayment(inv Invoice, in PaymentInput) (Invoice, Payment, error) {
	if inv.Status == StatusCancelled {
		return inv, Payment{}, &InvalidStateError{Status: inv.Status, Action: "add a payment to"}
	}
	if !in.Amount.IsPositive() {
		return inv, Payment{}, invalid("amount", "must be greater than zero")
	}
	if !IsCents(in.Amount) {
		return inv, Payment{}, invalid("amount", "must have at most two decimal places")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = MethodOther
	}
	if !in.PaymentMethod.Valid() {
		return inv, Payment{}, invalid("paymentMethod", "unknown payment method "+string(in.PaymentMethod))
	}
	outstanding := OutstandingBalance(inv)
	if in.Amount.GreaterThan(outstanding) {
		return inv, Payment{}, &OverpaymentError{Amount: in.Amount, Outstanding: outstanding}
	}

	now := e.now()
	if in.PaymentDate.IsZero() {
		in.PaymentDate = now
	}
	payment := Payment{
		ID:            uuid.New(),
		PaymentNumber: e.numbers.NextPaymentNumber(),
		Amount:        in.Amount,
		PaymentDate:   in.PaymentDate,
		PaymentMethod: in.PaymentMethod,
		Reference:     strings.TrimSpace(in.Reference),
		Notes:         strings.TrimSpace(in.Notes),
	}

	out := inv.Clone()
	out.Payments = append(out.Payments, payment)
	out.PaidAmount = Round2(out.PaidAmount.Add(payment.Amount))
	out.UpdatedAt = now
	rederive(&out, now)
	return out, payment, nil
}

// PayInFull records a payment for the whole outstanding balance.
func (e *Engine) PayInFull(inv Invoice, in PaymentInput) (Invoice, Payment, error) {
	in.Amount = OutstandingBalance(inv)
	return e.AddPayment(inv, in)
}

// VerifyLedger checks that the paid amount matches the recorded payments and stays
// within the invoice total.
func VerifyLedger(inv Invoice) error {
	paid := decimal.Zero
	for _, p := range inv.Payments {
		paid = paid.Add(p.Amount)
	}
	if !paid.Equal(inv.PaidAmount) {
		return fmt.Errorf("invoicing: paid amount %s does not match payments %s",
			inv.PaidAmount.StringFixed(2), paid.StringFixed(2))
	}
	if inv.PaidAmount.IsNegative() || inv.PaidAmount.GreaterThan(inv.TotalAmount) {
		return fmt.Errorf("invoicing: paid amount %s outside 0..%s",
			inv.PaidAmount.StringFixed(2), inv.TotalAmount.StringFixed(2))
	}
	return nil
}
