package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Engine applies invoice operations against a clock and a payment number source.
type Engine struct {
	now     func() time.Time
	numbers NumberSource
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for status derivation and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithNumberSource overrides the payment number generator.
func WithNumberSource(src NumberSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.numbers = src
		}
	}
}

// NewEngine builds an Engine using the wall clock and random payment numbers unless
// overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, numbers: uuidNumbers{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now exposes the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// CreateInput is the author-supplied part of a new invoice.
type CreateInput struct {
	CustomerID     string
	InvoiceDate    time.Time
	DueDate        time.Time
	Items          []LineItem
	TaxRate        decimal.Decimal
	DiscountAmount decimal.Decimal
	Currency       string
	Notes          string
}

// DetailsPatch changes document-level fields. Nil fields are left untouched.
type DetailsPatch struct {
	CustomerID     *string
	TaxRate        *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Currency       *string
	DueDate        *time.Time
	Notes          *string
}

func (p DetailsPatch) structural() bool {
	return p.CustomerID != nil || p.TaxRate != nil || p.DiscountAmount != nil || p.Currency != nil
}

// NormalizeCurrency validates an ISO 4217 code and returns it upper-cased.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", invalid("currency", "is required")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", invalid("currency", "unknown ISO 4217 code "+code)
	}
	return unit.String(), nil
}

// CreateInvoice builds a fully derived Draft invoice.
func (e *Engine) CreateInvoice(in CreateInput) (Invoice, error) {
	customer := strings.TrimSpace(in.CustomerID)
	if customer == "" {
		return Invoice{}, invalid("customerId", "is required")
	}
	code, err := NormalizeCurrency(in.Currency)
	if err != nil {
		return Invoice{}, err
	}
	now := e.now()
	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = now
	}
	if in.DueDate.IsZero() {
		return Invoice{}, invalid("dueDate", "is required")
	}
	if in.DueDate.Before(truncateDay(invoiceDate)) {
		return Invoice{}, invalid("dueDate", "must not be before the invoice date")
	}
	totals, rows, err := Aggregate(in.Items, in.TaxRate, in.DiscountAmount)
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		ID:             uuid.New(),
		CustomerID:     customer,
		InvoiceDate:    invoiceDate,
		DueDate:        in.DueDate,
		Items:          rows,
		TaxRate:        in.TaxRate,
		DiscountAmount: in.DiscountAmount,
		SubTotal:       totals.SubTotal,
		TaxAmount:      totals.TaxAmount,
		TotalAmount:    totals.TotalAmount,
		Currency:       code,
		PaidAmount:     decimal.Zero,
		Status:         StatusDraft,
		IssueStatus:    StatusDraft,
		Payments:       []Payment{},
		Notes:          strings.TrimSpace(in.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rederive(&inv, now)
	return inv, nil
}

// UpdateInvoiceItems replaces the rows and recomputes every total.
func (e *Engine) UpdateInvoiceItems(inv Invoice, items []LineItem) (Invoice, error) {
	if err := e.requireEditable(inv, "edit items of"); err != nil {
		return inv, err
	}
	return e.reaggregate(inv, items, inv.TaxRate, inv.DiscountAmount)
}

// RemoveItem drops one persisted row. The last row of an invoice cannot be removed.
func (e *Engine) RemoveItem(inv Invoice, index int) (Invoice, error) {
	if err := e.requireEditable(inv, "remove items from"); err != nil {
		return inv, err
	}
	rows, err := ItemList(inv.Items).RemoveItem(index)
	if err != nil {
		return inv, err
	}
	return e.reaggregate(inv, rows, inv.TaxRate, inv.DiscountAmount)
}

// UpdateDetails applies a document-level patch. Customer, tax rate, discount and
// currency follow the editability gate; due date and notes may change in any status,
// Cancelled included.
func (e *Engine) UpdateDetails(inv Invoice, patch DetailsPatch) (Invoice, error) {
	if patch.structural() {
		if err := e.requireEditable(inv, "edit details of"); err != nil {
			return inv, err
		}
	}

	out := inv.Clone()
	if patch.CustomerID != nil {
		customer := strings.TrimSpace(*patch.CustomerID)
		if customer == "" {
			return inv, invalid("customerId", "is required")
		}
		out.CustomerID = customer
	}
	if patch.Currency != nil {
		code, err := NormalizeCurrency(*patch.Currency)
		if err != nil {
			return inv, err
		}
		out.Currency = code
	}
	if patch.DueDate != nil {
		if patch.DueDate.IsZero() {
			return inv, invalid("dueDate", "is required")
		}
		if patch.DueDate.Before(truncateDay(out.InvoiceDate)) {
			return inv, invalid("dueDate", "must not be before the invoice date")
		}
		out.DueDate = *patch.DueDate
	}
	if patch.Notes != nil {
		out.Notes = strings.TrimSpace(*patch.Notes)
	}

	taxRate, discount := out.TaxRate, out.DiscountAmount
	if patch.TaxRate != nil {
		taxRate = *patch.TaxRate
	}
	if patch.DiscountAmount != nil {
		discount = *patch.DiscountAmount
	}
	if patch.TaxRate != nil || patch.DiscountAmount != nil {
		return e.reaggregate(out, out.Items, taxRate, discount)
	}

	now := e.now()
	out.UpdatedAt = now
	rederive(&out, now)
	return out, nil
}

// requireEditable gates structural edits on the status derived at the engine clock, so
// an open invoice past its due date counts as Overdue before any sweep persists it.
func (e *Engine) requireEditable(inv Invoice, action string) error {
	status := DeriveStatus(inv, e.now())
	if !IsEditable(status) {
		return &InvalidStateError{Status: status, Action: action}
	}
	return nil
}

func (e *Engine) reaggregate(inv Invoice, items []LineItem, taxRate, discount decimal.Decimal) (Invoice, error) {
	totals, rows, err := Aggregate(items, taxRate, discount)
	if err != nil {
		return inv, err
	}
	if totals.TotalAmount.LessThan(inv.PaidAmount) {
		return inv, invalid("items", "total "+totals.TotalAmount.StringFixed(2)+
			" would fall below the amount already paid "+inv.PaidAmount.StringFixed(2))
	}
	out := inv.Clone()
	out.Items = rows
	out.TaxRate = taxRate
	out.DiscountAmount = discount
	out.SubTotal = totals.SubTotal
	out.TaxAmount = totals.TaxAmount
	out.TotalAmount = totals.TotalAmount
	now := e.now()
	out.UpdatedAt = now
	rederive(&out, now)
	return out, nil
}

// SetStatus applies an explicit status change.
func (e *Engine) SetStatus(inv Invoice, status Status) (Invoice, error) {
	if !status.Valid() {
		return inv, invalid("status", "unknown status "+string(status))
	}
	if inv.Status == StatusCancelled {
		return inv, &InvalidStateError{Status: inv.Status, Action: "change the status of"}
	}

	out := inv.Clone()
	now := e.now()
	switch status {
	case StatusDraft, StatusSent:
		out.IssueStatus = status
		out.StatusOverride = false
		out.Status = status
		rederive(&out, now)
	case StatusCancelled:
		out.StatusOverride = false
		out.Status = StatusCancelled
	default:
		out.StatusOverride = true
		out.Status = status
	}
	out.UpdatedAt = now
	return out, nil
}

// RefreshStatus re-derives the status against the engine clock and reports whether it
// changed.
func (e *Engine) RefreshStatus(inv Invoice) (Invoice, bool) {
	next := DeriveStatus(inv, e.now())
	if next == inv.Status {
		return inv, false
	}
	out := inv.Clone()
	out.Status = next
	out.UpdatedAt = e.now()
	return out, true
}

// AssignNumber sets the human-facing invoice number. A number can be assigned once.
func (e *Engine) AssignNumber(inv Invoice, number string) (Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return inv, invalid("invoiceNumber", "is required")
	}
	if inv.InvoiceNumber != "" {
		return inv, &InvalidStateError{Status: inv.Status, Action: "renumber"}
	}
	out := inv.Clone()
	out.InvoiceNumber = number
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
