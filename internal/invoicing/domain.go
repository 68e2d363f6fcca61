// Package invoicing holds the invoice financial engine: line and document totals, the
// payment ledger and the invoice status state machine. It performs no I/O; every
// mutating operation takes an Invoice snapshot and returns a new one.
package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSent      Status = "Sent"
	StatusPaid      Status = "Paid"
	StatusPartial   Status = "Partial"
	StatusOverdue   Status = "Overdue"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusPartial, StatusOverdue, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusPartial, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Unit is the presentation unit of a line item.
type Unit string

const (
	UnitPieces Unit = "pcs"
	UnitHours  Unit = "hrs"
	UnitDays   Unit = "days"
	UnitKilo   Unit = "kg"
	UnitMeter  Unit = "m"
	UnitFeet   Unit = "ft"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitPieces, UnitHours, UnitDays, UnitKilo, UnitMeter, UnitFeet:
		return true
	}
	return false
}

// PaymentMethod enumerates how a payment was received.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodOnline       PaymentMethod = "online"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodCheck, MethodOnline, MethodOther:
		return true
	}
	return false
}

// LineItem is one row of an invoice. LineTotal is derived by the calculator.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Unit        Unit            `json:"unit"`
	ProductCode string          `json:"productCode,omitempty"`
	SortOrder   int             `json:"sortOrder"`
}

// Payment is an immutable ledger record applied to an invoice.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	PaymentNumber string          `json:"paymentNumber"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"paymentDate"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Reference     string          `json:"reference,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// Invoice is the aggregate snapshot. SubTotal, TaxAmount, TotalAmount, PaidAmount and
// Status are derived and never authored directly by callers.
type Invoice struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	CustomerID     string          `json:"customerId"`
	InvoiceDate    time.Time       `json:"invoiceDate"`
	DueDate        time.Time       `json:"dueDate"`
	Items          []LineItem      `json:"items"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	SubTotal       decimal.Decimal `json:"subTotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Currency       string          `json:"currency"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	Status         Status          `json:"status"`
	// IssueStatus is the last explicit Draft/Sent choice; derivation falls back to it.
	IssueStatus Status `json:"issueStatus"`
	// StatusOverride marks a manual Paid/Partial/Overdue correction.
	StatusOverride bool      `json:"statusOverride"`
	Payments       []Payment `json:"payments"`
	Notes          string    `json:"notes,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.Items != nil {
		out.Items = append([]LineItem(nil), inv.Items...)
	}
	if inv.Payments != nil {
		out.Payments = append([]Payment(nil), inv.Payments...)
	}
	return out
}

// Totals is the aggregator output.
type Totals struct {
	SubTotal    decimal.Decimal `json:"subTotal"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}
