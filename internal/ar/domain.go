// Package ar is the receivables service around the invoicing core: persistence,
// per-invoice serialization, payment idempotency, dashboard stats and the JSON API.
package ar

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = fmt.Errorf("ar: invoice %w", shared.ErrNotFound)
	// ErrConcurrentUpdate indicates the stored version moved on since the snapshot was loaded.
	ErrConcurrentUpdate = errors.New("ar: invoice was modified concurrently")
	// ErrDuplicateNumber indicates an invoice number collision.
	ErrDuplicateNumber = errors.New("ar: duplicate invoice number")
)

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// ItemRequest is one invoice row as submitted by the client. Blank rows are allowed
// and dropped during aggregation.
type ItemRequest struct {
	Description string          `json:"description" validate:"max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Unit        string          `json:"unit" validate:"omitempty,oneof=pcs hrs days kg m ft"`
	ProductCode string          `json:"productCode" validate:"max=64"`
}

// CreateInvoiceRequest is the payload for POST /api/invoices.
type CreateInvoiceRequest struct {
	CustomerID     string          `json:"customerId" validate:"required,max=64"`
	InvoiceDate    string          `json:"invoiceDate" validate:"omitempty,datetime=2006-01-02"`
	DueDate        string          `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Items          []ItemRequest   `json:"items" validate:"required,min=1,dive"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Currency       string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Notes          string          `json:"notes" validate:"max=2000"`
}

// UpdateItemsRequest replaces every row of an invoice.
type UpdateItemsRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateDetailsRequest patches document-level fields. Absent fields stay unchanged.
type UpdateDetailsRequest struct {
	CustomerID     *string          `json:"customerId" validate:"omitempty,max=64"`
	TaxRate        *decimal.Decimal `json:"taxRate"`
	DiscountAmount *decimal.Decimal `json:"discountAmount"`
	Currency       *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	DueDate        *string          `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Notes          *string          `json:"notes" validate:"omitempty,max=2000"`
}

// PaymentRequest records a payment against an invoice.
type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod string          `json:"paymentMethod" validate:"omitempty,oneof=cash card bank_transfer check online other"`
	Reference     string          `json:"reference" validate:"max=128"`
	Notes         string          `json:"notes" validate:"max=2000"`
}

// StatusRequest is the payload for POST /api/invoices/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Draft Sent Paid Partial Overdue Cancelled"`
}

// ListInvoicesRequest filters the invoice listing.
type ListInvoicesRequest struct {
	Status     invoicing.Status
	CustomerID string
	Currency   string
	Search     string
	Limit      int
	Offset     int
}

// StatsRow is the slice of an invoice the dashboard needs.
type StatsRow struct {
	ID             uuid.UUID
	Status         invoicing.Status
	IssueStatus    invoicing.Status
	StatusOverride bool
	Currency       string
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal
	DueDate        time.Time
}

// CurrencyTotals aggregates amounts for one currency. Amounts in different currencies
// are never added together.
type CurrencyTotals struct {
	Currency    string          `json:"currency"`
	Invoices    int             `json:"invoices"`
	Invoiced    decimal.Decimal `json:"invoiced"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// DashboardStats summarises the receivables book.
type DashboardStats struct {
	TotalInvoices int                      `json:"totalInvoices"`
	ByStatus      map[invoicing.Status]int `json:"byStatus"`
	Currencies    []CurrencyTotals         `json:"currencies"`
	OverdueCount  int                      `json:"overdueCount"`
	GeneratedAt   time.Time                `json:"generatedAt"`
}

// PaymentEvent is published after a payment has been persisted.
type PaymentEvent struct {
	InvoiceID     uuid.UUID        `json:"invoiceId"`
	InvoiceNumber string           `json:"invoiceNumber"`
	PaymentID     uuid.UUID        `json:"paymentId"`
	PaymentNumber string           `json:"paymentNumber"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Status        invoicing.Status `json:"status"`
}
