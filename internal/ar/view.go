package ar

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/invoicing/format"
)

// InvoiceView is an invoice rendered for display in one locale.
type InvoiceView struct {
	ID            uuid.UUID        `json:"id"`
	InvoiceNumber string           `json:"invoiceNumber"`
	CustomerID    string           `json:"customerId"`
	Locale        string           `json:"locale"`
	Status        invoicing.Status `json:"status"`
	Editable      bool             `json:"editable"`
	InvoiceDate   string           `json:"invoiceDate"`
	DueDate       string           `json:"dueDate"`
	Items         []ItemView       `json:"items"`
	SubTotal      string           `json:"subTotal"`
	TaxRate       string           `json:"taxRate"`
	TaxAmount     string           `json:"taxAmount"`
	Discount      string           `json:"discount"`
	Total         string           `json:"total"`
	Paid          string           `json:"paid"`
	Outstanding   string           `json:"outstanding"`
	Payments      []PaymentView    `json:"payments"`
}

// ItemView is one formatted row.
type ItemView struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
}

// PaymentView is one formatted payment.
type PaymentView struct {
	PaymentNumber string `json:"paymentNumber"`
	Date          string `json:"date"`
	Method        string `json:"method"`
	Amount        string `json:"amount"`
	Reference     string `json:"reference,omitempty"`
}

// NewInvoiceView formats inv with p.
func NewInvoiceView(inv invoicing.Invoice, p *format.Printer) InvoiceView {
	view := InvoiceView{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		Locale:        p.Locale(),
		Status:        inv.Status,
		Editable:      invoicing.IsEditable(inv.Status),
		InvoiceDate:   p.Date(inv.InvoiceDate),
		DueDate:       p.Date(inv.DueDate),
		Items:         make([]ItemView, 0, len(inv.Items)),
		SubTotal:      p.Currency(inv.SubTotal, inv.Currency),
		TaxRate:       inv.TaxRate.String() + "%",
		TaxAmount:     p.Currency(inv.TaxAmount, inv.Currency),
		Discount:      p.Currency(inv.DiscountAmount, inv.Currency),
		Total:         p.Currency(inv.TotalAmount, inv.Currency),
		Paid:          p.Currency(inv.PaidAmount, inv.Currency),
		Outstanding:   p.Currency(invoicing.OutstandingBalance(inv), inv.Currency),
		Payments:      make([]PaymentView, 0, len(inv.Payments)),
	}
	for _, item := range inv.Items {
		view.Items = append(view.Items, ItemView{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			Unit:        string(item.Unit),
			UnitPrice:   p.Currency(item.UnitPrice, inv.Currency),
			LineTotal:   p.Currency(item.LineTotal, inv.Currency),
		})
	}
	for _, pay := range inv.Payments {
		view.Payments = append(view.Payments, PaymentView{
			PaymentNumber: pay.PaymentNumber,
			Date:          p.Date(pay.PaymentDate),
			Method:        string(pay.PaymentMethod),
			Amount:        p.Currency(pay.Amount, inv.Currency),
			Reference:     pay.Reference,
		})
	}
	return view
}
