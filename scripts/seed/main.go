package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/ar"
)

type demoPayment struct {
	amount string
	full   bool
}

type demoInvoice struct {
	customer string
	currency string
	ageDays  int
	termDays int
	taxRate  string
	discount string
	items    []ar.ItemRequest
	status   string
	payments []demoPayment
}

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.AutoMigrate = true
	logger := app.NewLogger(cfg)

	infra, closeInfra, err := app.OpenInfra(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open infrastructure: %v", err)
	}
	defer closeInfra()

	receivables, err := app.NewReceivables(ctx, cfg, logger, infra, nil, nil)
	if err != nil {
		log.Fatalf("init receivables: %v", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i, demo := range demoInvoices() {
		fmt.Printf("→ Seeding invoice %d for %s...\n", i+1, demo.customer)
		if err := seedInvoice(ctx, receivables.Service, today, demo); err != nil {
			log.Fatalf("seed invoice %d: %v", i+1, err)
		}
	}

	changed, err := receivables.Service.SweepOverdue(ctx)
	if err != nil {
		log.Fatalf("sweep overdue: %v", err)
	}
	fmt.Printf("✓ Seed complete, %d invoice(s) marked overdue\n", changed)
}

func seedInvoice(ctx context.Context, svc *ar.Service, today time.Time, demo demoInvoice) error {
	issued := today.AddDate(0, 0, -demo.ageDays)
	inv, err := svc.CreateInvoice(ctx, ar.CreateInvoiceRequest{
		CustomerID:     demo.customer,
		InvoiceDate:    issued.Format(time.DateOnly),
		DueDate:        issued.AddDate(0, 0, demo.termDays).Format(time.DateOnly),
		Items:          demo.items,
		TaxRate:        decimal.RequireFromString(demo.taxRate),
		DiscountAmount: decimal.RequireFromString(demo.discount),
		Currency:       demo.currency,
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if demo.status != "" {
		if _, err := svc.ChangeStatus(ctx, inv.ID, ar.StatusRequest{Status: demo.status}); err != nil {
			return fmt.Errorf("status %s: %w", demo.status, err)
		}
	}
	for i, p := range demo.payments {
		req := ar.PaymentRequest{PaymentMethod: "bank_transfer", Reference: fmt.Sprintf("SEED-%s-%d", inv.InvoiceNumber, i+1)}
		if p.full {
			_, _, err = svc.PayInFull(ctx, inv.ID, req, "")
		} else {
			req.Amount = decimal.RequireFromString(p.amount)
			_, _, err = svc.RecordPayment(ctx, inv.ID, req, "")
		}
		if err != nil {
			return fmt.Errorf("payment %d: %w", i+1, err)
		}
	}
	return nil
}

func item(description, quantity, unitPrice, unit string) ar.ItemRequest {
	return ar.ItemRequest{
		Description: description,
		Quantity:    decimal.RequireFromString(quantity),
		UnitPrice:   decimal.RequireFromString(unitPrice),
		Unit:        unit,
	}
}

func demoInvoices() []demoInvoice {
	return []demoInvoice{
		{
			customer: "CUST-ACME",
			currency: "USD",
			ageDays:  3,
			termDays: 30,
			taxRate:  "10",
			discount: "5",
			items:    []ar.ItemRequest{item("Widget", "2", "50.00", "pcs"), item("Gadget", "1", "25.50", "pcs")},
		},
		{
			customer: "CUST-GLOBEX",
			currency: "USD",
			ageDays:  12,
			termDays: 30,
			taxRate:  "8.25",
			discount: "0",
			items:    []ar.ItemRequest{item("Consulting", "12.5", "120.00", "hrs")},
			status:   "Sent",
			payments: []demoPayment{{amount: "500.00"}},
		},
		{
			customer: "CUST-INITECH",
			currency: "EUR",
			ageDays:  45,
			termDays: 14,
			taxRate:  "19",
			discount: "20",
			items:    []ar.ItemRequest{item("Support plan", "1", "899.00", "pcs"), item("On-site visit", "2", "350.00", "days")},
			status:   "Sent",
		},
		{
			customer: "CUST-UMBRELLA",
			currency: "EUR",
			ageDays:  20,
			termDays: 30,
			taxRate:  "0",
			discount: "0",
			items:    []ar.ItemRequest{item("Cable", "150", "2.40", "m")},
			status:   "Sent",
			payments: []demoPayment{{full: true}},
		},
		{
			customer: "CUST-HOOLI",
			currency: "USD",
			ageDays:  7,
			termDays: 30,
			taxRate:  "5",
			discount: "0",
			items:    []ar.ItemRequest{item("Hardware", "3", "75.99", "kg")},
			status:   "Cancelled",
		},
	}
}
