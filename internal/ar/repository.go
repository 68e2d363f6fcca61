package ar

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
)

//go:embed schema.sql
var schemaDDL string

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the receivables tables when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return db.ApplySchema(ctx, r.pool, schemaDDL)
}

const invoiceColumns = `
	id, invoice_number, customer_id, invoice_date, due_date,
	tax_rate::text, discount_amount::text, sub_total::text, tax_amount::text,
	total_amount::text, paid_amount::text, currency, status, issue_status,
	status_override, notes, version, created_at, updated_at`

// CreateInvoice inserts a new invoice with its rows at version 1.
func (r *Repository) CreateInvoice(ctx context.Context, inv invoicing.Invoice) (invoicing.Invoice, error) {
	inv.Version = 1
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (
				id, invoice_number, customer_id, invoice_date, due_date,
				tax_rate, discount_amount, sub_total, tax_amount, total_amount, paid_amount,
				currency, status, issue_status, status_override, notes, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
			inv.ID, inv.InvoiceNumber, inv.CustomerID, inv.InvoiceDate, inv.DueDate,
			inv.TaxRate.String(), inv.DiscountAmount.String(), inv.SubTotal.String(), inv.TaxAmount.String(),
			inv.TotalAmount.String(), inv.PaidAmount.String(),
			inv.Currency, string(inv.Status), string(inv.IssueStatus), inv.StatusOverride, inv.Notes,
			inv.Version, inv.CreatedAt, inv.UpdatedAt,
		)
		if err != nil {
			if db.IsUniqueViolation(err, "invoices_invoice_number_key") {
				return ErrDuplicateNumber
			}
			return err
		}
		if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
			return err
		}
		return insertPayments(ctx, tx, inv.ID, inv.Payments)
	})
	if err != nil {
		return invoicing.Invoice{}, err
	}
	return inv, nil
}

// GetInvoice loads an invoice with its rows and payments.
func (r *Repository) GetInvoice(ctx context.Context, id uuid.UUID) (invoicing.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return invoicing.Invoice{}, ErrNotFound
	}
	if err != nil {
		return invoicing.Invoice{}, err
	}
	if inv.Items, err = r.listItems(ctx, id); err != nil {
		return invoicing.Invoice{}, err
	}
	if inv.Payments, err = r.listPayments(ctx, id); err != nil {
		return invoicing.Invoice{}, err
	}
	return inv, nil
}

// SaveInvoice writes a new snapshot when the stored version still equals
// expectedVersion. Rows are replaced; payments are append-only.
func (r *Repository) SaveInvoice(ctx context.Context, inv invoicing.Invoice, expectedVersion int64) (invoicing.Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE invoices SET
				customer_id = $3, due_date = $4, tax_rate = $5, discount_amount = $6,
				sub_total = $7, tax_amount = $8, total_amount = $9, paid_amount = $10,
				currency = $11, status = $12, issue_status = $13, status_override = $14,
				notes = $15, updated_at = $16, version = version + 1
			WHERE id = $1 AND version = $2`,
			inv.ID, expectedVersion,
			inv.CustomerID, inv.DueDate, inv.TaxRate.String(), inv.DiscountAmount.String(),
			inv.SubTotal.String(), inv.TaxAmount.String(), inv.TotalAmount.String(), inv.PaidAmount.String(),
			inv.Currency, string(inv.Status), string(inv.IssueStatus), inv.StatusOverride,
			inv.Notes, inv.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentUpdate
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
			return err
		}
		return insertPayments(ctx, tx, inv.ID, inv.Payments)
	})
	if err != nil {
		return invoicing.Invoice{}, err
	}
	inv.Version = expectedVersion + 1
	return inv, nil
}

// ListInvoices returns invoice headers without rows or payments, newest first.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]invoicing.Invoice, int, error) {
	query := `SELECT ` + invoiceColumns + `, COUNT(*) OVER() FROM invoices WHERE 1=1`
	args := []any{}
	argNum := 1

	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.CustomerID != "" {
		query += fmt.Sprintf(" AND customer_id = $%d", argNum)
		args = append(args, req.CustomerID)
		argNum++
	}
	if req.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argNum)
		args = append(args, strings.ToUpper(req.Currency))
		argNum++
	}
	if req.Search != "" {
		query += fmt.Sprintf(" AND (invoice_number ILIKE $%d OR customer_id ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+req.Search+"%")
		argNum++
	}

	query += " ORDER BY invoice_date DESC, invoice_number DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		invoices []invoicing.Invoice
		total    int
	)
	for rows.Next() {
		var count int
		inv, err := scanInvoiceWith(rows, &count)
		if err != nil {
			return nil, 0, err
		}
		total = count
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ListOverdueCandidates returns open, issued invoices whose due date passed before asOf
// and whose stored status is not yet Overdue.
func (r *Repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM invoices
		WHERE status IN ('Draft', 'Sent')
			AND status_override = FALSE
			AND due_date < $1
			AND paid_amount < total_amount
		ORDER BY due_date`, asOf)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// ListStatsRows returns the fields the dashboard aggregates.
func (r *Repository) ListStatsRows(ctx context.Context) ([]StatsRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, status, issue_status, status_override, currency,
			total_amount::text, paid_amount::text, due_date
		FROM invoices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var (
			row           StatsRow
			status, issue string
			total, paid   string
		)
		if err := rows.Scan(&row.ID, &status, &issue, &row.StatusOverride, &row.Currency, &total, &paid, &row.DueDate); err != nil {
			return nil, err
		}
		row.Status = invoicing.Status(status)
		row.IssueStatus = invoicing.Status(issue)
		if row.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("ar: parse total_amount: %w", err)
		}
		if row.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("ar: parse paid_amount: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// NextInvoiceNumber issues INV-YYYYMM-NNNNN numbers from a per-month counter.
func (r *Repository) NextInvoiceNumber(ctx context.Context, at time.Time) (string, error) {
	period := at.Format("200601")
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoice_number_seq (period, last_value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET last_value = invoice_number_seq.last_value + 1
		RETURNING last_value`, period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(at, seq), nil
}

// FormatInvoiceNumber renders the human-facing invoice number.
func FormatInvoiceNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%05d", at.Format("200601"), seq)
}

func (r *Repository) listItems(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sort_order, description, quantity::text, unit_price::text, line_total::text, unit, product_code
		FROM invoice_items WHERE invoice_id = $1 ORDER BY sort_order`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []invoicing.LineItem{}
	for rows.Next() {
		var (
			item                    invoicing.LineItem
			qty, price, total, unit string
		)
		if err := rows.Scan(&item.SortOrder, &item.Description, &qty, &price, &total, &unit, &item.ProductCode); err != nil {
			return nil, err
		}
		if err := parseDecimals(map[string]*decimal.Decimal{
			"quantity":   &item.Quantity,
			"unit_price": &item.UnitPrice,
			"line_total": &item.LineTotal,
		}, map[string]string{"quantity": qty, "unit_price": price, "line_total": total}); err != nil {
			return nil, err
		}
		item.Unit = invoicing.Unit(unit)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) listPayments(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payment_number, amount::text, payment_date, payment_method, reference, notes
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY created_at, payment_number`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []invoicing.Payment{}
	for rows.Next() {
		var (
			p              invoicing.Payment
			amount, method string
		)
		if err := rows.Scan(&p.ID, &p.PaymentNumber, &amount, &p.PaymentDate, &method, &p.Reference, &p.Notes); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ar: parse payment amount: %w", err)
		}
		p.PaymentMethod = invoicing.PaymentMethod(method)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, items []invoicing.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO invoice_items (invoice_id, sort_order, description, quantity, unit_price, line_total, unit, product_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			invoiceID, item.SortOrder, item.Description, item.Quantity.String(), item.UnitPrice.String(),
			item.LineTotal.String(), string(item.Unit), item.ProductCode)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func insertPayments(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, payments []invoicing.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range payments {
		batch.Queue(`
			INSERT INTO invoice_payments (id, invoice_id, payment_number, amount, payment_date, payment_method, reference, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, invoiceID, p.PaymentNumber, p.Amount.String(), p.PaymentDate, string(p.PaymentMethod), p.Reference, p.Notes)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func scanInvoice(row pgx.Row) (invoicing.Invoice, error) {
	return scanInvoiceWith(row)
}

func scanInvoiceWith(row pgx.Row, extra ...any) (invoicing.Invoice, error) {
	var (
		inv                              invoicing.Invoice
		taxRate, discount, sub, tax      string
		total, paid, status, issueStatus string
	)
	dest := []any{
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.InvoiceDate, &inv.DueDate,
		&taxRate, &discount, &sub, &tax, &total, &paid, &inv.Currency, &status, &issueStatus,
		&inv.StatusOverride, &inv.Notes, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return invoicing.Invoice{}, err
	}
	if err := parseDecimals(map[string]*decimal.Decimal{
		"tax_rate":        &inv.TaxRate,
		"discount_amount": &inv.DiscountAmount,
		"sub_total":       &inv.SubTotal,
		"tax_amount":      &inv.TaxAmount,
		"total_amount":    &inv.TotalAmount,
		"paid_amount":     &inv.PaidAmount,
	}, map[string]string{
		"tax_rate":        taxRate,
		"discount_amount": discount,
		"sub_total":       sub,
		"tax_amount":      tax,
		"total_amount":    total,
		"paid_amount":     paid,
	}); err != nil {
		return invoicing.Invoice{}, err
	}
	inv.Currency = strings.TrimSpace(inv.Currency)
	inv.Status = invoicing.Status(status)
	inv.IssueStatus = invoicing.Status(issueStatus)
	return inv, nil
}

func parseDecimals(dest map[string]*decimal.Decimal, raw map[string]string) error {
	for column, target := range dest {
		value, err := decimal.NewFromString(raw[column])
		if err != nil {
			return fmt.Errorf("ar: parse %s: %w", column, err)
		}
		*target = value
	}
	return nil
}
