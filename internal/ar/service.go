package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

const (
	idempotencyModule = "ar.payment"
	numberAttempts    = 3
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	CreateInvoice(ctx context.Context, inv invoicing.Invoice) (invoicing.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (invoicing.Invoice, error)
	SaveInvoice(ctx context.Context, inv invoicing.Invoice, expectedVersion int64) (invoicing.Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]invoicing.Invoice, int, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	ListStatsRows(ctx context.Context) ([]StatsRow, error)
	NextInvoiceNumber(ctx context.Context, at time.Time) (string, error)
}

// Locker serialises mutations of a single invoice.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// StatsCache stores dashboard stats under a version that is bumped on every mutation.
type StatsCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error
	Bump(ctx context.Context) error
}

// IdempotencyPort guards payment requests against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Notifier is told about applied payments.
type Notifier interface {
	PaymentApplied(ctx context.Context, evt PaymentEvent) error
}

// Recorder receives domain metrics.
type Recorder interface {
	InvoiceCreated()
	PaymentApplied(currency string)
	PaymentRejected(reason string)
}

// ServiceConfig wires optional collaborators.
type ServiceConfig struct {
	Engine          *invoicing.Engine
	Locker          Locker
	Cache           StatsCache
	Idempotency     IdempotencyPort
	Notifier        Notifier
	Recorder        Recorder
	Logger          *slog.Logger
	DefaultCurrency string
}

// Service handles receivables business logic.
type Service struct {
	repo            RepositoryPort
	engine          *invoicing.Engine
	locker          Locker
	cache           StatsCache
	idempotency     IdempotencyPort
	notifier        Notifier
	recorder        Recorder
	logger          *slog.Logger
	validate        *validator.Validate
	defaultCurrency string
	statsGroup      singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = invoicing.NewEngine()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		repo:            repo,
		engine:          engine,
		locker:          cfg.Locker,
		cache:           cfg.Cache,
		idempotency:     cfg.Idempotency,
		notifier:        cfg.Notifier,
		recorder:        cfg.Recorder,
		logger:          logger.With(slog.String("module", "ar")),
		validate:        newValidator(),
		defaultCurrency: currency,
	}
}

// CreateInvoice validates the request, derives totals and persists a numbered Draft.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (invoicing.Invoice, error) {
	if err := s.check(req); err != nil {
		return invoicing.Invoice{}, err
	}
	input := invoicing.CreateInput{
		CustomerID:     req.CustomerID,
		Items:          toLineItems(req.Items),
		TaxRate:        req.TaxRate,
		DiscountAmount: req.DiscountAmount,
		Currency:       req.Currency,
		Notes:          req.Notes,
	}
	if input.Currency == "" {
		input.Currency = s.defaultCurrency
	}
	var err error
	if input.InvoiceDate, err = parseDate("invoiceDate", req.InvoiceDate); err != nil {
		return invoicing.Invoice{}, err
	}
	if input.DueDate, err = parseDate("dueDate", req.DueDate); err != nil {
		return invoicing.Invoice{}, err
	}

	draft, err := s.engine.CreateInvoice(input)
	if err != nil {
		return invoicing.Invoice{}, err
	}

	for attempt := 1; ; attempt++ {
		number, err := s.repo.NextInvoiceNumber(ctx, draft.InvoiceDate)
		if err != nil {
			return invoicing.Invoice{}, fmt.Errorf("ar: next invoice number: %w", err)
		}
		numbered, err := s.engine.AssignNumber(draft, number)
		if err != nil {
			return invoicing.Invoice{}, err
		}
		saved, err := s.repo.CreateInvoice(ctx, numbered)
		if errors.Is(err, ErrDuplicateNumber) && attempt < numberAttempts {
			s.logger.Warn("invoice number collision", slog.String("number", number), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return invoicing.Invoice{}, fmt.Errorf("ar: create invoice: %w", err)
		}
		s.logger.Info("invoice created",
			slog.String("invoice_id", saved.ID.String()),
			slog.String("invoice_number", saved.InvoiceNumber),
			slog.String("total", saved.TotalAmount.StringFixed(2)),
			slog.String("currency", saved.Currency))
		if s.recorder != nil {
			s.recorder.InvoiceCreated()
		}
		s.invalidateStats(ctx)
		return saved, nil
	}
}

// UpdateItems replaces the rows of an editable invoice.
func (s *Service) UpdateItems(ctx context.Context, id uuid.UUID, req UpdateItemsRequest) (invoicing.Invoice, error) {
	if err := s.check(req); err != nil {
		return invoicing.Invoice{}, err
	}
	items := toLineItems(req.Items)
	return s.mutate(ctx, id, "update items", func(inv invoicing.Invoice) (invoicing.Invoice, error) {
		return s.engine.UpdateInvoiceItems(inv, items)
	})
}

// UpdateDetails patches customer, tax rate, discount, currency, due date and notes.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, req UpdateDetailsRequest) (invoicing.Invoice, error) {
	if err := s.check(req); err != nil {
		return invoicing.Invoice{}, err
	}
	patch := invoicing.DetailsPatch{
		CustomerID:     req.CustomerID,
		TaxRate:        req.TaxRate,
		DiscountAmount: req.DiscountAmount,
		Currency:       req.Currency,
		Notes:          req.Notes,
	}
	if req.DueDate != nil {
		due, err := parseDate("dueDate", *req.DueDate)
		if err != nil {
			return invoicing.Invoice{}, err
		}
		patch.DueDate = &due
	}
	return s.mutate(ctx, id, "update details", func(inv invoicing.Invoice) (invoicing.Invoice, error) {
		return s.engine.UpdateDetails(inv, patch)
	})
}

// RemoveItem drops one row of an editable invoice.
func (s *Service) RemoveItem(ctx context.Context, id uuid.UUID, index int) (invoicing.Invoice, error) {
	return s.mutate(ctx, id, "remove item", func(inv invoicing.Invoice) (invoicing.Invoice, error) {
		return s.engine.RemoveItem(inv, index)
	})
}

// RecordPayment applies a payment. A non-empty idempotency key makes replays fail with
// shared.ErrIdempotencyConflict instead of paying twice.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, req PaymentRequest, idempotencyKey string) (invoicing.Invoice, invoicing.Payment, error) {
	if err := s.check(req); err != nil {
		s.rejected(err)
		return invoicing.Invoice{}, invoicing.Payment{}, err
	}
	input, err := toPaymentInput(req)
	if err != nil {
		s.rejected(err)
		return invoicing.Invoice{}, invoicing.Payment{}, err
	}
	return s.applyPayment(ctx, id, idempotencyKey, func(inv invoicing.Invoice) (invoicing.Invoice, invoicing.Payment, error) {
		return s.engine.AddPayment(inv, input)
	})
}

// PayInFull records a payment for the whole outstanding balance. The amount in req is
// ignored.
func (s *Service) PayInFull(ctx context.Context, id uuid.UUID, req PaymentRequest, idempotencyKey string) (invoicing.Invoice, invoicing.Payment, error) {
	req.Amount = decimal.Zero
	if err := s.check(req); err != nil {
		s.rejected(err)
		return invoicing.Invoice{}, invoicing.Payment{}, err
	}
	input, err := toPaymentInput(req)
	if err != nil {
		s.rejected(err)
		return invoicing.Invoice{}, invoicing.Payment{}, err
	}
	return s.applyPayment(ctx, id, idempotencyKey, func(inv invoicing.Invoice) (invoicing.Invoice, invoicing.Payment, error) {
		return s.engine.PayInFull(inv, input)
	})
}

func (s *Service) applyPayment(ctx context.Context, id uuid.UUID, key string, apply func(invoicing.Invoice) (invoicing.Invoice, invoicing.Payment, error)) (invoicing.Invoice, invoicing.Payment, error) {
	key = strings.TrimSpace(key)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.rejected(err)
			}
			return invoicing.Invoice{}, invoicing.Payment{}, err
		}
	}

	var payment invoicing.Payment
	saved, err := s.mutate(ctx, id, "record payment", func(inv invoicing.Invoice) (invoicing.Invoice, error) {
		next, p, err := apply(inv)
		if err != nil {
			return inv, err
		}
		payment = p
		return next, nil
	})
	if err != nil {
		s.rejected(err)
		if key != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return invoicing.Invoice{}, invoicing.Payment{}, err
	}

	s.logger.Info("payment applied",
		slog.String("invoice_id", saved.ID.String()),
		slog.String("payment_number", payment.PaymentNumber),
		slog.String("amount", payment.Amount.StringFixed(2)),
		slog.String("status", string(saved.Status)))
	if s.recorder != nil {
		s.recorder.PaymentApplied(saved.Currency)
	}
	if s.notifier != nil {
		evt := PaymentEvent{
			InvoiceID:     saved.ID,
			InvoiceNumber: saved.InvoiceNumber,
			PaymentID:     payment.ID,
			PaymentNumber: payment.PaymentNumber,
			Amount:        payment.Amount,
			Currency:      saved.Currency,
			Status:        saved.Status,
		}
		if err := s.notifier.PaymentApplied(ctx, evt); err != nil {
			s.logger.Warn("notify payment applied", slog.String("invoice_id", saved.ID.String()), slog.Any("error", err))
		}
	}
	return saved, payment, nil
}

// ChangeStatus applies an explicit status transition.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, req StatusRequest) (invoicing.Invoice, error) {
	if err := s.check(req); err != nil {
		return invoicing.Invoice{}, err
	}
	target := invoicing.Status(req.Status)
	return s.mutate(ctx, id, "change status", func(inv invoicing.Invoice) (invoicing.Invoice, error) {
		return s.engine.SetStatus(inv, target)
	})
}

// GetInvoice loads one invoice with its status re-derived against the current time.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (invoicing.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return invoicing.Invoice{}, err
	}
	inv, _ = s.engine.RefreshStatus(inv)
	return inv, nil
}

// ListInvoices returns a page of invoices and the total match count.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]invoicing.Invoice, shared.Pagination, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, shared.Pagination{}, &invoicing.ValidationError{Field: "status", Reason: "unknown status " + string(req.Status)}
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	invoices, total, err := s.repo.ListInvoices(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("ar: list invoices: %w", err)
	}
	for i := range invoices {
		invoices[i], _ = s.engine.RefreshStatus(invoices[i])
	}
	return invoices, shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total), nil
}

// SweepOverdue persists the Overdue status of open invoices that passed their due date
// and returns how many changed.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	ids, err := s.repo.ListOverdueCandidates(ctx, s.engine.Now())
	if err != nil {
		return 0, fmt.Errorf("ar: overdue candidates: %w", err)
	}
	changed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		moved := false
		_, err := s.mutate(ctx, id, "sweep overdue", func(inv invoicing.Invoice) (invoicing.Invoice, error) {
			next, ok := s.engine.RefreshStatus(inv)
			moved = ok
			return next, nil
		})
		switch {
		case errors.Is(err, ErrLocked), errors.Is(err, ErrConcurrentUpdate):
			s.logger.Info("skip busy invoice during sweep", slog.String("invoice_id", id.String()))
			continue
		case err != nil:
			return changed, err
		}
		if moved {
			changed++
		}
	}
	return changed, nil
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, action string, fn func(invoicing.Invoice) (invoicing.Invoice, error)) (invoicing.Invoice, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.InvoiceLockKey(id))
		if err != nil {
			return invoicing.Invoice{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release invoice lock", slog.String("invoice_id", id.String()), slog.Any("error", err))
			}
		}()
	}

	current, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return invoicing.Invoice{}, err
	}
	next, err := fn(current)
	if err != nil {
		s.logger.Debug("invoice operation refused",
			slog.String("invoice_id", id.String()),
			slog.String("action", action),
			slog.Any("error", err))
		return invoicing.Invoice{}, err
	}
	saved, err := s.repo.SaveInvoice(ctx, next, current.Version)
	if err != nil {
		return invoicing.Invoice{}, fmt.Errorf("ar: %s: %w", action, err)
	}
	s.invalidateStats(ctx)
	return saved, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("bump stats cache", slog.Any("error", err))
	}
}

func (s *Service) rejected(err error) {
	if s.recorder == nil || err == nil {
		return
	}
	switch {
	case errors.Is(err, invoicing.ErrOverpayment):
		s.recorder.PaymentRejected("overpayment")
	case errors.Is(err, invoicing.ErrValidation):
		s.recorder.PaymentRejected("validation")
	case errors.Is(err, invoicing.ErrInvalidState):
		s.recorder.PaymentRejected("invalid_state")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		s.recorder.PaymentRejected("duplicate")
	}
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &invoicing.ValidationError{Field: fieldPath(fe), Reason: describeTag(fe)}
		}
		return err
	}
	return nil
}

func toLineItems(items []ItemRequest) []invoicing.LineItem {
	out := make([]invoicing.LineItem, len(items))
	for i, item := range items {
		out[i] = invoicing.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Unit:        invoicing.Unit(item.Unit),
			ProductCode: strings.TrimSpace(item.ProductCode),
			SortOrder:   i,
		}
	}
	return out
}

func toPaymentInput(req PaymentRequest) (invoicing.PaymentInput, error) {
	paidAt, err := parseDate("paymentDate", req.PaymentDate)
	if err != nil {
		return invoicing.PaymentInput{}, err
	}
	return invoicing.PaymentInput{
		Amount:        req.Amount,
		PaymentDate:   paidAt,
		PaymentMethod: invoicing.PaymentMethod(req.PaymentMethod),
		Reference:     req.Reference,
		Notes:         req.Notes,
	}, nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &invoicing.ValidationError{Field: field, Reason: "must be a date formatted YYYY-MM-DD"}
	}
	return t, nil
}
