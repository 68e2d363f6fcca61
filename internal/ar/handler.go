package ar

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/backoffice/internal/invoicing"
	"github.com/odyssey-erp/backoffice/internal/invoicing/format"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// IdempotencyHeader carries the client supplied key for payment requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the receivables JSON API.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	defaultLocale string
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, defaultLocale string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLocale == "" {
		defaultLocale = "en-US"
	}
	return &Handler{logger: logger, service: service, defaultLocale: defaultLocale}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/", h.listInvoices)
	r.Get("/stats", h.stats)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getInvoice)
		r.Get("/view", h.viewInvoice)
		r.Patch("/", h.updateDetails)
		r.Put("/items", h.updateItems)
		r.Delete("/items/{index}", h.removeItem)
		r.Post("/payments", h.recordPayment)
		r.Post("/pay-in-full", h.payInFull)
		r.Post("/status", h.changeStatus)
	})
}

type listResponse struct {
	Invoices   []invoicing.Invoice `json:"invoices"`
	Pagination shared.Pagination   `json:"pagination"`
}

type paymentResponse struct {
	Invoice invoicing.Invoice `json:"invoice"`
	Payment invoicing.Payment `json:"payment"`
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/invoices/"+inv.ID.String())
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListInvoicesRequest{
		Status:     invoicing.Status(q.Get("status")),
		CustomerID: q.Get("customerId"),
		Currency:   q.Get("currency"),
		Search:     strings.TrimSpace(q.Get("q")),
	}
	var err error
	if req.Limit, err = intParam(q.Get("limit")); err != nil {
		h.fail(w, r, &invoicing.ValidationError{Field: "limit", Reason: "must be an integer"})
		return
	}
	if req.Offset, err = intParam(q.Get("offset")); err != nil {
		h.fail(w, r, &invoicing.ValidationError{Field: "offset", Reason: "must be an integer"})
		return
	}
	invoices, page, err := h.service.ListInvoices(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []invoicing.Invoice{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Invoices: invoices, Pagination: page})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) viewInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = h.defaultLocale
	}
	httpx.JSON(w, http.StatusOK, NewInvoiceView(inv, format.NewPrinter(locale)))
}

func (h *Handler) updateDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req UpdateDetailsRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.UpdateDetails(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req UpdateItemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.UpdateItems(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.fail(w, r, &invoicing.ValidationError{Field: "index", Reason: "must be an integer"})
		return
	}
	inv, err := h.service.RemoveItem(r.Context(), id, index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, payment, err := h.service.RecordPayment(r.Context(), id, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse{Invoice: inv, Payment: payment})
}

func (h *Handler) payInFull(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	inv, payment, err := h.service.PayInFull(r.Context(), id, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse{Invoice: inv, Payment: payment})
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.ChangeStatus(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		h.fail(w, r, fmt.Errorf("%w: malformed JSON body: %v", httpx.ErrBadRequest, err))
		return false
	}
	return true
}

// fail writes the problem document for err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr  *invoicing.ValidationError
		overpaymentErr *invoicing.OverpaymentError
		stateErr       *invoicing.InvalidStateError
	)
	switch {
	case errors.As(err, &validationErr):
		problem := httpx.ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: validationErr.Reason,
		}
		if validationErr.Field != "" {
			problem.Errors = map[string]string{validationErr.Field: validationErr.Reason}
		}
		httpx.WriteProblem(w, problem)
	case errors.As(err, &overpaymentErr):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Type:   "overpayment",
			Title:  "Overpayment",
			Status: http.StatusUnprocessableEntity,
			Detail: fmt.Sprintf("payment %s exceeds outstanding balance %s",
				overpaymentErr.Amount.StringFixed(2), overpaymentErr.Outstanding.StringFixed(2)),
		})
	case errors.As(err, &stateErr):
		httpx.Problem(w, http.StatusConflict, "Invalid State",
			fmt.Sprintf("cannot %s an invoice in status %s", stateErr.Action, stateErr.Status))
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "payment with this idempotency key was already processed")
	case errors.Is(err, ErrConcurrentUpdate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "invoice was modified concurrently, retry the request")
	case errors.Is(err, ErrLocked):
		httpx.Problem(w, http.StatusLocked, "Locked", "invoice is being modified by another request")
	default:
		if !errors.Is(err, httpx.ErrBadRequest) {
			h.logger.Error("invoice request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
