package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()

	require.NoError(t, metrics.Jobs().Track("invoice:overdue_sweep").End(nil))
	_ = metrics.Jobs().Track("invoice:overdue_sweep").End(errors.New("db down"))

	body := scrape(t, metrics)
	require.Contains(t, body, `backoffice_jobs_total{job="invoice:overdue_sweep",status="success"} 1`)
	require.Contains(t, body, `backoffice_jobs_failures_total{job="invoice:overdue_sweep"} 1`)
}

func TestMetricsRecordsInvoiceEvents(t *testing.T) {
	metrics := NewMetrics()

	metrics.InvoiceCreated()
	metrics.PaymentApplied("usd")
	metrics.PaymentApplied("USD")
	metrics.PaymentRejected("overpayment")

	body := scrape(t, metrics)
	require.Contains(t, body, "backoffice_invoices_created_total 1")
	require.Contains(t, body, `backoffice_payments_applied_total{currency="USD"} 2`)
	require.Contains(t, body, `backoffice_payment_rejections_total{reason="overpayment"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics

	metrics.InvoiceCreated()
	metrics.PaymentApplied("USD")
	metrics.PaymentRejected("validation")
	require.Nil(t, metrics.Jobs())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/invoices/{id}")

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `backoffice_http_requests_total{code="418",route="/api/invoices/{id}"} 1`)
	require.Contains(t, body, `backoffice_http_request_duration_seconds_bucket{route="/api/invoices/{id}"`)
}
