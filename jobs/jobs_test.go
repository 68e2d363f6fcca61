package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/ar"
	"github.com/odyssey-erp/backoffice/internal/invoicing"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSweeper struct {
	changed int
	err     error
	calls   int
}

func (s *stubSweeper) SweepOverdue(context.Context) (int, error) {
	s.calls++
	return s.changed, s.err
}

type stubBumper struct {
	bumps int
	err   error
}

func (b *stubBumper) Bump(context.Context) error {
	b.bumps++
	return b.err
}

func TestOverdueSweepJob(t *testing.T) {
	sweeper := &stubSweeper{changed: 3}
	job := NewOverdueSweepJob(sweeper, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.WithClock(func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) })

	require.NoError(t, job.Handle(context.Background(), NewOverdueSweepTask()))
	require.Equal(t, 1, sweeper.calls)

	sweeper.err = errors.New("db down")
	require.ErrorIs(t, job.Handle(context.Background(), NewOverdueSweepTask()), sweeper.err)
}

func TestOverdueSweepJobRequiresService(t *testing.T) {
	var job *OverdueSweepJob
	require.Error(t, job.Handle(context.Background(), NewOverdueSweepTask()))
}

type stubPurger struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (p *stubPurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.olderThan = olderThan
	return p.removed, p.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	purger := &stubPurger{removed: 4}
	job := NewIdempotencyCleanupJob(purger, 168*time.Hour, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 168*time.Hour, purger.olderThan)

	purger.err = errors.New("db down")
	require.ErrorIs(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()), purger.err)

	job.Retention = 0
	require.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
}

func TestPaymentAppliedTaskRoundTrip(t *testing.T) {
	evt := ar.PaymentEvent{
		InvoiceID:     uuid.New(),
		InvoiceNumber: "INV-202503-00001",
		PaymentID:     uuid.New(),
		PaymentNumber: "PAY-1",
		Amount:        decimal.RequireFromString("133.05"),
		Currency:      "USD",
		Status:        invoicing.StatusPaid,
	}

	task, err := NewPaymentAppliedTask(evt)
	require.NoError(t, err)
	require.Equal(t, TaskPaymentApplied, task.Type())

	var decoded ar.PaymentEvent
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, evt.PaymentID, decoded.PaymentID)
	require.True(t, decoded.Amount.Equal(evt.Amount))

	bumper := &stubBumper{}
	job := NewPaymentAppliedJob(bumper, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, bumper.bumps)
}

func TestPaymentAppliedJobFailures(t *testing.T) {
	bumper := &stubBumper{err: errors.New("redis down")}
	job := NewPaymentAppliedJob(bumper, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskPaymentApplied, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, bumper.bumps)

	task, err := NewPaymentAppliedTask(ar.PaymentEvent{PaymentID: uuid.New()})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), bumper.err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{"no inspector", nil, http.StatusOK, 0},
		{"queue info", stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, http.StatusOK, 4},
		{"queue not created yet", stubInspector{err: asynq.ErrQueueNotFound}, http.StatusOK, 0},
		{"redis down", stubInspector{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, quietLogger()).MountRoutes)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

			require.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				var body queueHealth
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				require.Equal(t, tc.pending, body.Pending)
			}
		})
	}
}
