package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/backoffice/internal/ar"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

// CacheBumper invalidates cached dashboard figures.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// PaymentAppliedJob bumps the stats cache version after a payment so every API
// instance subscribed to the bump channel drops its view of the dashboard.
type PaymentAppliedJob struct {
	Cache   CacheBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPaymentAppliedJob constructs the job handler.
func NewPaymentAppliedJob(cache CacheBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *PaymentAppliedJob {
	return &PaymentAppliedJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPaymentApplied tasks.
func (j *PaymentAppliedJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("payment applied: dependencies not configured")
	}
	var evt ar.PaymentEvent
	if err := json.Unmarshal(task.Payload(), &evt); err != nil {
		return fmt.Errorf("payment applied: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskPaymentApplied)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Cache.Bump(ctx); err != nil {
		resultErr = err
		j.log().Error("bump stats cache", slog.String("invoice_id", evt.InvoiceID.String()), slog.Any("error", err))
		return resultErr
	}
	j.log().Info("payment applied",
		slog.String("invoice_id", evt.InvoiceID.String()),
		slog.String("invoice_number", evt.InvoiceNumber),
		slog.String("payment_number", evt.PaymentNumber),
		slog.String("amount", evt.Amount.StringFixed(2)),
		slog.String("currency", evt.Currency),
		slog.String("status", string(evt.Status)))
	return resultErr
}

func (j *PaymentAppliedJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PaymentAppliedJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPaymentApplied))
	}
	return slog.Default().With(slog.String("job", TaskPaymentApplied))
}
