package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/backoffice/internal/ar"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep persists Overdue on open invoices past their due date.
	TaskOverdueSweep = "invoice:overdue_sweep"
	// TaskPaymentApplied follows up on a persisted payment.
	TaskPaymentApplied = "invoice:payment_applied"
	// TaskIdempotencyCleanup purges expired payment idempotency keys.
	TaskIdempotencyCleanup = "invoice:idempotency_cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NewOverdueSweepTask constructs the sweep task. The sweep covers every open invoice
// so it carries no payload.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1), asynq.Timeout(5*time.Minute))
}

// NewPaymentAppliedTask constructs the follow-up task for a payment. The payment ID is
// used as task ID so a payment is announced once.
func NewPaymentAppliedTask(evt ar.PaymentEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentApplied, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(evt.PaymentID.String()),
		asynq.MaxRetry(5),
	), nil
}

// NewIdempotencyCleanupTask constructs the key purge task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(time.Minute))
}
