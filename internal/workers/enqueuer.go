// internal/workers/enqueuer.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// TaskEnqueuer is the subset of *asynq.Client the API process needs
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands post-commit effects to the worker process
type Enqueuer struct {
	client TaskEnqueuer
	logger *slog.Logger
}

var (
	_ ports.EventPublisher   = (*Enqueuer)(nil)
	_ ports.ReceiptScheduler = (*Enqueuer)(nil)
)

// NewEnqueuer creates a new task enqueuer
func NewEnqueuer(client TaskEnqueuer, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		client: client,
		logger: logger.With(slog.String("component", "enqueuer")),
	}
}

// Publish queues an event for broadcasting
func (e *Enqueuer) Publish(ctx context.Context, event domain.EventName, payload any) error {
	task, err := NewEventTask(event, payload)
	if err != nil {
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", event, err)
	}

	e.logger.DebugContext(ctx, "event queued",
		slog.String("event", string(event)),
		slog.String("task_id", info.ID))

	return nil
}

// ScheduleReceipt queues rendering of the sale's digital receipt
func (e *Enqueuer) ScheduleReceipt(ctx context.Context, saleID uuid.UUID) error {
	task, err := NewReceiptTask(saleID)
	if err != nil {
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(10),
		asynq.TaskID("receipt:"+saleID.String()),
		asynq.Retention(24*time.Hour))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue receipt for %s: %w", saleID, err)
	}

	e.logger.DebugContext(ctx, "receipt queued",
		slog.String("sale_id", saleID.String()),
		slog.String("task_id", info.ID))

	return nil
}
