// internal/workers/event_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// EventProcessor fans queued events out to subscribers
type EventProcessor struct {
	broadcaster ports.EventPublisher
	dashboard   ports.DashboardService
	logger      *slog.Logger
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(broadcaster ports.EventPublisher, dashboard ports.DashboardService, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		broadcaster: broadcaster,
		dashboard:   dashboard,
		logger:      logger.With(slog.String("processor", "event")),
	}
}

// ProcessTask handles event:publish
func (p *EventProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload EventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Event == "" {
		return fmt.Errorf("event name is empty: %w", asynq.SkipRetry)
	}

	// Invalidate before broadcasting so subscribers refetch fresh numbers.
	if payload.Event == domain.EventDashboardChanged && p.dashboard != nil {
		if err := p.dashboard.Invalidate(ctx); err != nil {
			return fmt.Errorf("failed to invalidate dashboard: %w", err)
		}
	}

	if err := p.broadcaster.Publish(ctx, payload.Event, payload.Payload); err != nil {
		return fmt.Errorf("failed to broadcast %s: %w", payload.Event, err)
	}

	p.logger.DebugContext(ctx, "event broadcast",
		slog.String("event", string(payload.Event)))

	return nil
}
