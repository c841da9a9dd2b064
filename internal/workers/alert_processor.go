// internal/workers/alert_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// AlertProcessor runs the periodic stock and expiry evaluation
type AlertProcessor struct {
	alerts ports.AlertService
	logger *slog.Logger
}

// NewAlertProcessor creates a new alert processor
func NewAlertProcessor(alerts ports.AlertService, logger *slog.Logger) *AlertProcessor {
	return &AlertProcessor{
		alerts: alerts,
		logger: logger.With(slog.String("processor", "alerts")),
	}
}

// ProcessTask handles alerts:run
func (p *AlertProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	active, err := p.alerts.RunAlertChecks(ctx)
	if err != nil {
		return fmt.Errorf("alert checks failed: %w", err)
	}

	p.logger.InfoContext(ctx, "periodic alert checks finished",
		slog.Int("active_alerts", len(active)))

	return nil
}
