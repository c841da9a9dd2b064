// internal/core/services/effects.go
package services

import (
	"context"
	"log/slog"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// Effects runs the post-commit phase. Every failure is logged and dropped:
// by the time effects run the business operation is already durable.
type Effects struct {
	publisher ports.EventPublisher
	receipts  ports.ReceiptScheduler
	logger    *slog.Logger
	now       Clock
}

// NewEffects creates the post-commit effects runner. receipts may be nil.
func NewEffects(publisher ports.EventPublisher, receipts ports.ReceiptScheduler, logger *slog.Logger) *Effects {
	return &Effects{
		publisher: publisher,
		receipts:  receipts,
		logger:    logger.With(slog.String("component", "effects")),
		now:       utcNow,
	}
}

// SaleCompleted announces a committed sale and queues its receipt
func (e *Effects) SaleCompleted(ctx context.Context, sale *domain.Sale) {
	ctx = context.WithoutCancel(ctx)
	e.publish(ctx, domain.EventSaleCompleted, domain.NewSaleEvent(sale, e.now()))
	e.dashboardChanged(ctx, string(domain.EventSaleCompleted))

	if e.receipts == nil {
		return
	}
	if err := e.receipts.ScheduleReceipt(ctx, sale.ID); err != nil {
		e.logger.WarnContext(ctx, "failed to schedule receipt",
			slog.String("sale_code", sale.Code),
			slog.Any("error", err))
	}
}

// SaleVoided announces a void
func (e *Effects) SaleVoided(ctx context.Context, sale *domain.Sale) {
	ctx = context.WithoutCancel(ctx)
	e.publish(ctx, domain.EventSaleVoided, domain.NewSaleEvent(sale, e.now()))
	e.dashboardChanged(ctx, string(domain.EventSaleVoided))
}

// AlertsChanged announces newly raised stock alerts and refreshes dashboards
func (e *Effects) AlertsChanged(ctx context.Context, raised []*domain.Alert) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range raised {
		if !a.Type.IsStockAlert() {
			continue
		}
		e.publish(ctx, domain.EventStockLow, domain.NewStockLowEvent(a))
	}
	e.dashboardChanged(ctx, "alerts")
}

func (e *Effects) dashboardChanged(ctx context.Context, reason string) {
	e.publish(ctx, domain.EventDashboardChanged, domain.DashboardEvent{
		Reason:     reason,
		OccurredAt: e.now(),
	})
}

func (e *Effects) publish(ctx context.Context, event domain.EventName, payload any) {
	if err := e.publisher.Publish(ctx, event, payload); err != nil {
		e.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event", string(event)),
			slog.Any("error", err))
	}
}
