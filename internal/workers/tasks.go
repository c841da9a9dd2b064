// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
)

// Task types
const (
	TypeEventPublish     = "event:publish"
	TypeReceiptRender    = "receipt:render"
	TypeAlertsRun        = "alerts:run"
	TypeCleanupAlerts    = "cleanup:alerts"
	TypeCleanupTempFiles = "cleanup:temp"
)

// Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// EventPayload carries a post-commit event to the broadcaster
type EventPayload struct {
	Event   domain.EventName `json:"event"`
	Payload json.RawMessage  `json:"payload"`
}

// ReceiptPayload identifies the sale whose receipt should be rendered
type ReceiptPayload struct {
	SaleID uuid.UUID `json:"sale_id"`
}

// NewEventTask builds an event:publish task
func NewEventTask(event domain.EventName, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	b, err := json.Marshal(EventPayload{Event: event, Payload: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal EventPayload: %w", err)
	}
	return asynq.NewTask(TypeEventPublish, b), nil
}

// NewReceiptTask builds a receipt:render task
func NewReceiptTask(saleID uuid.UUID) (*asynq.Task, error) {
	b, err := json.Marshal(ReceiptPayload{SaleID: saleID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ReceiptPayload: %w", err)
	}
	return asynq.NewTask(TypeReceiptRender, b), nil
}
