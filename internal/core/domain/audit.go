// internal/core/domain/audit.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an audited business action
type AuditAction string

const (
	AuditItemArrival   AuditAction = "ItemArrival"
	AuditStockAdjusted AuditAction = "StockAdjusted"
	AuditStockRemoved  AuditAction = "StockRemoved"
	AuditSaleCreated   AuditAction = "SaleCreated"
	AuditSaleVoided    AuditAction = "SaleVoided"
	AuditAlertResolved AuditAction = "AlertResolved"
)

// Audited entity types
const (
	EntityProduct = "product"
	EntitySale    = "sale"
	EntityAlert   = "alert"
)

// AuditEntry is one row of the audit trail
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	Action     AuditAction    `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewAuditEntry builds an entry stamped with at
func NewAuditEntry(action AuditAction, entityType, entityID, actorID string, details map[string]any, at time.Time) AuditEntry {
	return AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Details:    details,
		CreatedAt:  at,
	}
}
