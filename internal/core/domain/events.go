// internal/core/domain/events.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventName identifies a post-commit broadcast
type EventName string

const (
	EventSaleCompleted    EventName = "sale.completed"
	EventSaleVoided       EventName = "sale.voided"
	EventDashboardChanged EventName = "dashboard.changed"
	EventStockLow         EventName = "stock.low"
)

// SaleEvent is the payload of sale.completed and sale.voided
type SaleEvent struct {
	SaleID      uuid.UUID       `json:"sale_id"`
	Code        string          `json:"code"`
	OperatorID  string          `json:"operator_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	Voided      bool            `json:"voided"`
	VoidedBy    string          `json:"voided_by,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewSaleEvent summarizes s for broadcasting
func NewSaleEvent(s *Sale, at time.Time) SaleEvent {
	count := 0
	for _, it := range s.Items {
		count += it.Quantity
	}
	return SaleEvent{
		SaleID:      s.ID,
		Code:        s.Code,
		OperatorID:  s.OperatorID,
		TotalAmount: s.TotalAmount,
		ItemCount:   count,
		Voided:      s.Voided,
		VoidedBy:    s.VoidedBy,
		OccurredAt:  at,
	}
}

// DashboardEvent is the payload of dashboard.changed
type DashboardEvent struct {
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StockLowEvent is the payload of stock.low
type StockLowEvent struct {
	AlertID       uuid.UUID `json:"alert_id"`
	ProductID     uuid.UUID `json:"product_id"`
	ProductCode   string    `json:"product_code"`
	ProductName   string    `json:"product_name"`
	Type          AlertType `json:"type"`
	Severity      Severity  `json:"severity"`
	StockQuantity int       `json:"stock_quantity"`
}

// NewStockLowEvent builds the payload for a raised stock alert
func NewStockLowEvent(a *Alert) StockLowEvent {
	return StockLowEvent{
		AlertID:       a.ID,
		ProductID:     a.ProductID,
		ProductCode:   a.ProductCode,
		ProductName:   a.ProductName,
		Type:          a.Type,
		Severity:      a.Severity,
		StockQuantity: a.StockQuantity,
	}
}

// DashboardSummary is the cached point-of-sale overview for one day
type DashboardSummary struct {
	Date           string          `json:"date"`
	SalesCount     int             `json:"sales_count"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
	VoidedCount    int             `json:"voided_count"`
	VoidedTotal    decimal.Decimal `json:"voided_total"`
	ItemsSold      int             `json:"items_sold"`
	ActiveAlerts   int             `json:"active_alerts"`
	CriticalAlerts int             `json:"critical_alerts"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
