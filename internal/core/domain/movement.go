// internal/core/domain/movement.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MovementType is the direction of a stock movement
type MovementType string

const (
	MovementInbound  MovementType = "inbound"
	MovementOutbound MovementType = "outbound"
)

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	return t == MovementInbound || t == MovementOutbound
}

// ReferenceType names the source of a stock movement
type ReferenceType string

const (
	ReferenceSale          ReferenceType = "sale"
	ReferenceReturn        ReferenceType = "return"
	ReferencePurchaseOrder ReferenceType = "purchase_order"
	ReferenceAdjustment    ReferenceType = "adjustment"
)

// Valid reports whether r is a known reference type
func (r ReferenceType) Valid() bool {
	switch r {
	case ReferenceSale, ReferenceReturn, ReferencePurchaseOrder, ReferenceAdjustment:
		return true
	}
	return false
}

// StockMovement is one immutable ledger entry. Quantity is signed: negative
// for outbound movements, so summing a product's movements yields its stock.
type StockMovement struct {
	ID               uuid.UUID     `json:"id"`
	ProductID        uuid.UUID     `json:"product_id"`
	MovementType     MovementType  `json:"movement_type"`
	Quantity         int           `json:"quantity"`
	PreviousQuantity int           `json:"previous_quantity"`
	NewQuantity      int           `json:"new_quantity"`
	ReferenceType    ReferenceType `json:"reference_type"`
	ReferenceID      string        `json:"reference_id,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
}

// MovementInput describes a requested stock change
type MovementInput struct {
	ProductID     uuid.UUID     `json:"product_id"`
	Quantity      int           `json:"quantity"`
	ReferenceType ReferenceType `json:"reference_type"`
	ReferenceID   string        `json:"reference_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	ActorID       string        `json:"actor_id"`
}

// Validate checks the requested quantity and reference type
func (in MovementInput) Validate() error {
	if in.ProductID == uuid.Nil {
		return fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	if !in.ReferenceType.Valid() {
		return fmt.Errorf("%w: unknown reference_type %q", ErrInvalidArgument, in.ReferenceType)
	}
	return nil
}

// NewInboundMovement builds an inbound entry on top of the current stock level
func NewInboundMovement(in MovementInput, current int, at time.Time) *StockMovement {
	return newMovement(in, MovementInbound, in.Quantity, current, at)
}

// NewOutboundMovement builds an outbound entry. It fails with
// ErrInsufficientStock when current cannot cover the requested quantity.
func NewOutboundMovement(in MovementInput, current int, at time.Time) (*StockMovement, error) {
	if current < in.Quantity {
		return nil, fmt.Errorf("%w: product %s has %d, requested %d",
			ErrInsufficientStock, in.ProductID, current, in.Quantity)
	}
	return newMovement(in, MovementOutbound, -in.Quantity, current, at), nil
}

func newMovement(in MovementInput, t MovementType, signed, current int, at time.Time) *StockMovement {
	return &StockMovement{
		ID:               uuid.New(),
		ProductID:        in.ProductID,
		MovementType:     t,
		Quantity:         signed,
		PreviousQuantity: current,
		NewQuantity:      current + signed,
		ReferenceType:    in.ReferenceType,
		ReferenceID:      in.ReferenceID,
		Reason:           in.Reason,
		CreatedBy:        in.ActorID,
		CreatedAt:        at,
	}
}

// Consistent checks NewQuantity = PreviousQuantity + Quantity and the sign
// convention for the movement type.
func (m *StockMovement) Consistent() bool {
	if m.NewQuantity != m.PreviousQuantity+m.Quantity || m.NewQuantity < 0 {
		return false
	}
	switch m.MovementType {
	case MovementInbound:
		return m.Quantity > 0
	case MovementOutbound:
		return m.Quantity < 0
	}
	return false
}

// AdjustmentInput is a physical stock count for one product
type AdjustmentInput struct {
	ProductID       uuid.UUID `json:"product_id"`
	CountedQuantity int       `json:"counted_quantity"`
	Reason          string    `json:"reason"`
	ActorID         string    `json:"actor_id"`
}

// MovementFilter narrows movement history queries. Zero values mean "any".
type MovementFilter struct {
	ProductID     *uuid.UUID    `json:"product_id,omitempty"`
	From          *time.Time    `json:"from,omitempty"`
	To            *time.Time    `json:"to,omitempty"`
	MovementType  MovementType  `json:"movement_type,omitempty"`
	ReferenceType ReferenceType `json:"reference_type,omitempty"`
	ReferenceID   string        `json:"reference_id,omitempty"`
	Limit         int           `json:"limit"`
	Offset        int           `json:"offset"`
}

// Validate checks the filter ranges
func (f *MovementFilter) Validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("%w: date range end is before start", ErrInvalidArgument)
	}
	if f.MovementType != "" && !f.MovementType.Valid() {
		return fmt.Errorf("%w: unknown movement_type %q", ErrInvalidArgument, f.MovementType)
	}
	if f.ReferenceType != "" && !f.ReferenceType.Valid() {
		return fmt.Errorf("%w: unknown reference_type %q", ErrInvalidArgument, f.ReferenceType)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit and offset cannot be negative", ErrInvalidArgument)
	}
	return nil
}

// MovementSummary aggregates a product's movements over a calendar month.
// TotalOutbound is a positive magnitude.
type MovementSummary struct {
	ProductID     uuid.UUID `json:"product_id"`
	Month         int       `json:"month"`
	Year          int       `json:"year"`
	TotalInbound  int       `json:"total_inbound"`
	TotalOutbound int       `json:"total_outbound"`
	NetChange     int       `json:"net_change"`
}

// MonthWindow returns the half-open UTC range [start, end) of a calendar month
func MonthWindow(month, year int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month must be between 1 and 12, got %d", ErrInvalidArgument, month)
	}
	if year < 1 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: year must be positive, got %d", ErrInvalidArgument, year)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// LedgerCheck compares the materialized stock with the ledger fold
type LedgerCheck struct {
	ProductID     uuid.UUID `json:"product_id"`
	StockQuantity int       `json:"stock_quantity"`
	LedgerSum     int       `json:"ledger_sum"`
	Consistent    bool      `json:"consistent"`
}
