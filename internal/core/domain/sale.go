// internal/core/domain/sale.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType represents a statutory discount
type DiscountType string

const (
	DiscountNone          DiscountType = "none"
	DiscountSeniorCitizen DiscountType = "senior_citizen"
	DiscountPWD           DiscountType = "pwd"
)

// StatutoryDiscountRate applies to senior citizen and PWD sales.
var StatutoryDiscountRate = decimal.NewFromFloat(0.20)

// Valid reports whether d is a known discount type
func (d DiscountType) Valid() bool {
	return d == DiscountNone || d == DiscountSeniorCitizen || d == DiscountPWD
}

// Rate returns the discount rate for d
func (d DiscountType) Rate() decimal.Decimal {
	switch d {
	case DiscountSeniorCitizen, DiscountPWD:
		return StatutoryDiscountRate
	default:
		return decimal.Zero
	}
}

// PaymentMethod represents how a sale was paid
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentGCash        PaymentMethod = "gcash"
	PaymentMaya         PaymentMethod = "maya"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentGCash, PaymentMaya, PaymentBankTransfer:
		return true
	}
	return false
}

// RequiresReference reports whether the method needs a payment reference
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentCash
}

// Sale is a committed point-of-sale transaction. Item lines never change
// after commit; only the void metadata may be set, once.
type Sale struct {
	ID               uuid.UUID       `json:"id"`
	Code             string          `json:"code"`
	OperatorID       string          `json:"operator_id"`
	Items            []SaleItem      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountType     DiscountType    `json:"discount_type"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	ChangeAmount     decimal.Decimal `json:"change_amount"`
	CreatedAt        time.Time       `json:"created_at"`
	Voided           bool            `json:"voided"`
	VoidReason       string          `json:"void_reason,omitempty"`
	VoidedBy         string          `json:"voided_by,omitempty"`
	VoidedAt         *time.Time      `json:"voided_at,omitempty"`
}

// SaleItem is one line of a sale with name and price snapshots
type SaleItem struct {
	ID          uuid.UUID       `json:"id"`
	SaleID      uuid.UUID       `json:"sale_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CartItem is a requested product and quantity
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CreateSaleRequest carries everything needed to commit a sale
type CreateSaleRequest struct {
	OperatorID       string          `json:"operator_id"`
	Items            []CartItem      `json:"items"`
	DiscountType     DiscountType    `json:"discount_type"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
}

// Validate checks the request fields that need no product data
func (r *CreateSaleRequest) Validate() error {
	if strings.TrimSpace(r.OperatorID) == "" {
		return fmt.Errorf("%w: operator_id is required", ErrInvalidArgument)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: sale must contain at least one item", ErrInvalidArgument)
	}
	if !r.AmountPaid.IsPositive() {
		return fmt.Errorf("%w: amount_paid must be positive", ErrInvalidArgument)
	}
	if !r.AmountPaid.Equal(r.AmountPaid.Round(2)) {
		return fmt.Errorf("%w: amount_paid has more than 2 decimal places", ErrInvalidArgument)
	}
	if r.AmountPaid.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount_paid exceeds %s", ErrInvalidArgument, MaxAmount.StringFixed(2))
	}
	if r.DiscountType == "" {
		r.DiscountType = DiscountNone
	}
	if !r.DiscountType.Valid() {
		return fmt.Errorf("%w: unknown discount_type %q", ErrInvalidArgument, r.DiscountType)
	}
	if !r.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment_method %q", ErrInvalidArgument, r.PaymentMethod)
	}
	if r.PaymentMethod.RequiresReference() && strings.TrimSpace(r.PaymentReference) == "" {
		return fmt.Errorf("%w: payment_reference is required for %s", ErrInvalidArgument, r.PaymentMethod)
	}
	for _, item := range r.Items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for product %s must be positive", ErrInvalidArgument, item.ProductID)
		}
	}
	return nil
}

// ProductIDs returns the distinct product ids in the cart, in cart order
func (r *CreateSaleRequest) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(r.Items))
	ids := make([]uuid.UUID, 0, len(r.Items))
	for _, item := range r.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// RequestedQuantities sums cart quantities per product
func (r *CreateSaleRequest) RequestedQuantities() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(r.Items))
	for _, item := range r.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}

// MaxAmount is the largest money value a sale column holds (NUMERIC(12,2))
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Totals is the priced result of a cart
type Totals struct {
	Items          []SaleItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	ChangeAmount   decimal.Decimal
}

// ComputeTotals prices the cart against the given products, snapshotting
// name and unit price per line. products must contain every cart product.
func ComputeTotals(items []CartItem, products map[uuid.UUID]*Product, discount DiscountType, amountPaid decimal.Decimal) (*Totals, error) {
	t := &Totals{Items: make([]SaleItem, 0, len(items))}
	subtotal := decimal.Zero
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, item.ProductID)
		}
		line := p.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		t.Items = append(t.Items, SaleItem{
			ID:          uuid.New(),
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.UnitPrice,
			Subtotal:    line,
		})
		subtotal = subtotal.Add(line)
	}

	t.Subtotal = subtotal
	t.DiscountAmount = subtotal.Mul(discount.Rate()).Round(2)
	t.TotalAmount = subtotal.Sub(t.DiscountAmount)

	if !t.TotalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: sale total must be positive", ErrInvalidArgument)
	}
	if subtotal.GreaterThan(MaxAmount) {
		return nil, fmt.Errorf("%w: sale subtotal exceeds %s", ErrInvalidArgument, MaxAmount.StringFixed(2))
	}
	if amountPaid.LessThan(t.TotalAmount) {
		return nil, fmt.Errorf("%w: insufficient payment: paid %s, due %s",
			ErrInvalidArgument, amountPaid.StringFixed(2), t.TotalAmount.StringFixed(2))
	}
	t.ChangeAmount = amountPaid.Sub(t.TotalAmount)
	return t, nil
}

// NewSale assembles a sale from a validated request and its priced totals
func NewSale(req *CreateSaleRequest, code string, totals *Totals, at time.Time) *Sale {
	s := &Sale{
		ID:               uuid.New(),
		Code:             code,
		OperatorID:       req.OperatorID,
		Items:            totals.Items,
		Subtotal:         totals.Subtotal,
		DiscountType:     req.DiscountType,
		DiscountAmount:   totals.DiscountAmount,
		TotalAmount:      totals.TotalAmount,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		AmountPaid:       req.AmountPaid,
		ChangeAmount:     totals.ChangeAmount,
		CreatedAt:        at,
	}
	for i := range s.Items {
		s.Items[i].SaleID = s.ID
	}
	return s
}

// CanVoid checks the void preconditions at now. A sale exactly window old
// may still be voided.
func (s *Sale) CanVoid(now time.Time, window time.Duration) error {
	if s.Voided {
		return fmt.Errorf("%w: sale %s", ErrAlreadyVoided, s.Code)
	}
	if now.Sub(s.CreatedAt) > window {
		return fmt.Errorf("%w: sale %s is older than %s", ErrTooOld, s.Code, window)
	}
	return nil
}

// ProductIDs returns the distinct products on the sale, in line order
func (s *Sale) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(s.Items))
	ids := make([]uuid.UUID, 0, len(s.Items))
	for _, item := range s.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// MarkVoided records the one-way transition to voided
func (s *Sale) MarkVoided(reason, actorID string, at time.Time) {
	s.Voided = true
	s.VoidReason = reason
	s.VoidedBy = actorID
	s.VoidedAt = &at
}

// VoidMovementReason is the reason stored on compensating return movements
func VoidMovementReason(code, reason string) string {
	return fmt.Sprintf("Void of sale %s: %s", code, reason)
}

// SaleCodePrefix begins every sale code
const SaleCodePrefix = "S"

// FormatSaleCode renders a sale code as S-YYYYMMDD-NNNNNN. The sequence
// is global so codes stay unique even across days.
func FormatSaleCode(at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", SaleCodePrefix, at.UTC().Format("20060102"), seq)
}
