// internal/core/domain/product.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductCategory represents a catalogue category
type ProductCategory string

// Category constants
const (
	CategoryPrescription   ProductCategory = "prescription"
	CategoryOverTheCounter ProductCategory = "otc"
	CategoryVitamins       ProductCategory = "vitamins"
	CategoryPersonalCare   ProductCategory = "personal_care"
	CategoryMedicalSupply  ProductCategory = "medical_supply"
	CategoryBabyCare       ProductCategory = "baby_care"
	CategoryOther          ProductCategory = "other"
)

// Product is a catalogue entry with its materialized stock level.
// StockQuantity is only ever changed by the stock ledger.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Category      ProductCategory `json:"category"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	Archived      bool            `json:"archived"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate performs domain validation on the product
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if !p.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit_price must be positive", ErrInvalidArgument)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: stock_quantity cannot be negative", ErrInvalidArgument)
	}
	if p.Category == "" {
		p.Category = CategoryOther
	}
	return nil
}

// PrepareForStorage sets identifiers and timestamps for a new product.
// New products always start at zero stock; opening stock is recorded as an
// inbound movement.
func (p *Product) PrepareForStorage() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.StockQuantity = 0

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// DaysUntilExpiry returns whole calendar days from now until the expiry date.
// ok is false when the product has no expiry date.
func (p *Product) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	if p.ExpiryDate == nil {
		return 0, false
	}
	return daysBetween(now, *p.ExpiryDate), true
}

func daysBetween(from, to time.Time) int {
	y1, m1, d1 := from.UTC().Date()
	y2, m2, d2 := to.UTC().Date()
	start := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
