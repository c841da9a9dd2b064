// internal/core/domain/alert.go
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// AlertType is the kind of operational signal raised for a product
type AlertType string

const (
	AlertOutOfStock AlertType = "out_of_stock"
	AlertLowStock   AlertType = "low_stock"
	AlertExpiring   AlertType = "expiring"
	AlertExpired    AlertType = "expired"
)

// Severity ranks an alert
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// MoreSevere reports whether s outranks other
func (s Severity) MoreSevere(other Severity) bool {
	return s.rank() > other.rank()
}

// IsStockAlert reports whether t concerns stock level rather than expiry
func (t AlertType) IsStockAlert() bool {
	return t == AlertOutOfStock || t == AlertLowStock
}

// Severity returns the severity of an alert of type t. days is only used by
// AlertExpiring and is matched against the policy's expiry windows.
func (t AlertType) Severity(days int, policy AlertPolicy) Severity {
	switch t {
	case AlertOutOfStock, AlertExpired:
		return SeverityCritical
	case AlertLowStock:
		return SeverityWarning
	case AlertExpiring:
		w := policy.windows()
		switch {
		case days <= w[0]:
			return SeverityCritical
		case days <= w[1]:
			return SeverityWarning
		default:
			return SeverityInfo
		}
	}
	return SeverityInfo
}

// Message renders the human-readable text for an alert of type t
func (t AlertType) Message(p *Product, days int, policy AlertPolicy) string {
	switch t {
	case AlertOutOfStock:
		return fmt.Sprintf("%s (%s) is out of stock", p.Name, p.Code)
	case AlertLowStock:
		return fmt.Sprintf("%s (%s) is low on stock: %d left, threshold %d",
			p.Name, p.Code, p.StockQuantity, policy.LowStockThreshold)
	case AlertExpiring:
		if days == 0 {
			return fmt.Sprintf("%s (%s) expires today", p.Name, p.Code)
		}
		return fmt.Sprintf("%s (%s) expires in %d day(s)", p.Name, p.Code, days)
	case AlertExpired:
		return fmt.Sprintf("%s (%s) expired %d day(s) ago", p.Name, p.Code, -days)
	}
	return fmt.Sprintf("%s (%s): %s", p.Name, p.Code, t)
}

// AlertPolicy holds the thresholds alerts are evaluated against
type AlertPolicy struct {
	// LowStockThreshold: 0 < stock < threshold raises low_stock.
	LowStockThreshold int
	// ExpiryWindows are ascending day counts for critical, warning and info.
	ExpiryWindows []int
}

// DefaultAlertPolicy returns the canonical thresholds
func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		LowStockThreshold: 20,
		ExpiryWindows:     []int{7, 30, 60},
	}
}

// Validate checks the policy values
func (p AlertPolicy) Validate() error {
	if p.LowStockThreshold <= 0 {
		return fmt.Errorf("%w: low stock threshold must be positive", ErrInvalidArgument)
	}
	if len(p.ExpiryWindows) != 3 {
		return fmt.Errorf("%w: expected 3 expiry windows, got %d", ErrInvalidArgument, len(p.ExpiryWindows))
	}
	if !sort.IntsAreSorted(p.ExpiryWindows) || p.ExpiryWindows[0] < 0 {
		return fmt.Errorf("%w: expiry windows must be ascending and non-negative", ErrInvalidArgument)
	}
	return nil
}

func (p AlertPolicy) windows() []int {
	if len(p.ExpiryWindows) != 3 {
		return DefaultAlertPolicy().ExpiryWindows
	}
	return p.ExpiryWindows
}

// AlertCondition is one currently-true condition for a product
type AlertCondition struct {
	Type            AlertType
	Severity        Severity
	Message         string
	DaysUntilExpiry *int
}

// Evaluate returns the conditions that currently hold for p. Archived
// products never raise alerts.
func (p AlertPolicy) Evaluate(product *Product, now time.Time) []AlertCondition {
	if product.Archived {
		return nil
	}

	var out []AlertCondition
	switch {
	case product.StockQuantity == 0:
		out = append(out, p.condition(AlertOutOfStock, product, 0, nil))
	case product.StockQuantity < p.LowStockThreshold:
		out = append(out, p.condition(AlertLowStock, product, 0, nil))
	}

	if days, ok := product.DaysUntilExpiry(now); ok {
		d := days
		switch {
		case days < 0:
			out = append(out, p.condition(AlertExpired, product, days, &d))
		case days <= p.windows()[2]:
			out = append(out, p.condition(AlertExpiring, product, days, &d))
		}
	}
	return out
}

func (p AlertPolicy) condition(t AlertType, product *Product, days int, daysPtr *int) AlertCondition {
	return AlertCondition{
		Type:            t,
		Severity:        t.Severity(days, p),
		Message:         t.Message(product, days, p),
		DaysUntilExpiry: daysPtr,
	}
}

// Alert is a deduplicated alert record. At most one unresolved alert exists
// per (ProductID, Type).
type Alert struct {
	ID              uuid.UUID  `json:"id"`
	ProductID       uuid.UUID  `json:"product_id"`
	ProductCode     string     `json:"product_code"`
	ProductName     string     `json:"product_name"`
	Type            AlertType  `json:"type"`
	Severity        Severity   `json:"severity"`
	Message         string     `json:"message"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`
	StockQuantity   int        `json:"stock_quantity"`
	Resolved        bool       `json:"resolved"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewAlert raises a fresh alert for a product condition
func NewAlert(p *Product, c AlertCondition, at time.Time) *Alert {
	return &Alert{
		ID:              uuid.New(),
		ProductID:       p.ID,
		ProductCode:     p.Code,
		ProductName:     p.Name,
		Type:            c.Type,
		Severity:        c.Severity,
		Message:         c.Message,
		DaysUntilExpiry: c.DaysUntilExpiry,
		StockQuantity:   p.StockQuantity,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

// Refresh updates an unresolved alert with the latest evaluation. It reports
// whether anything visible changed.
func (a *Alert) Refresh(p *Product, c AlertCondition, at time.Time) bool {
	changed := a.Severity != c.Severity || a.Message != c.Message || a.StockQuantity != p.StockQuantity
	if !changed {
		return false
	}
	a.Severity = c.Severity
	a.Message = c.Message
	a.DaysUntilExpiry = c.DaysUntilExpiry
	a.StockQuantity = p.StockQuantity
	a.ProductName = p.Name
	a.UpdatedAt = at
	return true
}

// Resolve marks the alert resolved
func (a *Alert) Resolve(actorID string, at time.Time) error {
	if a.Resolved {
		return fmt.Errorf("%w: alert %s is already resolved", ErrInvalidArgument, a.ID)
	}
	a.Resolved = true
	a.ResolvedBy = actorID
	a.ResolvedAt = &at
	a.UpdatedAt = at
	return nil
}

// SystemActor resolves alerts whose condition cleared on its own
const SystemActor = "system"
