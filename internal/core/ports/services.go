// internal/core/ports/services.go
package ports

import (
	"context"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/google/uuid"
)

// LedgerService is the only path by which product stock changes
type LedgerService interface {
	RecordInbound(ctx context.Context, in domain.MovementInput) (*domain.StockMovement, error)
	RecordOutbound(ctx context.Context, in domain.MovementInput) (*domain.StockMovement, error)
	RecordAdjustment(ctx context.Context, in domain.AdjustmentInput) (*domain.StockMovement, error)
	GetHistory(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error)
	GetSummary(ctx context.Context, productID uuid.UUID, month, year int) (*domain.MovementSummary, error)
	VerifyProduct(ctx context.Context, productID uuid.UUID) (*domain.LedgerCheck, error)
}

// SaleService commits and voids sales
type SaleService interface {
	CreateSale(ctx context.Context, req domain.CreateSaleRequest) (*domain.Sale, error)
	VoidSale(ctx context.Context, saleID uuid.UUID, reason, actorID string) (*domain.Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	GetSaleByCode(ctx context.Context, code string) (*domain.Sale, error)
}

// AlertService evaluates and resolves product alerts
type AlertService interface {
	RunAlertChecks(ctx context.Context) ([]*domain.Alert, error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID, actorID string) (*domain.Alert, error)
	ListActiveAlerts(ctx context.Context) ([]*domain.Alert, error)
}

// DashboardService serves the cached point-of-sale overview
type DashboardService interface {
	Today(ctx context.Context) (*domain.DashboardSummary, error)
	Invalidate(ctx context.Context) error
}
