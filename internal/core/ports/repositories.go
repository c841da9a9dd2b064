// internal/core/ports/repositories.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/google/uuid"
)

// ProductRepository is the persistence port for the product catalogue and
// its materialized stock level. Lookups return domain.ErrNotFound when the
// product does not exist.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	// LockByID reads the product with a row lock held until the surrounding
	// transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// LockByIDs locks every product in ascending id order. Missing ids are
	// simply absent from the result.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, quantity int) error
	ListActive(ctx context.Context) ([]*domain.Product, error)
}

// MovementRepository is the append-only stock ledger store
type MovementRepository interface {
	Create(ctx context.Context, movement *domain.StockMovement) error
	List(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error)
	// Totals returns inbound and outbound magnitudes in [from, to).
	Totals(ctx context.Context, productID uuid.UUID, from, to time.Time) (inbound, outbound int, err error)
	SumQuantity(ctx context.Context, productID uuid.UUID) (int, error)
}

// SaleRepository persists sales and their items
type SaleRepository interface {
	Create(ctx context.Context, sale *domain.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	FindByCode(ctx context.Context, code string) (*domain.Sale, error)
	// LockByID reads the sale and its items holding a row lock on the sale.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	// MarkVoided persists the void metadata. It fails with
	// domain.ErrAlreadyVoided if the sale was voided concurrently.
	MarkVoided(ctx context.Context, sale *domain.Sale) error
	DailySummary(ctx context.Context, from, to time.Time) (*domain.DashboardSummary, error)
}

// SaleCodeGenerator hands out unique human-readable sale codes
type SaleCodeGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

// AlertRepository stores deduplicated alert records
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.Alert) error
	Update(ctx context.Context, alert *domain.Alert) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	ListUnresolved(ctx context.Context) ([]*domain.Alert, error)
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error)
}
