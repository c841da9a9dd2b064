// test/helpers/fixtures.go
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
	"github.com/ammerola/pharmapos-be/internal/core/domain"
)

// CreateTestProduct builds an unsaved over-the-counter product expiring in a
// year. Overrides run in order.
func CreateTestProduct(overrides ...func(*domain.Product)) *domain.Product {
	now := time.Now().UTC()
	expiry := now.AddDate(1, 0, 0)

	p := &domain.Product{
		ID:         uuid.New(),
		Code:       "MED-" + uuid.NewString()[:8],
		Name:       "Paracetamol 500mg Tablet",
		Category:   domain.CategoryOverTheCounter,
		UnitPrice:  decimal.RequireFromString("5.50"),
		ExpiryDate: &expiry,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, apply := range overrides {
		apply(p)
	}
	return p
}

// SeedProduct inserts a product and books its opening stock as a purchase
// order delivery, so stock_quantity and the ledger agree from the start.
func SeedProduct(t *testing.T, database *db.Database, stock int, overrides ...func(*domain.Product)) *domain.Product {
	t.Helper()

	ctx := context.Background()
	p := CreateTestProduct(overrides...)
	products := db.NewProductRepository(database, TestLogger())
	require.NoError(t, products.Create(ctx, p), "seed product")

	if stock <= 0 {
		return p
	}

	opening := domain.NewInboundMovement(domain.MovementInput{
		ProductID:     p.ID,
		Quantity:      stock,
		ReferenceType: domain.ReferencePurchaseOrder,
		ReferenceID:   "PO-SEED",
		ActorID:       "seed",
	}, 0, time.Now().UTC())

	require.NoError(t, database.WithinTx(ctx, func(ctx context.Context) error {
		if err := db.NewMovementRepository(database, TestLogger()).Create(ctx, opening); err != nil {
			return err
		}
		return products.UpdateStock(ctx, p.ID, stock)
	}), "seed opening stock")

	p.StockQuantity = stock
	return p
}

// CashSale is a single-line cash sale with no discount
func CashSale(operator string, productID uuid.UUID, qty int, paid decimal.Decimal) domain.CreateSaleRequest {
	return domain.CreateSaleRequest{
		OperatorID:    operator,
		Items:         []domain.CartItem{{ProductID: productID, Quantity: qty}},
		DiscountType:  domain.DiscountNone,
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    paid,
	}
}
