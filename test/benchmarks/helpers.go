// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
)

// shelf builds n in-stock products keyed by id
func shelf(n int) map[uuid.UUID]*domain.Product {
	products := make(map[uuid.UUID]*domain.Product, n)
	expiry := time.Now().UTC().AddDate(0, 0, 45)
	for i := 0; i < n; i++ {
		p := &domain.Product{
			ID:            uuid.New(),
			Code:          fmt.Sprintf("MED-%05d", i),
			Name:          fmt.Sprintf("Benchmark product %d", i),
			Category:      domain.CategoryOverTheCounter,
			UnitPrice:     decimal.NewFromFloat(float64(i%50) + 0.75),
			StockQuantity: (i * 7) % 120,
			ExpiryDate:    &expiry,
		}
		products[p.ID] = p
	}
	return products
}

// cart picks size lines from products, one unit each
func cart(products map[uuid.UUID]*domain.Product, size int) []domain.CartItem {
	items := make([]domain.CartItem, 0, size)
	for id := range products {
		if len(items) == size {
			break
		}
		items = append(items, domain.CartItem{ProductID: id, Quantity: 1})
	}
	return items
}
