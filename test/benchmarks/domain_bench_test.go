package benchmarks

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/workers"
)

func BenchmarkComputeTotals(b *testing.B) {
	products := shelf(200)

	for _, size := range []int{1, 10, 50} {
		items := cart(products, size)
		b.Run(fmt.Sprintf("lines_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = domain.ComputeTotals(items, products, domain.DiscountSeniorCitizen, decimal.NewFromInt(1_000_000))
			}
		})
	}
}

func BenchmarkAlertEvaluate(b *testing.B) {
	products := shelf(1000)
	policy := domain.DefaultAlertPolicy()
	now := time.Now().UTC()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range products {
			_ = policy.Evaluate(p, now)
		}
	}
}

func BenchmarkRenderReceipt(b *testing.B) {
	products := shelf(20)
	items := cart(products, 20)
	totals, err := domain.ComputeTotals(items, products, domain.DiscountNone, decimal.NewFromInt(100_000))
	if err != nil {
		b.Fatal(err)
	}
	req := &domain.CreateSaleRequest{
		OperatorID:    "cashier-bench",
		Items:         items,
		DiscountType:  domain.DiscountNone,
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    decimal.NewFromInt(100_000),
	}
	sale := domain.NewSale(req, domain.FormatSaleCode(time.Now(), 1), totals, time.Now().UTC())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = workers.RenderReceipt("Benchmark Pharmacy", sale)
	}
}
