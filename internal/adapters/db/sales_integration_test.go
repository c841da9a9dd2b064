//go:build integration
// +build integration

package db_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/test/helpers"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, domain.EventName, any) error { return nil }

type SalesIntegrationSuite struct {
	suite.Suite
	testDB    *helpers.TestDB
	products  ports.ProductRepository
	movements *services.LedgerService
	sales     *services.SaleService
	alerts    *services.AlertService
	ctx       context.Context
}

func (s *SalesIntegrationSuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.ctx = context.Background()

	logger := helpers.TestLogger()
	database := s.testDB.Database

	products := db.NewProductRepository(database, logger)
	audit := db.NewAuditLogger(database, logger)
	effects := services.NewEffects(discardPublisher{}, nil, logger)

	s.products = products
	s.movements = services.NewLedgerService(products, db.NewMovementRepository(database, logger), audit, database, logger)
	s.sales = services.NewSaleService(services.SaleDeps{
		Products: products,
		Sales:    db.NewSaleRepository(database, logger),
		Codes:    db.NewSaleCodeGenerator(database),
		Ledger:   s.movements,
		Audit:    audit,
		Tx:       database,
		Effects:  effects,
	}, 72*time.Hour, logger)
	s.alerts = services.NewAlertService(products, db.NewAlertRepository(database, logger), audit, database, effects, domain.DefaultAlertPolicy(), logger)
}

func (s *SalesIntegrationSuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
}

func (s *SalesIntegrationSuite) stock(id uuid.UUID) int {
	p, err := s.products.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return p.StockQuantity
}

func (s *SalesIntegrationSuite) assertLedgerConsistent(id uuid.UUID) {
	check, err := s.movements.VerifyProduct(s.ctx, id)
	s.Require().NoError(err)
	s.True(check.Consistent, "stock %d, ledger %d", check.StockQuantity, check.LedgerSum)
}

func (s *SalesIntegrationSuite) TestCreateSale_PersistsSaleAndMovements() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 50)

	req := helpers.CashSale("cashier-1", p.ID, 7, decimal.NewFromInt(100))
	sale, err := s.sales.CreateSale(s.ctx, req)
	s.Require().NoError(err)

	s.True(decimal.NewFromFloat(38.50).Equal(sale.TotalAmount))
	s.True(decimal.NewFromFloat(61.50).Equal(sale.ChangeAmount))
	s.Regexp(`^S-\d{8}-\d{6}$`, sale.Code)
	s.Equal(43, s.stock(p.ID))

	stored, err := s.sales.GetSaleByCode(s.ctx, sale.Code)
	s.Require().NoError(err)
	s.Len(stored.Items, 1)
	s.Equal(7, stored.Items[0].Quantity)

	history, err := s.movements.GetHistory(s.ctx, domain.MovementFilter{
		ProductID:     &p.ID,
		ReferenceType: domain.ReferenceSale,
	})
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(-7, history[0].Quantity)
	s.Equal(sale.Code, history[0].ReferenceID)

	s.assertLedgerConsistent(p.ID)
}

func (s *SalesIntegrationSuite) TestCreateSale_InsufficientStockRollsBack() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 3)

	_, err := s.sales.CreateSale(s.ctx, helpers.CashSale("cashier-1", p.ID, 4, decimal.NewFromInt(100)))
	s.ErrorIs(err, domain.ErrInsufficientStock)

	s.Equal(3, s.stock(p.ID))
	s.assertLedgerConsistent(p.ID)
}

func (s *SalesIntegrationSuite) TestCreateSale_ConcurrentCartsNeverOversell() {
	const (
		stock    = 10
		qty      = 3
		cashiers = 8
	)
	p := helpers.SeedProduct(s.T(), s.testDB.Database, stock)

	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int32
		insufficient atomic.Int32
	)
	for i := 0; i < cashiers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.sales.CreateSale(s.ctx, helpers.CashSale("cashier", p.ID, qty, decimal.NewFromInt(100)))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(stock/qty), succeeded.Load())
	s.Equal(int32(cashiers-stock/qty), insufficient.Load())
	s.Equal(stock%qty, s.stock(p.ID))
	s.assertLedgerConsistent(p.ID)
}

func (s *SalesIntegrationSuite) TestCreateSale_TwoLargeCartsOnlyOneWins() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 10)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.sales.CreateSale(s.ctx, helpers.CashSale("cashier", p.ID, 6, decimal.NewFromInt(100)))
			errs <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			s.ErrorIs(err, domain.ErrInsufficientStock)
			failures++
		}
	}

	s.Equal(1, failures)
	s.Equal(4, s.stock(p.ID))
}

func (s *SalesIntegrationSuite) TestCreateSale_CrossedCartsDoNotDeadlock() {
	a := helpers.SeedProduct(s.T(), s.testDB.Database, 100)
	b := helpers.SeedProduct(s.T(), s.testDB.Database, 100)

	cart := func(first, second uuid.UUID) domain.CreateSaleRequest {
		return domain.CreateSaleRequest{
			OperatorID: "cashier",
			Items: []domain.CartItem{
				{ProductID: first, Quantity: 1},
				{ProductID: second, Quantity: 1},
			},
			PaymentMethod: domain.PaymentCash,
			AmountPaid:    decimal.NewFromInt(100),
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.sales.CreateSale(s.ctx, cart(a.ID, b.ID))
			s.NoError(err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.sales.CreateSale(s.ctx, cart(b.ID, a.ID))
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(80, s.stock(a.ID))
	s.Equal(80, s.stock(b.ID))
}

func (s *SalesIntegrationSuite) TestVoidSale_CrossedWithSalesDoesNotDeadlock() {
	a := helpers.SeedProduct(s.T(), s.testDB.Database, 100)
	b := helpers.SeedProduct(s.T(), s.testDB.Database, 100)
	low, high := a.ID, b.ID
	if bytes.Compare(low[:], high[:]) > 0 {
		low, high = high, low
	}

	cart := func(first, second uuid.UUID) domain.CreateSaleRequest {
		return domain.CreateSaleRequest{
			OperatorID: "cashier",
			Items: []domain.CartItem{
				{ProductID: first, Quantity: 1},
				{ProductID: second, Quantity: 1},
			},
			PaymentMethod: domain.PaymentCash,
			AmountPaid:    decimal.NewFromInt(100),
		}
	}

	// Voided sales list the higher id first, new sales the lower one.
	toVoid := make([]*domain.Sale, 10)
	for i := range toVoid {
		sale, err := s.sales.CreateSale(s.ctx, cart(high, low))
		s.Require().NoError(err)
		toVoid[i] = sale
	}

	var wg sync.WaitGroup
	for _, sale := range toVoid {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := s.sales.VoidSale(s.ctx, id, "crossed", "supervisor-1")
			s.NoError(err)
		}(sale.ID)
		go func() {
			defer wg.Done()
			_, err := s.sales.CreateSale(s.ctx, cart(low, high))
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(90, s.stock(a.ID))
	s.Equal(90, s.stock(b.ID))
	s.assertLedgerConsistent(a.ID)
	s.assertLedgerConsistent(b.ID)
}

func (s *SalesIntegrationSuite) TestVoidSale_RestoresStock() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 20)

	sale, err := s.sales.CreateSale(s.ctx, helpers.CashSale("cashier-1", p.ID, 5, decimal.NewFromInt(100)))
	s.Require().NoError(err)
	s.Equal(15, s.stock(p.ID))

	voided, err := s.sales.VoidSale(s.ctx, sale.ID, "customer changed mind", "supervisor-1")
	s.Require().NoError(err)
	s.True(voided.Voided)
	s.Equal(20, s.stock(p.ID))

	returns, err := s.movements.GetHistory(s.ctx, domain.MovementFilter{
		ProductID:     &p.ID,
		ReferenceType: domain.ReferenceReturn,
	})
	s.Require().NoError(err)
	s.Require().Len(returns, 1)
	s.Equal(5, returns[0].Quantity)

	_, err = s.sales.VoidSale(s.ctx, sale.ID, "again", "supervisor-1")
	s.ErrorIs(err, domain.ErrAlreadyVoided)
	s.Equal(20, s.stock(p.ID))

	s.assertLedgerConsistent(p.ID)
}

func (s *SalesIntegrationSuite) TestVoidSale_ConcurrentVoidsApplyOnce() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 20)

	sale, err := s.sales.CreateSale(s.ctx, helpers.CashSale("cashier-1", p.ID, 5, decimal.NewFromInt(100)))
	s.Require().NoError(err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.sales.VoidSale(s.ctx, sale.ID, "duplicate click", "supervisor-1")
			errs <- err
		}()
	}

	var already int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			s.ErrorIs(err, domain.ErrAlreadyVoided)
			already++
		}
	}

	s.Equal(1, already)
	s.Equal(20, s.stock(p.ID))
	s.assertLedgerConsistent(p.ID)
}

func (s *SalesIntegrationSuite) TestLedger_AdjustmentAndSummary() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 30)

	m, err := s.movements.RecordAdjustment(s.ctx, domain.AdjustmentInput{
		ProductID:       p.ID,
		CountedQuantity: 26,
		Reason:          "cycle count",
		ActorID:         "pharmacist-1",
	})
	s.Require().NoError(err)
	s.Equal(domain.MovementOutbound, m.MovementType)
	s.Equal(-4, m.Quantity)

	now := time.Now().UTC()
	summary, err := s.movements.GetSummary(s.ctx, p.ID, int(now.Month()), now.Year())
	s.Require().NoError(err)
	s.Equal(30, summary.TotalInbound)
	s.Equal(4, summary.TotalOutbound)
	s.Equal(26, summary.NetChange)

	s.assertLedgerConsistent(p.ID)
}

func (s *SalesIntegrationSuite) TestAlerts_DedupAndAutoResolve() {
	p := helpers.SeedProduct(s.T(), s.testDB.Database, 5)

	first, err := s.alerts.RunAlertChecks(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(first, 1)
	s.Equal(domain.AlertLowStock, first[0].Type)

	second, err := s.alerts.RunAlertChecks(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(second, 1)
	s.Equal(first[0].ID, second[0].ID)

	_, err = s.movements.RecordInbound(s.ctx, domain.MovementInput{
		ProductID:     p.ID,
		Quantity:      100,
		ReferenceType: domain.ReferencePurchaseOrder,
		ReferenceID:   "PO-2",
		ActorID:       "receiver-1",
	})
	s.Require().NoError(err)

	third, err := s.alerts.RunAlertChecks(s.ctx)
	s.Require().NoError(err)
	s.Empty(third)

	active, err := s.alerts.ListActiveAlerts(s.ctx)
	s.Require().NoError(err)
	s.Empty(active)
}

func TestSalesIntegrationSuite(t *testing.T) {
	suite.Run(t, new(SalesIntegrationSuite))
}
