package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/test/helpers"
	"github.com/ammerola/pharmapos-be/test/mocks"
)

type saleMocks struct {
	products  *mocks.MockProductRepository
	sales     *mocks.MockSaleRepository
	codes     *mocks.MockSaleCodeGenerator
	ledger    *mocks.MockLedgerService
	audit     *mocks.MockAuditLogger
	publisher *mocks.MockEventPublisher
	receipts  *mocks.MockReceiptScheduler
}

func newSaleService(t *testing.T) (*services.SaleService, saleMocks) {
	ctrl := gomock.NewController(t)
	m := saleMocks{
		products:  mocks.NewMockProductRepository(ctrl),
		sales:     mocks.NewMockSaleRepository(ctrl),
		codes:     mocks.NewMockSaleCodeGenerator(ctrl),
		ledger:    mocks.NewMockLedgerService(ctrl),
		audit:     mocks.NewMockAuditLogger(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
		receipts:  mocks.NewMockReceiptScheduler(ctrl),
	}

	logger := helpers.TestLogger()
	svc := services.NewSaleService(services.SaleDeps{
		Products: m.products,
		Sales:    m.sales,
		Codes:    m.codes,
		Ledger:   m.ledger,
		Audit:    m.audit,
		Tx:       passthroughTx(ctrl),
		Effects:  services.NewEffects(m.publisher, m.receipts, logger),
	}, 0, logger).WithClock(clock)

	return svc, m
}

func priced(price string, stock int) *domain.Product {
	return helpers.CreateTestProduct(func(p *domain.Product) {
		p.UnitPrice = decimal.RequireFromString(price)
		p.StockQuantity = stock
	})
}

func cashRequest(paid string, items ...domain.CartItem) domain.CreateSaleRequest {
	return domain.CreateSaleRequest{
		OperatorID:    "cashier-1",
		Items:         items,
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    decimal.RequireFromString(paid),
	}
}

func TestSaleService_CreateSale_HappyPath(t *testing.T) {
	svc, m := newSaleService(t)
	p := priced("100", 50)
	req := cashRequest("1000", domain.CartItem{ProductID: p.ID, Quantity: 7})

	gomock.InOrder(
		m.products.EXPECT().LockByIDs(gomock.Any(), []uuid.UUID{p.ID}).Return([]*domain.Product{p}, nil),
		m.codes.EXPECT().Next(gomock.Any(), fixedNow).Return("S-20250314-000001", nil),
		m.sales.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
		m.ledger.EXPECT().RecordOutbound(gomock.Any(), domain.MovementInput{
			ProductID:     p.ID,
			Quantity:      7,
			ReferenceType: domain.ReferenceSale,
			ReferenceID:   "S-20250314-000001",
			ActorID:       "cashier-1",
		}).Return(&domain.StockMovement{}, nil),
		m.audit.EXPECT().LogAction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e domain.AuditEntry) error {
				assert.Equal(t, domain.AuditSaleCreated, e.Action)
				assert.Equal(t, "700.00", e.Details["total_amount"])
				return nil
			}),
	)
	m.publisher.EXPECT().Publish(gomock.Any(), domain.EventSaleCompleted, gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), domain.EventDashboardChanged, gomock.Any()).Return(nil)
	m.receipts.EXPECT().ScheduleReceipt(gomock.Any(), gomock.Any()).Return(nil)

	sale, err := svc.CreateSale(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "S-20250314-000001", sale.Code)
	assert.True(t, decimal.NewFromInt(700).Equal(sale.Subtotal))
	assert.True(t, decimal.Zero.Equal(sale.DiscountAmount))
	assert.True(t, decimal.NewFromInt(700).Equal(sale.TotalAmount))
	assert.True(t, decimal.NewFromInt(300).Equal(sale.ChangeAmount))
	assert.Equal(t, fixedNow, sale.CreatedAt)
	assert.False(t, sale.Voided)
}

func TestSaleService_CreateSale_SeniorDiscount(t *testing.T) {
	svc, m := newSaleService(t)
	p := priced("100", 10)
	req := cashRequest("200", domain.CartItem{ProductID: p.ID, Quantity: 2})
	req.DiscountType = domain.DiscountSeniorCitizen

	m.products.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return([]*domain.Product{p}, nil)
	m.codes.EXPECT().Next(gomock.Any(), gomock.Any()).Return("S-20250314-000002", nil)
	m.sales.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.ledger.EXPECT().RecordOutbound(gomock.Any(), gomock.Any()).Return(&domain.StockMovement{}, nil)
	m.audit.EXPECT().LogAction(gomock.Any(), gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	m.receipts.EXPECT().ScheduleReceipt(gomock.Any(), gomock.Any()).Return(nil)

	sale, err := svc.CreateSale(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(sale.DiscountAmount))
	assert.True(t, decimal.NewFromInt(160).Equal(sale.TotalAmount))
	assert.True(t, decimal.NewFromInt(40).Equal(sale.ChangeAmount))
}

func TestSaleService_CreateSale_DuplicateLinesAggregateStock(t *testing.T) {
	svc, m := newSaleService(t)
	p := priced("10", 5)
	req := cashRequest("100",
		domain.CartItem{ProductID: p.ID, Quantity: 3},
		domain.CartItem{ProductID: p.ID, Quantity: 3},
	)

	m.products.EXPECT().LockByIDs(gomock.Any(), []uuid.UUID{p.ID}).Return([]*domain.Product{p}, nil)

	_, err := svc.CreateSale(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestSaleService_CreateSale_Rejections(t *testing.T) {
	archived := priced("10", 100)
	archived.Archived = true
	inStock := priced("10", 100)

	tests := []struct {
		name    string
		req     domain.CreateSaleRequest
		locked  []*domain.Product
		lockErr error
		wantErr error
	}{
		{
			name:    "empty_cart",
			req:     cashRequest("100"),
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name: "card_without_reference",
			req: func() domain.CreateSaleRequest {
				r := cashRequest("100", domain.CartItem{ProductID: inStock.ID, Quantity: 1})
				r.PaymentMethod = domain.PaymentCard
				return r
			}(),
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "unknown_product",
			req:     cashRequest("100", domain.CartItem{ProductID: uuid.New(), Quantity: 1}),
			locked:  []*domain.Product{},
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "archived_product",
			req:     cashRequest("100", domain.CartItem{ProductID: archived.ID, Quantity: 1}),
			locked:  []*domain.Product{archived},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "underpayment",
			req:     cashRequest("5", domain.CartItem{ProductID: inStock.ID, Quantity: 1}),
			locked:  []*domain.Product{inStock},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "lock_timeout",
			req:     cashRequest("100", domain.CartItem{ProductID: inStock.ID, Quantity: 1}),
			lockErr: domain.ErrConflict,
			wantErr: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newSaleService(t)
			if tt.locked != nil || tt.lockErr != nil {
				m.products.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return(tt.locked, tt.lockErr)
			}

			sale, err := svc.CreateSale(context.Background(), tt.req)
			assert.Nil(t, sale)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSaleService_CreateSale_LedgerFailureSkipsEffects(t *testing.T) {
	svc, m := newSaleService(t)
	p := priced("10", 100)

	m.products.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return([]*domain.Product{p}, nil)
	m.codes.EXPECT().Next(gomock.Any(), gomock.Any()).Return("S-20250314-000003", nil)
	m.sales.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.ledger.EXPECT().RecordOutbound(gomock.Any(), gomock.Any()).
		Return(nil, domain.ErrInsufficientStock)

	_, err := svc.CreateSale(context.Background(), cashRequest("100", domain.CartItem{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestSaleService_CreateSale_EffectFailuresDoNotFailSale(t *testing.T) {
	svc, m := newSaleService(t)
	p := priced("10", 100)

	m.products.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return([]*domain.Product{p}, nil)
	m.codes.EXPECT().Next(gomock.Any(), gomock.Any()).Return("S-20250314-000004", nil)
	m.sales.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.ledger.EXPECT().RecordOutbound(gomock.Any(), gomock.Any()).Return(&domain.StockMovement{}, nil)
	m.audit.EXPECT().LogAction(gomock.Any(), gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down")).Times(2)
	m.receipts.EXPECT().ScheduleReceipt(gomock.Any(), gomock.Any()).Return(errors.New("queue down"))

	sale, err := svc.CreateSale(context.Background(), cashRequest("100", domain.CartItem{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.NotNil(t, sale)
}

func committedSale(createdAt time.Time) *domain.Sale {
	return &domain.Sale{
		ID:          uuid.New(),
		Code:        "S-20250313-000010",
		OperatorID:  "cashier-1",
		TotalAmount: decimal.NewFromInt(50),
		CreatedAt:   createdAt,
		Items: []domain.SaleItem{
			{ID: uuid.New(), ProductID: uuid.New(), ProductName: "Amoxicillin", Quantity: 2},
			{ID: uuid.New(), ProductID: uuid.New(), ProductName: "Cetirizine", Quantity: 1},
		},
	}
}

func TestSaleService_VoidSale(t *testing.T) {
	svc, m := newSaleService(t)
	sale := committedSale(fixedNow.Add(-2 * time.Hour))

	m.sales.EXPECT().LockByID(gomock.Any(), sale.ID).Return(sale, nil)
	m.products.EXPECT().LockByIDs(gomock.Any(), sale.ProductIDs()).Return(nil, nil)
	for _, item := range sale.Items {
		m.ledger.EXPECT().RecordInbound(gomock.Any(), domain.MovementInput{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			ReferenceType: domain.ReferenceReturn,
			ReferenceID:   sale.Code,
			Reason:        "Void of sale S-20250313-000010: wrong item",
			ActorID:       "supervisor-1",
		}).Return(&domain.StockMovement{}, nil)
	}
	m.sales.EXPECT().MarkVoided(gomock.Any(), sale).Return(nil)
	m.audit.EXPECT().LogAction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e domain.AuditEntry) error {
			assert.Equal(t, domain.AuditSaleVoided, e.Action)
			assert.Equal(t, "supervisor-1", e.ActorID)
			return nil
		})
	m.publisher.EXPECT().Publish(gomock.Any(), domain.EventSaleVoided, gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), domain.EventDashboardChanged, gomock.Any()).Return(nil)

	voided, err := svc.VoidSale(context.Background(), sale.ID, " wrong item ", "supervisor-1")
	require.NoError(t, err)
	assert.True(t, voided.Voided)
	assert.Equal(t, "wrong item", voided.VoidReason)
	assert.Equal(t, "supervisor-1", voided.VoidedBy)
	require.NotNil(t, voided.VoidedAt)
	assert.Equal(t, fixedNow, *voided.VoidedAt)
}

func TestSaleService_VoidSale_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		sale    *domain.Sale
		reason  string
		actor   string
		wantErr error
	}{
		{
			name:    "blank_reason",
			reason:  "   ",
			actor:   "supervisor-1",
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name:    "missing_actor",
			reason:  "wrong item",
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "outside_window",
			sale:    committedSale(fixedNow.Add(-73 * time.Hour)),
			reason:  "late",
			actor:   "supervisor-1",
			wantErr: domain.ErrTooOld,
		},
		{
			name: "already_voided",
			sale: func() *domain.Sale {
				s := committedSale(fixedNow.Add(-time.Hour))
				s.MarkVoided("earlier", "supervisor-2", fixedNow.Add(-30*time.Minute))
				return s
			}(),
			reason:  "again",
			actor:   "supervisor-1",
			wantErr: domain.ErrAlreadyVoided,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newSaleService(t)
			id := uuid.New()
			if tt.sale != nil {
				id = tt.sale.ID
				m.sales.EXPECT().LockByID(gomock.Any(), id).Return(tt.sale, nil)
			}

			_, err := svc.VoidSale(context.Background(), id, tt.reason, tt.actor)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSaleService_VoidSale_ExactlyAtWindowIsAllowed(t *testing.T) {
	svc, m := newSaleService(t)
	sale := committedSale(fixedNow.Add(-services.DefaultVoidWindow))

	m.sales.EXPECT().LockByID(gomock.Any(), sale.ID).Return(sale, nil)
	m.products.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return(nil, nil)
	m.ledger.EXPECT().RecordInbound(gomock.Any(), gomock.Any()).Return(&domain.StockMovement{}, nil).Times(len(sale.Items))
	m.sales.EXPECT().MarkVoided(gomock.Any(), sale).Return(nil)
	m.audit.EXPECT().LogAction(gomock.Any(), gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := svc.VoidSale(context.Background(), sale.ID, "boundary", "supervisor-1")
	require.NoError(t, err)
}

func TestSaleService_VoidSale_ConcurrentVoidLoses(t *testing.T) {
	svc, m := newSaleService(t)
	sale := committedSale(fixedNow.Add(-time.Hour))

	m.sales.EXPECT().LockByID(gomock.Any(), sale.ID).Return(sale, nil)
	m.products.EXPECT().LockByIDs(gomock.Any(), gomock.Any()).Return(nil, nil)
	m.ledger.EXPECT().RecordInbound(gomock.Any(), gomock.Any()).Return(&domain.StockMovement{}, nil).Times(len(sale.Items))
	m.sales.EXPECT().MarkVoided(gomock.Any(), sale).Return(domain.ErrAlreadyVoided)

	_, err := svc.VoidSale(context.Background(), sale.ID, "race", "supervisor-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyVoided)
}

func TestSaleService_VoidSale_LocksProductsBeforeRestoring(t *testing.T) {
	svc, m := newSaleService(t)
	high := uuid.MustParse("ffffffff-ffff-4fff-bfff-ffffffffffff")
	low := uuid.MustParse("00000000-0000-4000-8000-000000000001")
	sale := committedSale(fixedNow.Add(-time.Hour))
	sale.Items = []domain.SaleItem{
		{ID: uuid.New(), ProductID: high, ProductName: "Losartan", Quantity: 1},
		{ID: uuid.New(), ProductID: low, ProductName: "Metformin", Quantity: 2},
		{ID: uuid.New(), ProductID: high, ProductName: "Losartan", Quantity: 1},
	}

	var restored []uuid.UUID
	m.sales.EXPECT().LockByID(gomock.Any(), sale.ID).Return(sale, nil)
	gomock.InOrder(
		m.products.EXPECT().LockByIDs(gomock.Any(), []uuid.UUID{high, low}).Return(nil, nil),
		m.ledger.EXPECT().RecordInbound(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, in domain.MovementInput) (*domain.StockMovement, error) {
				restored = append(restored, in.ProductID)
				return &domain.StockMovement{}, nil
			}).Times(3),
	)
	m.sales.EXPECT().MarkVoided(gomock.Any(), sale).Return(nil)
	m.audit.EXPECT().LogAction(gomock.Any(), gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := svc.VoidSale(context.Background(), sale.ID, "wrong patient", "supervisor-1")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{high, low, high}, restored)
}

func TestSaleService_VoidSale_ProductLockConflict(t *testing.T) {
	svc, m := newSaleService(t)
	sale := committedSale(fixedNow.Add(-time.Hour))

	m.sales.EXPECT().LockByID(gomock.Any(), sale.ID).Return(sale, nil)
	m.products.EXPECT().LockByIDs(gomock.Any(), sale.ProductIDs()).Return(nil, domain.ErrConflict)

	_, err := svc.VoidSale(context.Background(), sale.ID, "wrong patient", "supervisor-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSaleService_GetSale(t *testing.T) {
	svc, m := newSaleService(t)
	id := uuid.New()

	m.sales.EXPECT().FindByID(gomock.Any(), id).Return(nil, domain.ErrNotFound)
	_, err := svc.GetSale(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m.sales.EXPECT().FindByCode(gomock.Any(), "S-20250314-000001").Return(&domain.Sale{ID: id}, nil)
	sale, err := svc.GetSaleByCode(context.Background(), "S-20250314-000001")
	require.NoError(t, err)
	assert.Equal(t, id, sale.ID)
}
