// internal/core/services/sale.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/google/uuid"
)

// SaleService turns carts into committed sales and voids them
type SaleService struct {
	products   ports.ProductRepository
	sales      ports.SaleRepository
	codes      ports.SaleCodeGenerator
	ledger     ports.LedgerService
	audit      ports.AuditLogger
	tx         ports.TxManager
	effects    *Effects
	voidWindow time.Duration
	logger     *slog.Logger
	now        Clock
}

var _ ports.SaleService = (*SaleService)(nil)

// SaleDeps groups the collaborators of SaleService
type SaleDeps struct {
	Products ports.ProductRepository
	Sales    ports.SaleRepository
	Codes    ports.SaleCodeGenerator
	Ledger   ports.LedgerService
	Audit    ports.AuditLogger
	Tx       ports.TxManager
	Effects  *Effects
}

// NewSaleService creates a new sale service. A zero voidWindow falls back
// to DefaultVoidWindow.
func NewSaleService(deps SaleDeps, voidWindow time.Duration, logger *slog.Logger) *SaleService {
	if voidWindow <= 0 {
		voidWindow = DefaultVoidWindow
	}
	return &SaleService{
		products:   deps.Products,
		sales:      deps.Sales,
		codes:      deps.Codes,
		ledger:     deps.Ledger,
		audit:      deps.Audit,
		tx:         deps.Tx,
		effects:    deps.Effects,
		voidWindow: voidWindow,
		logger:     logger.With(slog.String("service", "sales")),
		now:        utcNow,
	}
}

// WithClock replaces the service clock
func (s *SaleService) WithClock(now Clock) *SaleService {
	s.now = now
	return s
}

// CreateSale validates the cart, then in one transaction locks the products,
// prices the cart, persists the sale and books one outbound movement per line.
func (s *SaleService) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (*domain.Sale, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sale *domain.Sale
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		products, err := s.lockCartProducts(ctx, &req)
		if err != nil {
			return err
		}

		now := s.now()
		totals, err := domain.ComputeTotals(req.Items, products, req.DiscountType, req.AmountPaid)
		if err != nil {
			return err
		}

		code, err := s.codes.Next(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to generate sale code: %w", err)
		}

		sale = domain.NewSale(&req, code, totals, now)
		if err := s.sales.Create(ctx, sale); err != nil {
			return fmt.Errorf("failed to save sale: %w", err)
		}

		for _, item := range sale.Items {
			_, err := s.ledger.RecordOutbound(ctx, domain.MovementInput{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				ReferenceType: domain.ReferenceSale,
				ReferenceID:   sale.Code,
				ActorID:       sale.OperatorID,
			})
			if err != nil {
				return fmt.Errorf("failed to record outbound for %s: %w", item.ProductName, err)
			}
		}

		entry := domain.NewAuditEntry(domain.AuditSaleCreated, domain.EntitySale, sale.ID.String(), sale.OperatorID,
			map[string]any{
				"code":           sale.Code,
				"total_amount":   sale.TotalAmount.StringFixed(2),
				"discount_type":  string(sale.DiscountType),
				"payment_method": string(sale.PaymentMethod),
				"line_count":     len(sale.Items),
			}, now)
		if err := s.audit.LogAction(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	s.logger.InfoContext(ctx, "sale completed",
		slog.String("sale_code", sale.Code),
		slog.String("operator_id", sale.OperatorID),
		slog.String("total_amount", sale.TotalAmount.StringFixed(2)),
		slog.Int("lines", len(sale.Items)))

	s.effects.SaleCompleted(ctx, sale)
	return sale, nil
}

// lockCartProducts locks every product in the cart and checks it can cover
// the aggregated requested quantity.
func (s *SaleService) lockCartProducts(ctx context.Context, req *domain.CreateSaleRequest) (map[uuid.UUID]*domain.Product, error) {
	ids := req.ProductIDs()
	locked, err := s.products.LockByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	products := make(map[uuid.UUID]*domain.Product, len(locked))
	for _, p := range locked {
		products[p.ID] = p
	}

	requested := req.RequestedQuantities()
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		if p.Archived {
			return nil, fmt.Errorf("%w: product %s is archived", domain.ErrInvalidArgument, p.Code)
		}
		if p.StockQuantity < requested[id] {
			return nil, fmt.Errorf("%w: %s has %d, requested %d",
				domain.ErrInsufficientStock, p.Code, p.StockQuantity, requested[id])
		}
	}
	return products, nil
}

// GetSale returns a sale with its items
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}

// GetSaleByCode returns a sale by its human-readable code
func (s *SaleService) GetSaleByCode(ctx context.Context, code string) (*domain.Sale, error) {
	sale, err := s.sales.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}
