// internal/core/services/ledger.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/google/uuid"
)

// LedgerService appends stock movements and keeps the materialized product
// stock in step with them
type LedgerService struct {
	products  ports.ProductRepository
	movements ports.MovementRepository
	audit     ports.AuditLogger
	tx        ports.TxManager
	logger    *slog.Logger
	now       Clock
}

var _ ports.LedgerService = (*LedgerService)(nil)

// NewLedgerService creates a new ledger service
func NewLedgerService(
	products ports.ProductRepository,
	movements ports.MovementRepository,
	audit ports.AuditLogger,
	tx ports.TxManager,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		products:  products,
		movements: movements,
		audit:     audit,
		tx:        tx,
		logger:    logger.With(slog.String("service", "ledger")),
		now:       utcNow,
	}
}

// WithClock replaces the service clock
func (s *LedgerService) WithClock(now Clock) *LedgerService {
	s.now = now
	return s
}

// RecordInbound adds stock. It joins a transaction already carried by ctx.
func (s *LedgerService) RecordInbound(ctx context.Context, in domain.MovementInput) (*domain.StockMovement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var movement *domain.StockMovement
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.products.LockByID(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("failed to lock product: %w", err)
		}

		movement = domain.NewInboundMovement(in, product.StockQuantity, s.now())
		if err := s.apply(ctx, movement); err != nil {
			return err
		}

		if in.ReferenceType == domain.ReferenceReturn {
			return nil
		}
		return s.logAudit(ctx, domain.AuditItemArrival, product, movement, nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "recorded inbound movement",
		slog.String("product_id", movement.ProductID.String()),
		slog.Int("quantity", movement.Quantity),
		slog.Int("new_quantity", movement.NewQuantity),
		slog.String("reference_type", string(movement.ReferenceType)))

	return movement, nil
}

// RecordOutbound removes stock, failing with domain.ErrInsufficientStock
// when the product cannot cover the quantity.
func (s *LedgerService) RecordOutbound(ctx context.Context, in domain.MovementInput) (*domain.StockMovement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var movement *domain.StockMovement
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.products.LockByID(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("failed to lock product: %w", err)
		}

		movement, err = domain.NewOutboundMovement(in, product.StockQuantity, s.now())
		if err != nil {
			return err
		}
		if err := s.apply(ctx, movement); err != nil {
			return err
		}

		// Sales are audited as a whole by the sale engine.
		if in.ReferenceType == domain.ReferenceSale {
			return nil
		}
		return s.logAudit(ctx, domain.AuditStockRemoved, product, movement, nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "recorded outbound movement",
		slog.String("product_id", movement.ProductID.String()),
		slog.Int("quantity", movement.Quantity),
		slog.Int("new_quantity", movement.NewQuantity),
		slog.String("reference_type", string(movement.ReferenceType)),
		slog.String("reference_id", movement.ReferenceID))

	return movement, nil
}

// RecordAdjustment reconciles stock with a physical count. The difference is
// booked as an inbound or outbound adjustment movement.
func (s *LedgerService) RecordAdjustment(ctx context.Context, in domain.AdjustmentInput) (*domain.StockMovement, error) {
	if in.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id is required", domain.ErrInvalidArgument)
	}
	if in.CountedQuantity < 0 {
		return nil, fmt.Errorf("%w: counted_quantity cannot be negative", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required for adjustments", domain.ErrInvalidArgument)
	}

	var movement *domain.StockMovement
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.products.LockByID(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("failed to lock product: %w", err)
		}

		delta := in.CountedQuantity - product.StockQuantity
		if delta == 0 {
			return fmt.Errorf("%w: counted quantity matches stock, no stock change", domain.ErrInvalidArgument)
		}

		mi := domain.MovementInput{
			ProductID:     in.ProductID,
			ReferenceType: domain.ReferenceAdjustment,
			Reason:        in.Reason,
			ActorID:       in.ActorID,
		}
		if delta > 0 {
			mi.Quantity = delta
			movement = domain.NewInboundMovement(mi, product.StockQuantity, s.now())
		} else {
			mi.Quantity = -delta
			if movement, err = domain.NewOutboundMovement(mi, product.StockQuantity, s.now()); err != nil {
				return err
			}
		}

		if err := s.apply(ctx, movement); err != nil {
			return err
		}
		return s.logAudit(ctx, domain.AuditStockAdjusted, product, movement, map[string]any{
			"counted_quantity": in.CountedQuantity,
			"delta":            delta,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "recorded stock adjustment",
		slog.String("product_id", movement.ProductID.String()),
		slog.Int("previous_quantity", movement.PreviousQuantity),
		slog.Int("new_quantity", movement.NewQuantity))

	return movement, nil
}

// GetHistory lists movements newest first
func (s *LedgerService) GetHistory(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultHistoryLimit
	}
	if filter.Limit > MaxHistoryLimit {
		filter.Limit = MaxHistoryLimit
	}

	movements, err := s.movements.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

// GetSummary aggregates a product's movements over a calendar month (UTC)
func (s *LedgerService) GetSummary(ctx context.Context, productID uuid.UUID, month, year int) (*domain.MovementSummary, error) {
	from, to, err := domain.MonthWindow(month, year)
	if err != nil {
		return nil, err
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	inbound, outbound, err := s.movements.Totals(ctx, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize movements: %w", err)
	}

	return &domain.MovementSummary{
		ProductID:     productID,
		Month:         month,
		Year:          year,
		TotalInbound:  inbound,
		TotalOutbound: outbound,
		NetChange:     inbound - outbound,
	}, nil
}

// VerifyProduct compares the materialized stock with the ledger fold
func (s *LedgerService) VerifyProduct(ctx context.Context, productID uuid.UUID) (*domain.LedgerCheck, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	sum, err := s.movements.SumQuantity(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	check := &domain.LedgerCheck{
		ProductID:     productID,
		StockQuantity: product.StockQuantity,
		LedgerSum:     sum,
		Consistent:    sum == product.StockQuantity,
	}
	if !check.Consistent {
		s.logger.WarnContext(ctx, "stock does not match ledger",
			slog.String("product_id", productID.String()),
			slog.Int("stock_quantity", check.StockQuantity),
			slog.Int("ledger_sum", check.LedgerSum))
	}
	return check, nil
}

func (s *LedgerService) apply(ctx context.Context, m *domain.StockMovement) error {
	if err := s.movements.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	if err := s.products.UpdateStock(ctx, m.ProductID, m.NewQuantity); err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return nil
}

func (s *LedgerService) logAudit(ctx context.Context, action domain.AuditAction, p *domain.Product, m *domain.StockMovement, extra map[string]any) error {
	details := map[string]any{
		"product_code":      p.Code,
		"movement_id":       m.ID.String(),
		"quantity":          m.Quantity,
		"previous_quantity": m.PreviousQuantity,
		"new_quantity":      m.NewQuantity,
		"reference_type":    string(m.ReferenceType),
	}
	if m.ReferenceID != "" {
		details["reference_id"] = m.ReferenceID
	}
	if m.Reason != "" {
		details["reason"] = m.Reason
	}
	for k, v := range extra {
		details[k] = v
	}

	entry := domain.NewAuditEntry(action, domain.EntityProduct, p.ID.String(), m.CreatedBy, details, m.CreatedAt)
	if err := s.audit.LogAction(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}
