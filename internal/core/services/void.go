// internal/core/services/void.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/google/uuid"
)

// VoidSale reverses a committed sale. Stock restoration and the status flip
// share one transaction, and the sale row lock serializes concurrent voids.
func (s *SaleService) VoidSale(ctx context.Context, saleID uuid.UUID, reason, actorID string) (*domain.Sale, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: void reason is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: actor is required to void a sale", domain.ErrUnauthorized)
	}

	var sale *domain.Sale
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.sales.LockByID(ctx, saleID)
		if err != nil {
			return fmt.Errorf("failed to lock sale: %w", err)
		}

		now := s.now()
		if err := sale.CanVoid(now, s.voidWindow); err != nil {
			return err
		}

		// Same ascending order as CreateSale; the per-line locks taken by
		// RecordInbound below are then already held.
		if _, err := s.products.LockByIDs(ctx, sale.ProductIDs()); err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}

		movementReason := domain.VoidMovementReason(sale.Code, reason)
		for _, item := range sale.Items {
			_, err := s.ledger.RecordInbound(ctx, domain.MovementInput{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				ReferenceType: domain.ReferenceReturn,
				ReferenceID:   sale.Code,
				Reason:        movementReason,
				ActorID:       actorID,
			})
			if err != nil {
				return fmt.Errorf("failed to restore stock for %s: %w", item.ProductName, err)
			}
		}

		sale.MarkVoided(reason, actorID, now)
		if err := s.sales.MarkVoided(ctx, sale); err != nil {
			return fmt.Errorf("failed to mark sale voided: %w", err)
		}

		entry := domain.NewAuditEntry(domain.AuditSaleVoided, domain.EntitySale, sale.ID.String(), actorID,
			map[string]any{
				"code":         sale.Code,
				"reason":       reason,
				"total_amount": sale.TotalAmount.StringFixed(2),
			}, now)
		if err := s.audit.LogAction(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to void sale: %w", err)
	}

	s.logger.InfoContext(ctx, "sale voided",
		slog.String("sale_code", sale.Code),
		slog.String("voided_by", actorID),
		slog.Int("lines_restored", len(sale.Items)))

	s.effects.SaleVoided(ctx, sale)
	return sale, nil
}
