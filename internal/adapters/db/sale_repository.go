// internal/adapters/db/sale_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

const saleColumns = `
	id, code, operator_id, subtotal, discount_type, discount_amount, total_amount,
	payment_method, COALESCE(payment_reference, ''), amount_paid, change_amount,
	created_at, voided, COALESCE(void_reason, ''), COALESCE(voided_by, ''), voided_at`

// saleRepository implements ports.SaleRepository
type saleRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *Database, logger *slog.Logger) ports.SaleRepository {
	return &saleRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "sale")),
	}
}

// Create inserts the sale header and its items in one round trip
func (r *saleRepository) Create(ctx context.Context, s *domain.Sale) error {
	batch := r.db.Batch()
	batch.Queue(`
		INSERT INTO sales (
			id, code, operator_id, subtotal, discount_type, discount_amount, total_amount,
			payment_method, payment_reference, amount_paid, change_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		s.ID, s.Code, s.OperatorID, s.Subtotal, s.DiscountType, s.DiscountAmount, s.TotalAmount,
		s.PaymentMethod, s.PaymentReference, s.AmountPaid, s.ChangeAmount, s.CreatedAt,
	)

	for i, item := range s.Items {
		batch.Queue(`
			INSERT INTO sale_items (
				id, sale_id, product_id, product_name, quantity, unit_price, subtotal, line_no
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, s.ID, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice, item.Subtotal, i+1,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert sale %s: %w", s.Code, translateError(err))
		}
	}

	r.logger.DebugContext(ctx, "sale inserted",
		slog.String("sale_id", s.ID.String()),
		slog.String("code", s.Code),
		slog.Int("items", len(s.Items)))

	return nil
}

// FindByID retrieves a sale with its items
func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return r.find(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

// FindByCode retrieves a sale by its human-readable code
func (r *saleRepository) FindByCode(ctx context.Context, code string) (*domain.Sale, error) {
	return r.find(ctx, `SELECT `+saleColumns+` FROM sales WHERE code = $1`, code)
}

// LockByID reads the sale holding its row lock
func (r *saleRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return r.find(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r *saleRepository) find(ctx context.Context, query string, key any) (*domain.Sale, error) {
	s, err := ScanOne(r.db.QueryRow(ctx, query, key), scanSale)
	if err != nil {
		return nil, fmt.Errorf("sale %v: %w", key, err)
	}

	items, err := r.items(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Items = items

	return s, nil
}

func (r *saleRepository) items(ctx context.Context, saleID uuid.UUID) ([]domain.SaleItem, error) {
	query := `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY line_no`

	rows, err := r.db.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", translateError(err))
	}

	scanned, err := ScanMany(rows, scanSaleItem)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}

	items := make([]domain.SaleItem, 0, len(scanned))
	for _, item := range scanned {
		items = append(items, *item)
	}
	return items, nil
}

// MarkVoided flips the sale to voided exactly once
func (r *saleRepository) MarkVoided(ctx context.Context, s *domain.Sale) error {
	query := `
		UPDATE sales
		SET voided = TRUE, void_reason = $2, voided_by = $3, voided_at = $4
		WHERE id = $1 AND voided = FALSE`

	tag, err := r.db.Exec(ctx, query, s.ID, s.VoidReason, s.VoidedBy, s.VoidedAt)
	if err != nil {
		return fmt.Errorf("failed to void sale %s: %w", s.Code, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sales WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to void sale %s: %w", s.Code, translateError(err))
		}
		if !exists {
			return fmt.Errorf("sale %s: %w", s.Code, domain.ErrNotFound)
		}
		return fmt.Errorf("sale %s: %w", s.Code, domain.ErrAlreadyVoided)
	}
	return nil
}

// DailySummary aggregates sales created in [from, to). Alert counts are
// filled in by the caller.
func (r *saleRepository) DailySummary(ctx context.Context, from, to time.Time) (*domain.DashboardSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE NOT s.voided),
			COALESCE(SUM(s.total_amount) FILTER (WHERE NOT s.voided), 0),
			COUNT(*) FILTER (WHERE s.voided),
			COALESCE(SUM(s.total_amount) FILTER (WHERE s.voided), 0),
			COALESCE((
				SELECT SUM(si.quantity)
				FROM sale_items si
				JOIN sales v ON v.id = si.sale_id
				WHERE NOT v.voided AND v.created_at >= $1 AND v.created_at < $2
			), 0)
		FROM sales s
		WHERE s.created_at >= $1 AND s.created_at < $2`

	summary := &domain.DashboardSummary{Date: from.Format(time.DateOnly)}
	err := r.db.QueryRow(ctx, query, from, to).Scan(
		&summary.SalesCount,
		&summary.SalesTotal,
		&summary.VoidedCount,
		&summary.VoidedTotal,
		&summary.ItemsSold,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to summarize sales: %w", translateError(err))
	}
	return summary, nil
}

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var s domain.Sale
	err := row.Scan(
		&s.ID, &s.Code, &s.OperatorID, &s.Subtotal, &s.DiscountType, &s.DiscountAmount, &s.TotalAmount,
		&s.PaymentMethod, &s.PaymentReference, &s.AmountPaid, &s.ChangeAmount,
		&s.CreatedAt, &s.Voided, &s.VoidReason, &s.VoidedBy, &s.VoidedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSaleItem(row pgx.Row) (*domain.SaleItem, error) {
	var item domain.SaleItem
	err := row.Scan(
		&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
		&item.Quantity, &item.UnitPrice, &item.Subtotal,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
