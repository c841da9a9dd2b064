// internal/adapters/db/movement_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// movementRepository implements ports.MovementRepository
type movementRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewMovementRepository creates a new stock movement repository
func NewMovementRepository(db *Database, logger *slog.Logger) ports.MovementRepository {
	return &movementRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "movement")),
	}
}

// Create appends a movement to the ledger
func (r *movementRepository) Create(ctx context.Context, m *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			id, product_id, movement_type, quantity, previous_quantity, new_quantity,
			reference_type, reference_id, reason, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.ProductID, m.MovementType, m.Quantity, m.PreviousQuantity, m.NewQuantity,
		m.ReferenceType, m.ReferenceID, m.Reason, m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record movement: %w", translateError(err))
	}

	r.logger.DebugContext(ctx, "movement recorded",
		slog.String("product_id", m.ProductID.String()),
		slog.String("type", string(m.MovementType)),
		slog.Int("quantity", m.Quantity),
		slog.Int("new_quantity", m.NewQuantity))

	return nil
}

// List returns movements newest first
func (r *movementRepository) List(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	qb := squirrel.Select(
		"id", "product_id", "movement_type", "quantity", "previous_quantity", "new_quantity",
		"reference_type", "COALESCE(reference_id, '')", "COALESCE(reason, '')", "created_by", "created_at",
	).From("stock_movements").PlaceholderFormat(squirrel.Dollar)

	if filter.ProductID != nil {
		qb = qb.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.From != nil {
		qb = qb.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		qb = qb.Where(squirrel.Lt{"created_at": *filter.To})
	}
	if filter.MovementType != "" {
		qb = qb.Where(squirrel.Eq{"movement_type": filter.MovementType})
	}
	if filter.ReferenceType != "" {
		qb = qb.Where(squirrel.Eq{"reference_type": filter.ReferenceType})
	}
	if filter.ReferenceID != "" {
		qb = qb.Where(squirrel.Eq{"reference_id": filter.ReferenceID})
	}

	qb = qb.OrderBy("created_at DESC", "id")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", translateError(err))
	}
	return ScanMany(rows, scanMovement)
}

// Totals returns inbound and outbound magnitudes for a product in [from, to)
func (r *movementRepository) Totals(ctx context.Context, productID uuid.UUID, from, to time.Time) (int, int, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN quantity > 0 THEN quantity ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN quantity < 0 THEN -quantity ELSE 0 END), 0)
		FROM stock_movements
		WHERE product_id = $1 AND created_at >= $2 AND created_at < $3`

	var inbound, outbound int
	if err := r.db.QueryRow(ctx, query, productID, from, to).Scan(&inbound, &outbound); err != nil {
		return 0, 0, fmt.Errorf("failed to total movements: %w", translateError(err))
	}
	return inbound, outbound, nil
}

// SumQuantity folds a product's whole ledger
func (r *movementRepository) SumQuantity(ctx context.Context, productID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id = $1`

	var sum int
	if err := r.db.QueryRow(ctx, query, productID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum movements: %w", translateError(err))
	}
	return sum, nil
}

func scanMovement(row pgx.Row) (*domain.StockMovement, error) {
	var m domain.StockMovement
	err := row.Scan(
		&m.ID, &m.ProductID, &m.MovementType, &m.Quantity, &m.PreviousQuantity, &m.NewQuantity,
		&m.ReferenceType, &m.ReferenceID, &m.Reason, &m.CreatedBy, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
