// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

const productColumns = `
	id, code, name, category, unit_price, stock_quantity,
	expiry_date, archived, created_at, updated_at`

// productRepository implements ports.ProductRepository
type productRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *Database, logger *slog.Logger) ports.ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "product")),
	}
}

// Create inserts a new catalogue entry
func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.Code, p.Name, p.Category, p.UnitPrice, p.StockQuantity,
		p.ExpiryDate, p.Archived, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product %s: %w", p.Code, translateError(err))
	}

	r.logger.DebugContext(ctx, "product created",
		slog.String("id", p.ID.String()),
		slog.String("code", p.Code))

	return nil
}

// FindByID retrieves a product by id
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := ScanOne(r.db.QueryRow(ctx, query, id), scanProduct)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// FindByCode retrieves a product by its external code
func (r *productRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = $1`

	p, err := ScanOne(r.db.QueryRow(ctx, query, code), scanProduct)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", code, err)
	}
	return p, nil
}

// LockByID reads a product holding its row lock
func (r *productRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	p, err := ScanOne(r.db.QueryRow(ctx, query, id), scanProduct)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// LockByIDs locks products in ascending id order so that carts sharing
// products always acquire their locks in the same sequence.
func (r *productRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	rows, err := r.db.Query(ctx, query, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", translateError(err))
	}

	products, err := ScanMany(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	r.logger.DebugContext(ctx, "products locked",
		slog.Int("requested", len(ids)),
		slog.Int("locked", len(products)))

	return products, nil
}

// UpdateStock writes the materialized stock level. Only the ledger calls it.
func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `UPDATE products SET stock_quantity = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update stock for %s: %w", id, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListActive returns every non-archived product ordered by code
func (r *productRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE archived = FALSE ORDER BY code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", translateError(err))
	}
	return ScanMany(rows, scanProduct)
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Category, &p.UnitPrice, &p.StockQuantity,
		&p.ExpiryDate, &p.Archived, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
