// internal/adapters/db/sale_code.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// saleCodeSequence draws sale codes from a Postgres sequence. Sequence values
// are never reused, so a rolled back sale leaves a gap rather than a duplicate.
type saleCodeSequence struct {
	db *Database
}

// NewSaleCodeGenerator creates a sequence backed sale code generator
func NewSaleCodeGenerator(db *Database) ports.SaleCodeGenerator {
	return &saleCodeSequence{db: db}
}

// Next returns the next sale code for the given timestamp
func (g *saleCodeSequence) Next(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := g.db.QueryRow(ctx, `SELECT nextval('sale_code_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to draw sale code: %w", translateError(err))
	}
	return domain.FormatSaleCode(at, seq), nil
}
