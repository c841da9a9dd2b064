// internal/adapters/db/alert_repository.go
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

var alertColumns = []string{
	"id", "product_id", "product_code", "product_name", "type", "severity", "message",
	"days_until_expiry", "stock_quantity", "resolved", "COALESCE(resolved_by, '')", "resolved_at",
	"created_at", "updated_at",
}

// alertRepository implements ports.AlertRepository
type alertRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *Database, logger *slog.Logger) ports.AlertRepository {
	return &alertRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "alert")),
	}
}

// Create inserts a new unresolved alert. A second active alert for the same
// product and type violates uq_alerts_active and surfaces as ErrConflict.
func (r *alertRepository) Create(ctx context.Context, a *domain.Alert) error {
	query, args, err := squirrel.Insert("alerts").
		Columns(
			"id", "product_id", "product_code", "product_name", "type", "severity", "message",
			"days_until_expiry", "stock_quantity", "resolved", "created_at", "updated_at",
		).
		Values(
			a.ID, a.ProductID, a.ProductCode, a.ProductName, a.Type, a.Severity, a.Message,
			a.DaysUntilExpiry, a.StockQuantity, a.Resolved, a.CreatedAt, a.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create alert: %w", translateError(err))
	}
	return nil
}

// Update refreshes an alert's condition or resolution state
func (r *alertRepository) Update(ctx context.Context, a *domain.Alert) error {
	var resolvedBy any
	if a.ResolvedBy != "" {
		resolvedBy = a.ResolvedBy
	}

	query, args, err := squirrel.Update("alerts").
		SetMap(map[string]any{
			"severity":          a.Severity,
			"message":           a.Message,
			"days_until_expiry": a.DaysUntilExpiry,
			"stock_quantity":    a.StockQuantity,
			"resolved":          a.Resolved,
			"resolved_by":       resolvedBy,
			"resolved_at":       a.ResolvedAt,
			"updated_at":        a.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": a.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", a.ID, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, domain.ErrNotFound)
	}
	return nil
}

// FindByID retrieves an alert
func (r *alertRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	query, args, err := squirrel.Select(alertColumns...).
		From("alerts").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	a, err := ScanOne(r.db.QueryRow(ctx, query, args...), scanAlert)
	if err != nil {
		return nil, fmt.Errorf("alert %s: %w", id, err)
	}
	return a, nil
}

// ListUnresolved returns active alerts, most urgent first
func (r *alertRepository) ListUnresolved(ctx context.Context) ([]*domain.Alert, error) {
	query, args, err := squirrel.Select(alertColumns...).
		From("alerts").
		Where(squirrel.Eq{"resolved": false}).
		OrderBy(
			"CASE severity WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END",
			"created_at",
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", translateError(err))
	}
	return ScanMany(rows, scanAlert)
}

// DeleteResolvedBefore purges alerts resolved before the cutoff
func (r *alertRepository) DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM alerts WHERE resolved = TRUE AND resolved_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge alerts: %w", translateError(err))
	}

	r.logger.DebugContext(ctx, "resolved alerts purged",
		slog.Time("before", before),
		slog.Int64("deleted", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID, &a.ProductID, &a.ProductCode, &a.ProductName, &a.Type, &a.Severity, &a.Message,
		&a.DaysUntilExpiry, &a.StockQuantity, &a.Resolved, &a.ResolvedBy, &a.ResolvedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
