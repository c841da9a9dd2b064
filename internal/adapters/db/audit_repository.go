// internal/adapters/db/audit_repository.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// auditRepository implements ports.AuditLogger on the audit_logs table
type auditRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewAuditLogger creates a Postgres backed audit logger
func NewAuditLogger(db *Database, logger *slog.Logger) ports.AuditLogger {
	return &auditRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "audit")),
	}
}

// LogAction writes one audit row. Inside a transaction it commits with the
// business change it describes.
func (r *auditRepository) LogAction(ctx context.Context, entry domain.AuditEntry) error {
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.ActorID, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", translateError(err))
	}

	r.logger.DebugContext(ctx, "audit entry written",
		slog.String("action", string(entry.Action)),
		slog.String("entity_id", entry.EntityID))

	return nil
}
