// internal/core/ports/collaborators.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/google/uuid"
)

// AuditLogger records business actions. Entries written with a
// transactional context commit or roll back with it.
type AuditLogger interface {
	LogAction(ctx context.Context, entry domain.AuditEntry) error
}

// EventPublisher broadcasts post-commit events to interested listeners
type EventPublisher interface {
	Publish(ctx context.Context, event domain.EventName, payload any) error
}

// ReceiptScheduler queues rendering of a digital receipt for a committed sale
type ReceiptScheduler interface {
	ScheduleReceipt(ctx context.Context, saleID uuid.UUID) error
}

// ReceiptStore keeps rendered receipts. Reads return domain.ErrNotFound
// until the receipt has been rendered.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, sale *domain.Sale, body []byte) (string, error)
	LoadReceipt(ctx context.Context, sale *domain.Sale) ([]byte, error)
	ReceiptURL(ctx context.Context, sale *domain.Sale, ttl time.Duration) (string, error)
}
