// internal/core/ports/cache.go
package ports

import (
	"context"
	"time"
)

// CacheRepository holds derived views (the dashboard) and idempotency
// markers for background jobs. Values are stored as JSON. A cache failure
// never changes the outcome of a committed sale.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest any) error
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error
	// GetOrSet decodes key into dest. On a miss fetch is called, its result
	// stored for ttl and decoded into dest.
	GetOrSet(ctx context.Context, key string, dest any, fetch func() (any, error), ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
}
