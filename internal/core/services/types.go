// internal/core/services/types.go
package services

import "time"

// History paging bounds
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// DefaultVoidWindow is how long after creation a sale may be voided
const DefaultVoidWindow = 72 * time.Hour

// Clock returns the current time. Services default to UTC wall time; tests
// inject a fixed clock.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
