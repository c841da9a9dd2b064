// internal/adapters/storage/storage.go
package storage

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Storage drivers
const (
	DriverS3    = "s3"
	DriverLocal = "local"
)

// StorageClient is the object store receipts are written to and read from
type StorageClient interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string, metadata map[string]string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetPresignedURL(ctx context.Context, key string, duration time.Duration) (string, error)
}

var (
	_ StorageClient = (*S3Storage)(nil)
	_ StorageClient = (*LocalStorage)(nil)
)

// NewStorageClient picks the backend by driver name. DriverLocal stores
// under localDir; anything else uses S3.
func NewStorageClient(ctx context.Context, driver, localDir string, cfg *S3Config, logger *slog.Logger) (StorageClient, error) {
	if driver == DriverLocal {
		return NewLocalStorage(localDir, logger), nil
	}
	client, err := NewS3Storage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
