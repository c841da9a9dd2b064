// internal/adapters/storage/receipts.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// ReceiptStore keeps rendered digital receipts in object storage
type ReceiptStore struct {
	client StorageClient
	logger *slog.Logger
}

var _ ports.ReceiptStore = (*ReceiptStore)(nil)

// NewReceiptStore creates a receipt store on top of a storage client
func NewReceiptStore(client StorageClient, logger *slog.Logger) *ReceiptStore {
	return &ReceiptStore{
		client: client,
		logger: logger.With(slog.String("component", "receipt_store")),
	}
}

// ReceiptKey returns receipts/YYYY/MM/<code>.txt for the sale
func ReceiptKey(sale *domain.Sale) string {
	at := sale.CreatedAt.UTC()
	return fmt.Sprintf("receipts/%04d/%02d/%s.txt", at.Year(), int(at.Month()), sale.Code)
}

// SaveReceipt uploads the receipt body and returns its location
func (r *ReceiptStore) SaveReceipt(ctx context.Context, sale *domain.Sale, body []byte) (string, error) {
	key := ReceiptKey(sale)

	location, err := r.client.Upload(ctx, key, bytes.NewReader(body), "text/plain; charset=utf-8", map[string]string{
		"sale-id":   sale.ID.String(),
		"sale-code": sale.Code,
		"voided":    fmt.Sprintf("%t", sale.Voided),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store receipt %s: %w", sale.Code, err)
	}

	r.logger.InfoContext(ctx, "receipt stored",
		slog.String("sale_code", sale.Code),
		slog.String("key", key))

	return location, nil
}

func (r *ReceiptStore) stored(ctx context.Context, sale *domain.Sale) (string, error) {
	key := ReceiptKey(sale)
	ok, err := r.client.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to look up receipt %s: %w", sale.Code, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: receipt for sale %s", domain.ErrNotFound, sale.Code)
	}
	return key, nil
}

// LoadReceipt returns the stored receipt body
func (r *ReceiptStore) LoadReceipt(ctx context.Context, sale *domain.Sale) ([]byte, error) {
	key, err := r.stored(ctx, sale)
	if err != nil {
		return nil, err
	}
	body, err := r.client.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt %s: %w", sale.Code, err)
	}
	return body, nil
}

// ReceiptURL returns a time-limited download link for the receipt
func (r *ReceiptStore) ReceiptURL(ctx context.Context, sale *domain.Sale, ttl time.Duration) (string, error) {
	key, err := r.stored(ctx, sale)
	if err != nil {
		return "", err
	}
	url, err := r.client.GetPresignedURL(ctx, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt url %s: %w", sale.Code, err)
	}
	return url, nil
}
