// internal/workers/receipt_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/pharmapos-be/internal/adapters/redis_adapter"
	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

const receiptMarkerTTL = 7 * 24 * time.Hour

// ReceiptProcessor renders and stores digital receipts
type ReceiptProcessor struct {
	sales     ports.SaleService
	store     ports.ReceiptStore
	cache     ports.CacheRepository
	storeName string
	logger    *slog.Logger
}

// NewReceiptProcessor creates a new receipt processor
func NewReceiptProcessor(
	sales ports.SaleService,
	store ports.ReceiptStore,
	cache ports.CacheRepository,
	storeName string,
	logger *slog.Logger,
) *ReceiptProcessor {
	return &ReceiptProcessor{
		sales:     sales,
		store:     store,
		cache:     cache,
		storeName: storeName,
		logger:    logger.With(slog.String("processor", "receipt")),
	}
}

// ProcessTask handles receipt:render
func (p *ReceiptProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	sale, err := p.sales.GetSale(ctx, payload.SaleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("sale %s: %w: %w", payload.SaleID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load sale: %w", err)
	}

	marker := redis_a.Key(redis_a.KeyReceipt, sale.Code)
	if done, err := p.cache.Exists(ctx, marker); err == nil && done {
		p.logger.DebugContext(ctx, "receipt already stored",
			slog.String("sale_code", sale.Code))
		return nil
	}

	location, err := p.store.SaveReceipt(ctx, sale, RenderReceipt(p.storeName, sale))
	if err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}

	if err := p.cache.SetWithTTL(ctx, marker, location, receiptMarkerTTL); err != nil {
		p.logger.WarnContext(ctx, "failed to record receipt marker",
			slog.String("sale_code", sale.Code),
			slog.Any("error", err))
	}

	p.logger.InfoContext(ctx, "receipt stored",
		slog.String("sale_code", sale.Code),
		slog.String("location", location))

	return nil
}

// RenderReceipt formats sale as a fixed-width plain-text receipt
func RenderReceipt(storeName string, sale *domain.Sale) []byte {
	var buf bytes.Buffer
	rule := strings.Repeat("-", 40)

	fmt.Fprintln(&buf, storeName)
	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "Sale:     %s\n", sale.Code)
	fmt.Fprintf(&buf, "Date:     %s\n", sale.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&buf, "Cashier:  %s\n", sale.OperatorID)
	fmt.Fprintln(&buf, rule)

	tw := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', tabwriter.AlignRight)
	for _, it := range sale.Items {
		fmt.Fprintf(tw, "%s\t%d x %s\t%s\t\n",
			it.ProductName, it.Quantity, it.UnitPrice.StringFixed(2), it.Subtotal.StringFixed(2))
	}
	tw.Flush()

	fmt.Fprintln(&buf, rule)
	fmt.Fprintf(&buf, "Subtotal: %s\n", sale.Subtotal.StringFixed(2))
	if sale.DiscountType != domain.DiscountNone && sale.DiscountType != "" {
		fmt.Fprintf(&buf, "Discount (%s): -%s\n", sale.DiscountType, sale.DiscountAmount.StringFixed(2))
	}
	fmt.Fprintf(&buf, "Total:    %s\n", sale.TotalAmount.StringFixed(2))
	fmt.Fprintf(&buf, "Paid:     %s (%s)\n", sale.AmountPaid.StringFixed(2), sale.PaymentMethod)
	if sale.PaymentReference != "" {
		fmt.Fprintf(&buf, "Ref:      %s\n", sale.PaymentReference)
	}
	fmt.Fprintf(&buf, "Change:   %s\n", sale.ChangeAmount.StringFixed(2))

	if sale.Voided {
		fmt.Fprintln(&buf, rule)
		fmt.Fprintf(&buf, "VOIDED by %s: %s\n", sale.VoidedBy, sale.VoidReason)
	}

	return buf.Bytes()
}
