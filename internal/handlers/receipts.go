// internal/handlers/receipts.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// ReceiptHandler serves rendered digital receipts
type ReceiptHandler struct {
	sales    ports.SaleService
	receipts ports.ReceiptStore
	urlTTL   time.Duration
	logger   *slog.Logger
}

// NewReceiptHandler creates a receipt handler. Links expire after urlTTL.
func NewReceiptHandler(sales ports.SaleService, receipts ports.ReceiptStore, urlTTL time.Duration, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		sales:    sales,
		receipts: receipts,
		urlTTL:   urlTTL,
		logger:   logger.With(slog.String("handler", "receipts")),
	}
}

// ReceiptLink is the body of GET /api/v1/sales/{id}/receipt
type ReceiptLink struct {
	SaleID    uuid.UUID `json:"sale_id"`
	SaleCode  string    `json:"sale_code"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetReceipt handles GET /api/v1/sales/{id}/receipt. With download=true the
// receipt text is returned; otherwise a time-limited link.
func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	sale, err := lookupSale(r, h.sales)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	download, _ := strconv.ParseBool(r.URL.Query().Get("download"))
	if download {
		body, err := h.receipts.LoadReceipt(r.Context(), sale)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `inline; filename="`+sale.Code+`.txt"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	url, err := h.receipts.ReceiptURL(r.Context(), sale, h.urlTTL)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, ReceiptLink{
		SaleID:    sale.ID,
		SaleCode:  sale.Code,
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(h.urlTTL),
	})
}
