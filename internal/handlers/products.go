// internal/handlers/products.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// ProductHandler exposes stock ledger operations per product
type ProductHandler struct {
	ledger ports.LedgerService
	logger *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(ledger ports.LedgerService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		ledger: ledger,
		logger: logger.With(slog.String("handler", "products")),
	}
}

// MovementRequest is the body of inbound and outbound requests
type MovementRequest struct {
	Quantity      int                  `json:"quantity"`
	ReferenceType domain.ReferenceType `json:"reference_type"`
	ReferenceID   string               `json:"reference_id,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	ActorID       string               `json:"actor_id,omitempty"`
}

// AdjustmentRequest is the body of a physical count
type AdjustmentRequest struct {
	CountedQuantity *int   `json:"counted_quantity"`
	Reason          string `json:"reason"`
	ActorID         string `json:"actor_id,omitempty"`
}

// RecordInbound handles POST /api/v1/products/{id}/inbound
func (h *ProductHandler) RecordInbound(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, domain.ReferenceReturn, h.ledger.RecordInbound)
}

// RecordOutbound handles POST /api/v1/products/{id}/outbound. Sale movements
// come only from the sale engine and return movements only from voids.
func (h *ProductHandler) RecordOutbound(w http.ResponseWriter, r *http.Request) {
	h.recordMovement(w, r, domain.ReferenceSale, h.ledger.RecordOutbound)
}

func (h *ProductHandler) recordMovement(
	w http.ResponseWriter,
	r *http.Request,
	reserved domain.ReferenceType,
	record func(ctx context.Context, in domain.MovementInput) (*domain.StockMovement, error),
) {
	productID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req MovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.ReferenceType == reserved {
		respondError(w, r, h.logger, invalid("reference_type %q cannot be recorded manually", reserved))
		return
	}

	movement, err := record(r.Context(), domain.MovementInput{
		ProductID:     productID,
		Quantity:      req.Quantity,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Reason:        req.Reason,
		ActorID:       actorFrom(r, req.ActorID),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, movement)
}

// RecordAdjustment handles POST /api/v1/products/{id}/adjustments
func (h *ProductHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req AdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.CountedQuantity == nil {
		respondError(w, r, h.logger, invalid("counted_quantity is required"))
		return
	}

	movement, err := h.ledger.RecordAdjustment(r.Context(), domain.AdjustmentInput{
		ProductID:       productID,
		CountedQuantity: *req.CountedQuantity,
		Reason:          req.Reason,
		ActorID:         actorFrom(r, req.ActorID),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, movement)
}

// VerifyProduct handles GET /api/v1/products/{id}/ledger-check
func (h *ProductHandler) VerifyProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	check, err := h.ledger.VerifyProduct(r.Context(), productID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, check)
}
