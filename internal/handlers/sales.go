// internal/handlers/sales.go
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// SalesHandler handles point-of-sale requests
type SalesHandler struct {
	sales  ports.SaleService
	logger *slog.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(sales ports.SaleService, logger *slog.Logger) *SalesHandler {
	return &SalesHandler{
		sales:  sales,
		logger: logger.With(slog.String("handler", "sales")),
	}
}

// VoidSaleRequest is the body of POST /api/v1/sales/{id}/void
type VoidSaleRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id,omitempty"`
}

// CreateSale handles POST /api/v1/sales
func (h *SalesHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	req.OperatorID = actorFrom(r, req.OperatorID)

	sale, err := h.sales.CreateSale(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sales/"+sale.ID.String())
	respondJSON(w, http.StatusCreated, sale)
}

// GetSale handles GET /api/v1/sales/{id}. The path value may be a sale id
// or a printed sale code.
func (h *SalesHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := lookupSale(r, h.sales)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, sale)
}

// VoidSale handles POST /api/v1/sales/{id}/void
func (h *SalesHandler) VoidSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req VoidSaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	sale, err := h.sales.VoidSale(r.Context(), id, req.Reason, actorFrom(r, req.ActorID))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, sale)
}

// lookupSale resolves the {id} path value as a sale id or a sale code
func lookupSale(r *http.Request, sales ports.SaleService) (*domain.Sale, error) {
	ref := strings.TrimSpace(r.PathValue("id"))
	if id, err := uuid.Parse(ref); err == nil {
		return sales.GetSale(r.Context(), id)
	}
	return sales.GetSaleByCode(r.Context(), ref)
}
