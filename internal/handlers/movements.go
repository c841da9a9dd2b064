// internal/handlers/movements.go
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// MovementHandler serves stock movement history
type MovementHandler struct {
	ledger ports.LedgerService
	export ExportOptions
	logger *slog.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(ledger ports.LedgerService, export ExportOptions, logger *slog.Logger) *MovementHandler {
	return &MovementHandler{
		ledger: ledger,
		export: export.withDefaults(),
		logger: logger.With(slog.String("handler", "movements")),
	}
}

// MovementPage is the response of GET /api/v1/movements
type MovementPage struct {
	Movements []*domain.StockMovement `json:"movements"`
	Limit     int                     `json:"limit"`
	Offset    int                     `json:"offset"`
	Count     int                     `json:"count"`
}

// History handles GET /api/v1/movements
func (h *MovementHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	movements, err := h.ledger.GetHistory(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if movements == nil {
		movements = []*domain.StockMovement{}
	}

	respondJSON(w, http.StatusOK, MovementPage{
		Movements: movements,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
		Count:     len(movements),
	})
}

// Summary handles GET /api/v1/movements/summary?product_id=&month=&year=
func (h *MovementHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	productID, err := uuid.Parse(q.Get("product_id"))
	if err != nil {
		respondError(w, r, h.logger, invalid("product_id is required and must be a valid id"))
		return
	}

	now := time.Now().UTC()
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	summary, err := h.ledger.GetSummary(r.Context(), productID, month, year)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func parseMovementFilter(r *http.Request) (domain.MovementFilter, error) {
	q := r.URL.Query()
	var f domain.MovementFilter

	if raw := q.Get("product_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, invalid("product_id %q is not a valid id", raw)
		}
		f.ProductID = &id
	}

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			return f, invalid("%s must be RFC 3339 or YYYY-MM-DD", bound.name)
		}
		*bound.dst = &t
	}

	f.MovementType = domain.MovementType(strings.ToLower(q.Get("movement_type")))
	f.ReferenceType = domain.ReferenceType(strings.ToLower(q.Get("reference_type")))
	f.ReferenceID = q.Get("reference_id")

	var err error
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}

	return f, f.Validate()
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
