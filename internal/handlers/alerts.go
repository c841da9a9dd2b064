// internal/handlers/alerts.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// AlertHandler handles stock and expiry alert requests
type AlertHandler struct {
	alerts ports.AlertService
	logger *slog.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts ports.AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: logger.With(slog.String("handler", "alerts")),
	}
}

// AlertList is the response of alert listing and evaluation
type AlertList struct {
	Alerts []*domain.Alert `json:"alerts"`
	Count  int             `json:"count"`
}

func newAlertList(alerts []*domain.Alert) AlertList {
	if alerts == nil {
		alerts = []*domain.Alert{}
	}
	return AlertList{Alerts: alerts, Count: len(alerts)}
}

// ResolveAlertRequest is the optional body of a resolve request
type ResolveAlertRequest struct {
	ActorID string `json:"actor_id,omitempty"`
}

// Run handles POST /api/v1/alerts/run
func (h *AlertHandler) Run(w http.ResponseWriter, r *http.Request) {
	active, err := h.alerts.RunAlertChecks(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newAlertList(active))
}

// List handles GET /api/v1/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := h.alerts.ListActiveAlerts(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newAlertList(active))
}

// Resolve handles POST /api/v1/alerts/{id}/resolve
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req ResolveAlertRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	}

	alert, err := h.alerts.ResolveAlert(r.Context(), id, actorFrom(r, req.ActorID))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}
