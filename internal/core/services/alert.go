// internal/core/services/alert.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/google/uuid"
)

// AlertService derives alerts from current product state
type AlertService struct {
	products ports.ProductRepository
	alerts   ports.AlertRepository
	audit    ports.AuditLogger
	tx       ports.TxManager
	effects  *Effects
	policy   domain.AlertPolicy
	logger   *slog.Logger
	now      Clock
}

var _ ports.AlertService = (*AlertService)(nil)

// NewAlertService creates a new alert service
func NewAlertService(
	products ports.ProductRepository,
	alerts ports.AlertRepository,
	audit ports.AuditLogger,
	tx ports.TxManager,
	effects *Effects,
	policy domain.AlertPolicy,
	logger *slog.Logger,
) *AlertService {
	return &AlertService{
		products: products,
		alerts:   alerts,
		audit:    audit,
		tx:       tx,
		effects:  effects,
		policy:   policy,
		logger:   logger.With(slog.String("service", "alerts")),
		now:      utcNow,
	}
}

// WithClock replaces the service clock
func (s *AlertService) WithClock(now Clock) *AlertService {
	s.now = now
	return s
}

type alertKey struct {
	productID uuid.UUID
	typ       domain.AlertType
}

// RunAlertChecks evaluates every active product, raising or refreshing one
// unresolved alert per (product, type) and auto-resolving alerts whose
// condition no longer holds. It returns the alerts active afterwards.
func (s *AlertService) RunAlertChecks(ctx context.Context) ([]*domain.Alert, error) {
	var (
		active   []*domain.Alert
		raised   []*domain.Alert
		resolved int
		changed  bool
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		active, raised, resolved, changed = nil, nil, 0, false

		products, err := s.products.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}

		existing, err := s.alerts.ListUnresolved(ctx)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}
		open := make(map[alertKey]*domain.Alert, len(existing))
		for _, a := range existing {
			open[alertKey{a.ProductID, a.Type}] = a
		}

		now := s.now()
		seen := make(map[alertKey]struct{})
		for _, p := range products {
			for _, cond := range s.policy.Evaluate(p, now) {
				key := alertKey{p.ID, cond.Type}
				seen[key] = struct{}{}

				if a, ok := open[key]; ok {
					if a.Refresh(p, cond, now) {
						if err := s.alerts.Update(ctx, a); err != nil {
							return fmt.Errorf("failed to refresh alert: %w", err)
						}
						changed = true
					}
					active = append(active, a)
					continue
				}

				a := domain.NewAlert(p, cond, now)
				if err := s.alerts.Create(ctx, a); err != nil {
					return fmt.Errorf("failed to create alert: %w", err)
				}
				raised = append(raised, a)
				active = append(active, a)
			}
		}

		// Conditions that cleared, including products archived since.
		for _, a := range existing {
			if _, ok := seen[alertKey{a.ProductID, a.Type}]; ok {
				continue
			}
			if err := a.Resolve(domain.SystemActor, now); err != nil {
				return err
			}
			if err := s.alerts.Update(ctx, a); err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}
			resolved++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run alert checks: %w", err)
	}

	s.logger.InfoContext(ctx, "alert checks completed",
		slog.Int("active", len(active)),
		slog.Int("raised", len(raised)),
		slog.Int("auto_resolved", resolved))

	if len(raised) > 0 || resolved > 0 || changed {
		s.effects.AlertsChanged(ctx, raised)
	}
	return active, nil
}

// ResolveAlert marks an alert resolved by actorID
func (s *AlertService) ResolveAlert(ctx context.Context, alertID uuid.UUID, actorID string) (*domain.Alert, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: actor is required to resolve an alert", domain.ErrUnauthorized)
	}

	var alert *domain.Alert
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		alert, err = s.alerts.FindByID(ctx, alertID)
		if err != nil {
			return fmt.Errorf("failed to get alert: %w", err)
		}

		now := s.now()
		if err := alert.Resolve(actorID, now); err != nil {
			return err
		}
		if err := s.alerts.Update(ctx, alert); err != nil {
			return fmt.Errorf("failed to update alert: %w", err)
		}

		entry := domain.NewAuditEntry(domain.AuditAlertResolved, domain.EntityAlert, alert.ID.String(), actorID,
			map[string]any{
				"product_code": alert.ProductCode,
				"type":         string(alert.Type),
			}, now)
		if err := s.audit.LogAction(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.effects.AlertsChanged(ctx, nil)
	return alert, nil
}

// ListActiveAlerts returns all unresolved alerts
func (s *AlertService) ListActiveAlerts(ctx context.Context) ([]*domain.Alert, error) {
	alerts, err := s.alerts.ListUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
