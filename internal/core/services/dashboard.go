// internal/core/services/dashboard.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

const (
	dashboardKeyPrefix = "dash"
	dashboardTTL       = 5 * time.Minute
)

// DashboardService builds the daily point-of-sale overview and caches it
// until the next dashboard.changed event.
type DashboardService struct {
	sales  ports.SaleRepository
	alerts ports.AlertRepository
	cache  ports.CacheRepository
	logger *slog.Logger
	now    Clock
}

var _ ports.DashboardService = (*DashboardService)(nil)

// NewDashboardService creates a new dashboard service
func NewDashboardService(sales ports.SaleRepository, alerts ports.AlertRepository, cache ports.CacheRepository, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		sales:  sales,
		alerts: alerts,
		cache:  cache,
		logger: logger.With(slog.String("service", "dashboard")),
		now:    utcNow,
	}
}

// WithClock replaces the service clock
func (s *DashboardService) WithClock(now Clock) *DashboardService {
	s.now = now
	return s
}

// Today returns the summary for the current UTC day
func (s *DashboardService) Today(ctx context.Context) (*domain.DashboardSummary, error) {
	now := s.now()
	day := now.Format("2006-01-02")
	key := dashboardKeyPrefix + ":today:" + day

	var summary domain.DashboardSummary
	err := s.cache.GetOrSet(ctx, key, &summary, func() (interface{}, error) {
		return s.build(ctx, now)
	}, dashboardTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return &summary, nil
}

// Invalidate drops every cached dashboard
func (s *DashboardService) Invalidate(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, dashboardKeyPrefix+":*"); err != nil {
		return fmt.Errorf("failed to invalidate dashboard cache: %w", err)
	}
	s.logger.DebugContext(ctx, "dashboard cache invalidated")
	return nil
}

func (s *DashboardService) build(ctx context.Context, now time.Time) (*domain.DashboardSummary, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary, err := s.sales.DailySummary(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sales: %w", err)
	}

	alerts, err := s.alerts.ListUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	summary.ActiveAlerts = len(alerts)
	for _, a := range alerts {
		if a.Severity == domain.SeverityCritical {
			summary.CriticalAlerts++
		}
	}

	summary.Date = from.Format("2006-01-02")
	summary.GeneratedAt = now
	return summary, nil
}
