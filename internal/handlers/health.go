// internal/handlers/health.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/ammerola/pharmapos-be/internal/pkg/config"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// dependency is one backing service the API needs to take sales
type dependency struct {
	name    string
	ping    func(ctx context.Context) error
	details func(ctx context.Context) map[string]interface{}
}

// HealthHandler reports on Postgres, Redis and the effect queue
type HealthHandler struct {
	deps      []dependency
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a health handler. A nil inspector leaves the
// queue out of the report.
func NewHealthHandler(
	database ports.Database,
	redisClient *redis.Client,
	asynqInspector *asynq.Inspector,
	cfg *config.Config,
	logger *slog.Logger,
) *HealthHandler {
	deps := []dependency{
		{name: "database", ping: database.Ping, details: database.Health},
		{
			name: "redis",
			ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			details: func(context.Context) map[string]interface{} {
				stats := redisClient.PoolStats()
				return map[string]interface{}{
					"total_conns": stats.TotalConns,
					"idle_conns":  stats.IdleConns,
					"stale_conns": stats.StaleConns,
				}
			},
		},
	}
	if asynqInspector != nil {
		deps = append(deps, queueDependency(asynqInspector))
	}

	return &HealthHandler{
		deps:      deps,
		config:    cfg,
		logger:    logger.With(slog.String("handler", "health")),
		startTime: time.Now(),
	}
}

// queueDependency reports backlog per queue. Receipts and event fan-out wait
// here when the worker falls behind.
func queueDependency(inspector *asynq.Inspector) dependency {
	return dependency{
		name: "asynq",
		ping: func(context.Context) error {
			_, err := inspector.Queues()
			return err
		},
		details: func(context.Context) map[string]interface{} {
			queues, err := inspector.Queues()
			if err != nil {
				return nil
			}
			backlog := make(map[string]interface{}, len(queues))
			for _, q := range queues {
				info, err := inspector.GetQueueInfo(q)
				if err != nil {
					continue
				}
				backlog[q] = map[string]interface{}{
					"pending":   info.Pending,
					"active":    info.Active,
					"scheduled": info.Scheduled,
					"retry":     info.Retry,
					"archived":  info.Archived,
				}
			}
			details := map[string]interface{}{"queues": backlog}
			if servers, err := inspector.Servers(); err == nil {
				details["servers"] = len(servers)
			}
			return details
		},
	}
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo is the state of one dependency
type ServiceInfo struct {
	Status       string                 `json:"status"`
	Message      string                 `json:"message,omitempty"`
	ResponseTime string                 `json:"response_time,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// SystemInfo is runtime information about the process
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:      statusHealthy,
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now().UTC(),
		Services:    make(map[string]ServiceInfo, len(h.deps)),
		System:      systemInfo(),
	}

	for _, dep := range h.deps {
		info := h.check(ctx, dep)
		status.Services[dep.name] = info
		if info.Status != statusHealthy {
			status.Status = statusDegraded
		}
	}

	code := http.StatusOK
	if status.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respondJSON(w, code, status)
}

// Readiness handles GET /ready
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string, len(h.deps))
	for _, dep := range h.deps {
		if err := dep.ping(ctx); err != nil {
			ready = false
			details[dep.name] = "not ready"
			continue
		}
		details[dep.name] = "ready"
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respondJSON(w, code, map[string]interface{}{
		"ready":   ready,
		"details": details,
	})
}

func (h *HealthHandler) check(ctx context.Context, dep dependency) ServiceInfo {
	start := time.Now()
	if err := dep.ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "dependency check failed",
			slog.String("dependency", dep.name),
			slog.Any("error", err))
		return ServiceInfo{Status: statusUnhealthy, Message: err.Error()}
	}

	return ServiceInfo{
		Status:       statusHealthy,
		ResponseTime: time.Since(start).String(),
		Details:      dep.details(ctx),
	}
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemoryAllocMB: mem.Alloc / 1024 / 1024,
		NumGC:         mem.NumGC,
	}
}
