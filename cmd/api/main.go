// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/pharmapos-be/internal/adapters/redis_adapter"
	"github.com/ammerola/pharmapos-be/internal/app"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/internal/handlers"
	"github.com/ammerola/pharmapos-be/internal/handlers/middleware"
	"github.com/ammerola/pharmapos-be/internal/pkg/config"
	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
	"github.com/ammerola/pharmapos-be/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := logger.Setup("debug", "json")
	log.Info("starting pharmapos api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime))

	cfg, err := config.Load(log)
	if err != nil {
		log.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log = logger.New(logger.Options{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Service:     cfg.App.Name,
		Version:     Version,
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// Outside production a failed migration is logged and the API still
	// starts, so a developer can inspect the schema.
	if err := app.Migrate(ctx, cfg, log); err != nil {
		if cfg.IsProduction() {
			return err
		}
		log.Error("migrations failed", slog.Any("error", err))
	}

	database, err := app.OpenDatabase(ctx, cfg, 0, log)
	if err != nil {
		return err
	}
	defer database.Close()

	redisClient, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	receipts, err := app.OpenReceiptStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	queue := app.AsynqRedis(cfg)
	client := asynq.NewClient(queue)
	defer client.Close()
	inspector := asynq.NewInspector(queue)
	defer inspector.Close()

	// Effects leave the request path through the queue; the worker does the fan-out.
	enqueuer := workers.NewEnqueuer(client, log)
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, log)
	core := app.NewCore(database, cache, services.NewEffects(enqueuer, enqueuer, log), cfg, log)

	router := handlers.Router{
		Health:   handlers.NewHealthHandler(database, redisClient, inspector, cfg, log),
		Sales:    handlers.NewSalesHandler(core.Sale, log),
		Products: handlers.NewProductHandler(core.Ledger, log),
		Movements: handlers.NewMovementHandler(core.Ledger, handlers.ExportOptions{
			TempDir: cfg.Export.TempDir,
			MaxRows: cfg.Export.MaxRows,
		}, log),
		Alerts:    handlers.NewAlertHandler(core.Alert, log),
		Dashboard: handlers.NewDashboardHandler(core.Dashboard, log),
		Receipts:  handlers.NewReceiptHandler(core.Sale, receipts, cfg.Sales.ReceiptURLTTL, log),
	}

	server := &http.Server{
		Addr:           cfg.ServerAddress(),
		Handler:        withMiddleware(router, cfg, log),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening",
			slog.String("address", server.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled))
		if cfg.Server.TLSEnabled {
			serveErr <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
			return
		}
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Duration("grace", cfg.Server.GracefulTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return err
	}
	log.Info("server shutdown complete")
	return nil
}

// withMiddleware registers the routes and wraps them, outermost first
func withMiddleware(router handlers.Router, cfg *config.Config, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	router.Register(mux)

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Actor(cfg.Security.ActorHeader),
		middleware.Logger(log),
		middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration),
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}
	chain = append(chain, middleware.Compression)
	if cfg.Server.RequestTimeout > 0 {
		chain = append(chain, middleware.Timeout(cfg.Server.RequestTimeout))
	}
	return middleware.Chain(mux, chain...)
}
