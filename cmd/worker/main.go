// cmd/worker/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/ammerola/pharmapos-be/internal/adapters/redis_adapter"
	"github.com/ammerola/pharmapos-be/internal/app"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/internal/pkg/config"
	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
	"github.com/ammerola/pharmapos-be/internal/workers"
)

// workerMaxConns keeps the worker's pool small next to the API's
const workerMaxConns = 10

func main() {
	log := logger.Setup("info", "json")

	cfg, err := config.Load(log)
	if err != nil {
		log.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log = logger.New(logger.Options{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Service:     "pharmapos-worker",
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := app.OpenDatabase(ctx, cfg, workerMaxConns, log)
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

	// Services running inside tasks still enqueue their own follow-ups.
	enqueuer := workers.NewEnqueuer(client, log)
	cache := redis_a.NewCache(redisClient, cfg.Redis.TTL, log)
	core := app.NewCore(database, cache, services.NewEffects(enqueuer, enqueuer, log), cfg, log)

	mux := asynq.NewServeMux()
	mux.Use(workers.TaskLogging)

	events := workers.NewEventProcessor(redis_a.NewPublisher(redisClient, cfg.Redis.EventChannel, log), core.Dashboard, log)
	mux.HandleFunc(workers.TypeEventPublish, events.ProcessTask)
	mux.HandleFunc(workers.TypeReceiptRender,
		workers.NewReceiptProcessor(core.Sale, receipts, cache, cfg.Sales.StoreName, log).ProcessTask)
	mux.HandleFunc(workers.TypeAlertsRun, workers.NewAlertProcessor(core.Alert, log).ProcessTask)

	cleanup := workers.NewCleanupProcessor(core.Alerts, cfg.Alerts.ResolvedRetention, cfg.Export.TempDir, cfg.Export.MaxAge, log)
	mux.HandleFunc(workers.TypeCleanupAlerts, cleanup.CleanupResolvedAlerts)
	mux.HandleFunc(workers.TypeCleanupTempFiles, cleanup.CleanupTempFiles)

	scheduler := asynq.NewScheduler(queue, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   workers.NewAsynqLogger(log),
	})
	schedule := workers.DefaultSchedule()
	schedule.AlertChecks = cfg.Alerts.CheckSchedule
	if err := workers.RegisterPeriodicTasks(scheduler, schedule, log); err != nil {
		return err
	}

	srv := workers.NewServer(queue, workers.ServerOptions{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
	}, log)

	if err := srv.Start(mux); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return err
	}
	log.Info("worker started",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	<-ctx.Done()
	log.Info("shutdown signal received")

	scheduler.Shutdown()
	srv.Shutdown()
	log.Info("worker shutdown complete")
	return nil
}
