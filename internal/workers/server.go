// internal/workers/server.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
)

const (
	retryBase = time.Second
	retryCap  = 10 * time.Minute
)

// ServerOptions sizes the task server
type ServerOptions struct {
	Concurrency     int
	Queues          map[string]int
	StrictPriority  bool
	ShutdownTimeout time.Duration
}

// NewServer builds the asynq server with capped exponential retries and
// slog-backed logging.
func NewServer(redis asynq.RedisConnOpt, opts ServerOptions, log *slog.Logger) *asynq.Server {
	return asynq.NewServer(redis, asynq.Config{
		Concurrency:     opts.Concurrency,
		Queues:          opts.Queues,
		StrictPriority:  opts.StrictPriority,
		ShutdownTimeout: opts.ShutdownTimeout,
		RetryDelayFunc:  RetryDelay,
		ErrorHandler:    errorReporter(log),
		HealthCheckFunc: func(err error) {
			if err != nil {
				log.Error("queue health check failed", slog.Any("error", err))
			}
		},
		Logger: NewAsynqLogger(log),
	})
}

// RetryDelay doubles from one second per attempt up to ten minutes
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= 20 {
		return retryCap
	}
	return min(retryBase<<uint(n), retryCap)
}

func errorReporter(log *slog.Logger) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		level := slog.LevelWarn
		if retried >= maxRetry {
			level = slog.LevelError
		}
		log.Log(ctx, level, "task failed",
			slog.String("type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err))
	}
}

// TaskLogging tags every record logged while a task runs with its type and id
func TaskLogging(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		ctx = logger.WithAttrs(ctx, slog.String("task_type", t.Type()))
		if id, ok := asynq.GetTaskID(ctx); ok {
			ctx = logger.WithRequestID(ctx, id)
		}
		return next.ProcessTask(ctx, t)
	})
}

// AsynqLogger routes asynq's internal logging through slog
type AsynqLogger struct {
	log  *slog.Logger
	exit func(int)
}

func NewAsynqLogger(log *slog.Logger) *AsynqLogger {
	return &AsynqLogger{log: log.With(slog.String("component", "asynq")), exit: os.Exit}
}

func (l *AsynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }

func (l *AsynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...), slog.Bool("fatal", true))
	l.exit(1)
}
