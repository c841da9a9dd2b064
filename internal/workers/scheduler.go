// internal/workers/scheduler.go
package workers

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// PeriodicRegistrar is satisfied by *asynq.Scheduler
type PeriodicRegistrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// Schedule maps periodic task types to cron specs
type Schedule struct {
	AlertChecks     string
	AlertCleanup    string
	TempFileCleanup string
}

// DefaultSchedule runs alert checks every 30 minutes and cleanups off-peak
func DefaultSchedule() Schedule {
	return Schedule{
		AlertChecks:     "*/30 * * * *",
		AlertCleanup:    "30 3 * * *",
		TempFileCleanup: "0 * * * *",
	}
}

// RegisterPeriodicTasks registers the worker's recurring jobs
func RegisterPeriodicTasks(r PeriodicRegistrar, s Schedule, logger *slog.Logger) error {
	entries := []struct {
		spec  string
		task  string
		queue string
	}{
		{s.AlertChecks, TypeAlertsRun, QueueDefault},
		{s.AlertCleanup, TypeCleanupAlerts, QueueLow},
		{s.TempFileCleanup, TypeCleanupTempFiles, QueueLow},
	}

	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		id, err := r.Register(e.spec, asynq.NewTask(e.task, nil), asynq.Queue(e.queue), asynq.MaxRetry(1))
		if err != nil {
			return fmt.Errorf("failed to register %s (%q): %w", e.task, e.spec, err)
		}
		logger.Info("periodic task registered",
			slog.String("task", e.task),
			slog.String("cron", e.spec),
			slog.String("entry_id", id))
	}
	return nil
}
