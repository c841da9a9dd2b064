// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// ExportFileGlob matches spreadsheet exports left in the temp directory
const ExportFileGlob = "pharmapos-export-*"

// CleanupProcessor handles cleanup tasks
type CleanupProcessor struct {
	alerts            ports.AlertRepository
	resolvedRetention time.Duration
	tempDir           string
	maxAge            time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(
	alerts ports.AlertRepository,
	resolvedRetention time.Duration,
	tempDir string,
	maxAge time.Duration,
	logger *slog.Logger,
) *CleanupProcessor {
	return &CleanupProcessor{
		alerts:            alerts,
		resolvedRetention: resolvedRetention,
		tempDir:           tempDir,
		maxAge:            maxAge,
		now:               time.Now,
		logger:            logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupResolvedAlerts removes resolved alerts past retention
func (p *CleanupProcessor) CleanupResolvedAlerts(ctx context.Context, t *asynq.Task) error {
	p.logger.InfoContext(ctx, "cleaning up resolved alerts")

	cutoff := p.now().Add(-p.resolvedRetention)
	deleted, err := p.alerts.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup resolved alerts: %w", err)
	}

	p.logger.InfoContext(ctx, "resolved alerts cleaned up",
		slog.Int64("rows_deleted", deleted),
		slog.Time("cutoff", cutoff))

	return nil
}

// CleanupTempFiles removes stale export files
func (p *CleanupProcessor) CleanupTempFiles(ctx context.Context, t *asynq.Task) error {
	p.logger.InfoContext(ctx, "cleaning up temp files")

	matches, err := filepath.Glob(filepath.Join(p.tempDir, ExportFileGlob))
	if err != nil {
		return fmt.Errorf("failed to list temp files: %w", err)
	}

	cutoff := p.now().Add(-p.maxAge)
	var deletedCount int
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			p.logger.WarnContext(ctx, "failed to delete temp file",
				slog.String("file", path),
				slog.Any("error", err))
			continue
		}
		deletedCount++
	}

	p.logger.InfoContext(ctx, "temp files cleaned up",
		slog.Int("files_deleted", deletedCount))

	return nil
}
