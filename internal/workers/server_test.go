package workers

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{5, 32 * time.Second},
		{9, 512 * time.Second},
		{10, 10 * time.Minute},
		{63, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.attempt, nil, nil), "attempt %d", tt.attempt)
	}
}

func TestTaskLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: "info", Format: "json", Output: &buf})

	h := TaskLogging(asynq.HandlerFunc(func(ctx context.Context, _ *asynq.Task) error {
		log.InfoContext(ctx, "rendering")
		return nil
	}))
	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(TypeReceiptRender, nil)))

	assert.Contains(t, buf.String(), `"task_type":"`+TypeReceiptRender+`"`)
}

func TestAsynqLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	l := NewAsynqLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	code := -1
	l.exit = func(c int) { code = c }

	l.Info("scheduler ", "started")
	l.Fatal("redis gone")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "scheduler started")
	assert.Contains(t, buf.String(), "fatal=true")
	assert.Contains(t, buf.String(), "component=asynq")
}
