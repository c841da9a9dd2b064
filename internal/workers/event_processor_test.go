package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/workers"
	"github.com/ammerola/pharmapos-be/test/helpers"
	"github.com/ammerola/pharmapos-be/test/mocks"
)

func TestEventProcessor_ProcessTask(t *testing.T) {
	tests := []struct {
		name          string
		task          func(t *testing.T) *asynq.Task
		setupMocks    func(*mocks.MockEventPublisher, *mocks.MockDashboardService)
		expectedError bool
		skipRetry     bool
	}{
		{
			name: "broadcasts_sale_completed",
			task: func(t *testing.T) *asynq.Task {
				task, err := workers.NewEventTask(domain.EventSaleCompleted, map[string]string{"code": "S-20250314-000001"})
				require.NoError(t, err)
				return task
			},
			setupMocks: func(pub *mocks.MockEventPublisher, dash *mocks.MockDashboardService) {
				pub.EXPECT().
					Publish(gomock.Any(), domain.EventSaleCompleted, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ domain.EventName, payload any) error {
						raw, ok := payload.(json.RawMessage)
						require.True(t, ok)
						assert.JSONEq(t, `{"code":"S-20250314-000001"}`, string(raw))
						return nil
					})
			},
		},
		{
			name: "dashboard_change_invalidates_first",
			task: func(t *testing.T) *asynq.Task {
				task, err := workers.NewEventTask(domain.EventDashboardChanged, nil)
				require.NoError(t, err)
				return task
			},
			setupMocks: func(pub *mocks.MockEventPublisher, dash *mocks.MockDashboardService) {
				gomock.InOrder(
					dash.EXPECT().Invalidate(gomock.Any()).Return(nil),
					pub.EXPECT().Publish(gomock.Any(), domain.EventDashboardChanged, gomock.Any()).Return(nil),
				)
			},
		},
		{
			name: "invalidate_failure_retries",
			task: func(t *testing.T) *asynq.Task {
				task, err := workers.NewEventTask(domain.EventDashboardChanged, nil)
				require.NoError(t, err)
				return task
			},
			setupMocks: func(pub *mocks.MockEventPublisher, dash *mocks.MockDashboardService) {
				dash.EXPECT().Invalidate(gomock.Any()).Return(errors.New("redis down"))
			},
			expectedError: true,
		},
		{
			name: "malformed_payload_skips_retry",
			task: func(t *testing.T) *asynq.Task {
				return asynq.NewTask(workers.TypeEventPublish, []byte("{not json"))
			},
			setupMocks:    func(pub *mocks.MockEventPublisher, dash *mocks.MockDashboardService) {},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name: "missing_event_skips_retry",
			task: func(t *testing.T) *asynq.Task {
				return asynq.NewTask(workers.TypeEventPublish, []byte(`{"payload":{}}`))
			},
			setupMocks:    func(pub *mocks.MockEventPublisher, dash *mocks.MockDashboardService) {},
			expectedError: true,
			skipRetry:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			pub := mocks.NewMockEventPublisher(ctrl)
			dash := mocks.NewMockDashboardService(ctrl)
			tt.setupMocks(pub, dash)

			p := workers.NewEventProcessor(pub, dash, helpers.TestLogger())
			err := p.ProcessTask(context.Background(), tt.task(t))

			if !tt.expectedError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestAlertProcessor_ProcessTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockAlertService(ctrl)
	svc.EXPECT().RunAlertChecks(gomock.Any()).Return([]*domain.Alert{{Type: domain.AlertLowStock}}, nil)
	svc.EXPECT().RunAlertChecks(gomock.Any()).Return(nil, errors.New("database unavailable"))

	p := workers.NewAlertProcessor(svc, helpers.TestLogger())
	task := asynq.NewTask(workers.TypeAlertsRun, nil)

	assert.NoError(t, p.ProcessTask(context.Background(), task))
	assert.Error(t, p.ProcessTask(context.Background(), task))
}
