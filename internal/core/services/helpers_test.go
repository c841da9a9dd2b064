package services_test

import (
	"context"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/ammerola/pharmapos-be/test/mocks"
)

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// passthroughTx runs the closure inline, standing in for a real transaction
func passthroughTx(ctrl *gomock.Controller) *mocks.MockTxManager {
	tx := mocks.NewMockTxManager(ctrl)
	tx.EXPECT().
		WithinTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).
		AnyTimes()
	return tx
}
