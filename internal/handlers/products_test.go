package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/handlers"
	"github.com/ammerola/pharmapos-be/test/helpers"
	"github.com/ammerola/pharmapos-be/test/mocks"
)

func TestProductHandler_Movements(t *testing.T) {
	productID := uuid.New()
	movement := &domain.StockMovement{
		ID:               uuid.New(),
		ProductID:        productID,
		MovementType:     domain.MovementInbound,
		Quantity:         24,
		PreviousQuantity: 6,
		NewQuantity:      30,
		ReferenceType:    domain.ReferencePurchaseOrder,
		ReferenceID:      "PO-1042",
		CreatedBy:        "stock-clerk",
		CreatedAt:        time.Now().UTC(),
	}

	tests := []struct {
		name           string
		path           string
		body           any
		setupMocks     func(*mocks.MockLedgerService)
		expectedStatus int
	}{
		{
			name: "records_inbound",
			path: "/api/v1/products/" + productID.String() + "/inbound",
			body: handlers.MovementRequest{Quantity: 24, ReferenceType: domain.ReferencePurchaseOrder, ReferenceID: "PO-1042"},
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().
					RecordInbound(gomock.Any(), domain.MovementInput{
						ProductID:     productID,
						Quantity:      24,
						ReferenceType: domain.ReferencePurchaseOrder,
						ReferenceID:   "PO-1042",
						ActorID:       "stock-clerk",
					}).
					Return(movement, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "outbound_insufficient_stock",
			path: "/api/v1/products/" + productID.String() + "/outbound",
			body: handlers.MovementRequest{Quantity: 99, ReferenceType: domain.ReferenceAdjustment, Reason: "damaged"},
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().
					RecordOutbound(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, in domain.MovementInput) (*domain.StockMovement, error) {
						assert.Equal(t, 99, in.Quantity)
						assert.Equal(t, "damaged", in.Reason)
						return nil, fmt.Errorf("%w: product has 30, requested 99", domain.ErrInsufficientStock)
					})
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "outbound_rejects_sale_reference",
			path:           "/api/v1/products/" + productID.String() + "/outbound",
			body:           handlers.MovementRequest{Quantity: 2, ReferenceType: domain.ReferenceSale, ReferenceID: "S-20250314-000001"},
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "inbound_rejects_return_reference",
			path:           "/api/v1/products/" + productID.String() + "/inbound",
			body:           handlers.MovementRequest{Quantity: 2, ReferenceType: domain.ReferenceReturn, ReferenceID: "S-20250314-000001"},
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "inbound_accepts_adjustment_reference",
			path: "/api/v1/products/" + productID.String() + "/inbound",
			body: handlers.MovementRequest{Quantity: 3, ReferenceType: domain.ReferenceAdjustment, Reason: "found in back room"},
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().RecordInbound(gomock.Any(), gomock.Any()).Return(movement, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad_product_id",
			path:           "/api/v1/products/not-a-uuid/inbound",
			body:           handlers.MovementRequest{Quantity: 1, ReferenceType: domain.ReferencePurchaseOrder},
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "adjustment_from_count",
			path: "/api/v1/products/" + productID.String() + "/adjustments",
			body: map[string]any{"counted_quantity": 0, "reason": "expired stock removed"},
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().
					RecordAdjustment(gomock.Any(), domain.AdjustmentInput{
						ProductID:       productID,
						CountedQuantity: 0,
						Reason:          "expired stock removed",
						ActorID:         "stock-clerk",
					}).
					Return(movement, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "adjustment_requires_count",
			path:           "/api/v1/products/" + productID.String() + "/adjustments",
			body:           map[string]any{"reason": "recount"},
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			ledger := mocks.NewMockLedgerService(ctrl)
			tt.setupMocks(ledger)
			rt := handlers.Router{Products: handlers.NewProductHandler(ledger, helpers.TestLogger())}

			req := jsonRequest(t, http.MethodPost, tt.path, tt.body)
			req.Header.Set("X-Actor-ID", "stock-clerk")
			w := serve(t, rt, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestProductHandler_VerifyProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	productID := uuid.New()
	ledger := mocks.NewMockLedgerService(ctrl)
	ledger.EXPECT().
		VerifyProduct(gomock.Any(), productID).
		Return(&domain.LedgerCheck{ProductID: productID, StockQuantity: 43, LedgerSum: 43, Consistent: true}, nil)

	rt := handlers.Router{Products: handlers.NewProductHandler(ledger, helpers.TestLogger())}
	w := serve(t, rt, jsonRequest(t, http.MethodGet, "/api/v1/products/"+productID.String()+"/ledger-check", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"product_id":%q,"stock_quantity":43,"ledger_sum":43,"consistent":true}`, productID), w.Body.String())
}
