//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
	redis_a "github.com/ammerola/pharmapos-be/internal/adapters/redis_adapter"
	"github.com/ammerola/pharmapos-be/internal/adapters/storage"
	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/internal/handlers"
	"github.com/ammerola/pharmapos-be/internal/handlers/middleware"
	"github.com/ammerola/pharmapos-be/internal/workers"
	"github.com/ammerola/pharmapos-be/test/helpers"
)

// inlineQueue runs worker processors synchronously in place of asynq
type inlineQueue struct {
	events   *workers.EventProcessor
	receipts *workers.ReceiptProcessor
}

func (q *inlineQueue) Publish(ctx context.Context, event domain.EventName, payload any) error {
	task, err := workers.NewEventTask(event, payload)
	if err != nil {
		return err
	}
	return q.events.ProcessTask(ctx, task)
}

func (q *inlineQueue) ScheduleReceipt(ctx context.Context, saleID uuid.UUID) error {
	task, err := workers.NewReceiptTask(saleID)
	if err != nil {
		return err
	}
	return q.receipts.ProcessTask(ctx, task)
}

type SalesE2ESuite struct {
	suite.Suite
	server     *httptest.Server
	client     *http.Client
	baseURL    string
	testDB     *helpers.TestDB
	testRedis  *helpers.TestRedis
	receiptDir string
	events     <-chan redis_a.Envelope
	cancel     context.CancelFunc
}

func (s *SalesE2ESuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())
	s.receiptDir = s.T().TempDir()

	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *SalesE2ESuite) TearDownSuite() {
	s.cancel()
	s.server.Close()
}

func (s *SalesE2ESuite) startTestServer() *httptest.Server {
	log := helpers.TestLogger()
	cfg := helpers.LoadTestConfig()
	database := s.testDB.Database

	cache := redis_a.NewCache(s.testRedis.Client, time.Hour, log)
	broadcaster := redis_a.NewPublisher(s.testRedis.Client, cfg.Redis.EventChannel, log)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	events, err := broadcaster.Subscribe(ctx)
	s.Require().NoError(err)
	s.events = events

	queue := &inlineQueue{}
	effects := services.NewEffects(queue, queue, log)

	products := db.NewProductRepository(database, log)
	sales := db.NewSaleRepository(database, log)
	alerts := db.NewAlertRepository(database, log)
	audit := db.NewAuditLogger(database, log)

	ledger := services.NewLedgerService(products, db.NewMovementRepository(database, log), audit, database, log)
	saleService := services.NewSaleService(services.SaleDeps{
		Products: products,
		Sales:    sales,
		Codes:    db.NewSaleCodeGenerator(database),
		Ledger:   ledger,
		Audit:    audit,
		Tx:       database,
		Effects:  effects,
	}, cfg.Sales.VoidWindow, log)
	alertService := services.NewAlertService(products, alerts, audit, database, effects, domain.DefaultAlertPolicy(), log)
	dashboard := services.NewDashboardService(sales, alerts, cache, log)

	queue.events = workers.NewEventProcessor(broadcaster, dashboard, log)
	receipts := storage.NewReceiptStore(storage.NewLocalStorage(s.receiptDir, log), log)
	queue.receipts = workers.NewReceiptProcessor(saleService, receipts, cache, "E2E Pharmacy", log)

	mux := http.NewServeMux()
	handlers.Router{
		Sales:    handlers.NewSalesHandler(saleService, log),
		Products: handlers.NewProductHandler(ledger, log),
		Movements: handlers.NewMovementHandler(ledger, handlers.ExportOptions{
			TempDir: s.T().TempDir(),
		}, log),
		Alerts:    handlers.NewAlertHandler(alertService, log),
		Dashboard: handlers.NewDashboardHandler(dashboard, log),
		Receipts:  handlers.NewReceiptHandler(saleService, receipts, time.Minute, log),
	}.Register(mux)

	return httptest.NewServer(middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Actor(cfg.Security.ActorHeader),
		middleware.Logger(log),
	))
}

func (s *SalesE2ESuite) TestSaleLifecycle() {
	product := helpers.SeedProduct(s.T(), s.testDB.Database, 10, func(p *domain.Product) {
		p.UnitPrice = decimal.RequireFromString("5.50")
	})
	productPath := fmt.Sprintf("/products/%s", product.ID)

	// 1. Sell three units
	resp := s.makeRequest(http.MethodPost, "/sales", "cashier-1", map[string]any{
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 3}},
		"discount_type":  "none",
		"payment_method": "cash",
		"amount_paid":    "20",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)

	var sale domain.Sale
	s.decodeResponse(resp, &sale)
	s.Regexp(regexp.MustCompile(`^S-\d{8}-\d{6}$`), sale.Code)
	s.True(sale.TotalAmount.Equal(decimal.RequireFromString("16.50")))
	s.True(sale.ChangeAmount.Equal(decimal.RequireFromString("3.50")))
	s.Equal("cashier-1", sale.OperatorID)

	s.expectEvent(domain.EventSaleCompleted)

	// 2. The receipt was rendered to storage
	receipt, err := os.ReadFile(filepath.Join(s.receiptDir, storage.ReceiptKey(&sale)))
	s.Require().NoError(err)
	s.Contains(string(receipt), sale.Code)

	resp = s.makeRequest(http.MethodGet, "/sales/"+sale.Code+"/receipt?download=true", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	served, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Require().NoError(err)
	s.Equal(receipt, served)

	// 3. Look the sale up by code
	resp = s.makeRequest(http.MethodGet, "/sales/"+sale.Code, "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 4. Stock and ledger agree
	s.assertLedger(productPath, 7)

	// 5. Overselling is refused and changes nothing
	resp = s.makeRequest(http.MethodPost, "/sales", "cashier-1", map[string]any{
		"items":          []map[string]any{{"product_id": product.ID, "quantity": 8}},
		"discount_type":  "none",
		"payment_method": "cash",
		"amount_paid":    "100",
	})
	s.Equal(http.StatusConflict, resp.StatusCode)
	var apiErr handlers.ErrorResponse
	s.decodeResponse(resp, &apiErr)
	s.Equal(domain.KindInsufficientStock, apiErr.Kind)
	s.assertLedger(productPath, 7)

	// 6. Void restores stock; a second void is refused
	voidPath := fmt.Sprintf("/sales/%s/void", sale.ID)
	resp = s.makeRequest(http.MethodPost, voidPath, "supervisor-1", map[string]any{"reason": "customer changed mind"})
	s.Equal(http.StatusOK, resp.StatusCode)
	var voided domain.Sale
	s.decodeResponse(resp, &voided)
	s.True(voided.Voided)
	s.Equal("supervisor-1", voided.VoidedBy)
	s.expectEvent(domain.EventSaleVoided)
	s.assertLedger(productPath, 10)

	resp = s.makeRequest(http.MethodPost, voidPath, "supervisor-1", map[string]any{"reason": "again"})
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.decodeResponse(resp, &apiErr)
	s.Equal(domain.KindAlreadyVoided, apiErr.Kind)

	// 7. History explains every unit
	resp = s.makeRequest(http.MethodGet, "/movements?product_id="+product.ID.String(), "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var page handlers.MovementPage
	s.decodeResponse(resp, &page)
	s.Len(page.Movements, 3)
	sum := 0
	for _, m := range page.Movements {
		sum += m.Quantity
	}
	s.Equal(10, sum)

	// 8. Export the same history
	resp = s.makeRequest(http.MethodGet, "/movements/export?product_id="+product.ID.String(), "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Require().NoError(err)
	book, err := xlsx.OpenBinary(body)
	s.Require().NoError(err)
	s.Equal(4, book.Sheets[0].MaxRow)

	// 9. Ten units is below the low stock threshold
	resp = s.makeRequest(http.MethodPost, "/alerts/run", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var alerts handlers.AlertList
	s.decodeResponse(resp, &alerts)
	var lowStock *domain.Alert
	for _, a := range alerts.Alerts {
		if a.ProductID == product.ID && a.Type == domain.AlertLowStock {
			lowStock = a
		}
	}
	s.Require().NotNil(lowStock)

	// 10. Dashboard reflects the voided sale and the open alert
	resp = s.makeRequest(http.MethodGet, "/dashboard", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var summary domain.DashboardSummary
	s.decodeResponse(resp, &summary)
	s.Equal(0, summary.SalesCount)
	s.Equal(1, summary.VoidedCount)
	s.GreaterOrEqual(summary.ActiveAlerts, 1)

	// 11. Resolving the alert removes it from the active list
	resp = s.makeRequest(http.MethodPost, fmt.Sprintf("/alerts/%s/resolve", lowStock.ID), "pharmacist-1", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest(http.MethodGet, "/alerts", "", nil)
	s.decodeResponse(resp, &alerts)
	for _, a := range alerts.Alerts {
		s.NotEqual(lowStock.ID, a.ID)
	}
}

func (s *SalesE2ESuite) TestInboundAndAdjustment() {
	product := helpers.SeedProduct(s.T(), s.testDB.Database, 5)
	productPath := fmt.Sprintf("/products/%s", product.ID)

	resp := s.makeRequest(http.MethodPost, productPath+"/inbound", "clerk-1", map[string]any{
		"quantity":       20,
		"reference_type": "purchase_order",
		"reference_id":   "PO-E2E-1",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	s.assertLedger(productPath, 25)

	resp = s.makeRequest(http.MethodPost, productPath+"/adjustments", "clerk-1", map[string]any{
		"counted_quantity": 22,
		"reason":           "cycle count",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	var m domain.StockMovement
	s.decodeResponse(resp, &m)
	s.Equal(-3, m.Quantity)
	s.assertLedger(productPath, 22)

	resp = s.makeRequest(http.MethodPost, productPath+"/adjustments", "clerk-1", map[string]any{
		"counted_quantity": 22,
		"reason":           "recount",
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *SalesE2ESuite) assertLedger(productPath string, want int) {
	resp := s.makeRequest(http.MethodGet, productPath+"/ledger-check", "", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var check domain.LedgerCheck
	s.decodeResponse(resp, &check)
	s.True(check.Consistent)
	s.Equal(want, check.StockQuantity)
}

// expectEvent drains broadcasts until the named event arrives
func (s *SalesE2ESuite) expectEvent(name domain.EventName) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case env, ok := <-s.events:
			s.Require().True(ok, "event stream closed")
			if env.Event == name {
				return
			}
		case <-timeout:
			s.Failf("event not broadcast", "%s", name)
			return
		}
	}
}

func (s *SalesE2ESuite) makeRequest(method, path, actor string, body any) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.Require().NoError(err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(middleware.HeaderActorID, actor)
	}

	resp, err := s.client.Do(req)
	s.Require().NoError(err)

	return resp
}

func (s *SalesE2ESuite) decodeResponse(resp *http.Response, v any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func TestSalesE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(SalesE2ESuite))
}
