// internal/handlers/routes.go
package handlers

import "net/http"

const apiV1 = "/api/v1"

// Router groups the handlers served by the API process. Nil handlers are
// skipped.
type Router struct {
	Health    *HealthHandler
	Sales     *SalesHandler
	Products  *ProductHandler
	Movements *MovementHandler
	Alerts    *AlertHandler
	Dashboard *DashboardHandler
	Receipts  *ReceiptHandler
}

// Register adds every route to mux using Go 1.22 method patterns
func (rt Router) Register(mux *http.ServeMux) {
	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health.Health)
		mux.HandleFunc("GET /ready", rt.Health.Readiness)
	}

	if rt.Sales != nil {
		mux.HandleFunc("POST "+apiV1+"/sales", rt.Sales.CreateSale)
		mux.HandleFunc("GET "+apiV1+"/sales/{id}", rt.Sales.GetSale)
		mux.HandleFunc("POST "+apiV1+"/sales/{id}/void", rt.Sales.VoidSale)
	}

	if rt.Receipts != nil {
		mux.HandleFunc("GET "+apiV1+"/sales/{id}/receipt", rt.Receipts.GetReceipt)
	}

	if rt.Products != nil {
		mux.HandleFunc("POST "+apiV1+"/products/{id}/inbound", rt.Products.RecordInbound)
		mux.HandleFunc("POST "+apiV1+"/products/{id}/outbound", rt.Products.RecordOutbound)
		mux.HandleFunc("POST "+apiV1+"/products/{id}/adjustments", rt.Products.RecordAdjustment)
		mux.HandleFunc("GET "+apiV1+"/products/{id}/ledger-check", rt.Products.VerifyProduct)
	}

	if rt.Movements != nil {
		mux.HandleFunc("GET "+apiV1+"/movements", rt.Movements.History)
		mux.HandleFunc("GET "+apiV1+"/movements/summary", rt.Movements.Summary)
		mux.HandleFunc("GET "+apiV1+"/movements/export", rt.Movements.Export)
	}

	if rt.Alerts != nil {
		mux.HandleFunc("POST "+apiV1+"/alerts/run", rt.Alerts.Run)
		mux.HandleFunc("GET "+apiV1+"/alerts", rt.Alerts.List)
		mux.HandleFunc("POST "+apiV1+"/alerts/{id}/resolve", rt.Alerts.Resolve)
	}

	if rt.Dashboard != nil {
		mux.HandleFunc("GET "+apiV1+"/dashboard", rt.Dashboard.GetDashboard)
	}
}
