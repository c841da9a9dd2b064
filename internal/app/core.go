// internal/app/core.go
package app

import (
	"log/slog"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/internal/pkg/config"
)

// Core is the set of repositories and services every process runs on
type Core struct {
	Products  ports.ProductRepository
	Sales     ports.SaleRepository
	Alerts    ports.AlertRepository
	Ledger    *services.LedgerService
	Sale      *services.SaleService
	Alert     *services.AlertService
	Dashboard *services.DashboardService
}

// NewCore wires Postgres repositories into the services. Effects decide
// where post-commit events and receipt jobs go.
func NewCore(database *db.Database, cache ports.CacheRepository, effects *services.Effects, cfg *config.Config, logger *slog.Logger) *Core {
	c := &Core{
		Products: db.NewProductRepository(database, logger),
		Sales:    db.NewSaleRepository(database, logger),
		Alerts:   db.NewAlertRepository(database, logger),
	}
	audit := db.NewAuditLogger(database, logger)

	c.Ledger = services.NewLedgerService(c.Products, db.NewMovementRepository(database, logger), audit, database, logger)
	c.Sale = services.NewSaleService(services.SaleDeps{
		Products: c.Products,
		Sales:    c.Sales,
		Codes:    db.NewSaleCodeGenerator(database),
		Ledger:   c.Ledger,
		Audit:    audit,
		Tx:       database,
		Effects:  effects,
	}, cfg.Sales.VoidWindow, logger)
	c.Alert = services.NewAlertService(c.Products, c.Alerts, audit, database, effects, domain.AlertPolicy{
		LowStockThreshold: cfg.Alerts.LowStockThreshold,
		ExpiryWindows:     cfg.Alerts.ExpiryWindows,
	}, logger)
	c.Dashboard = services.NewDashboardService(c.Sales, c.Alerts, cache, logger)

	return c
}
