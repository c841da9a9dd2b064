// cmd/seeder/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ammerola/pharmapos-be/internal/adapters/db"
	"github.com/ammerola/pharmapos-be/internal/app"
	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
	"github.com/ammerola/pharmapos-be/internal/core/services"
	"github.com/ammerola/pharmapos-be/internal/pkg/config"
	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
)

const (
	seederActor       = "seeder"
	openingStockRefID = "OPENING-STOCK"
)

// seeder creates catalogue products and books their opening stock through
// the ledger so every unit on the shelf has a movement behind it
type seeder struct {
	products ports.ProductRepository
	ledger   ports.LedgerService
	logger   *slog.Logger
}

type seedResult struct {
	created int
	skipped int
	units   int
}

func (s *seeder) seed(ctx context.Context, entries []CatalogueEntry) (seedResult, error) {
	var res seedResult

	for _, e := range entries {
		p := e.Product

		if _, err := s.products.FindByCode(ctx, p.Code); err == nil {
			s.logger.InfoContext(ctx, "product already exists, skipping",
				slog.String("code", p.Code))
			res.skipped++
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("failed to look up %s: %w", p.Code, err)
		}

		if err := p.Validate(); err != nil {
			return res, fmt.Errorf("product %s: %w", p.Code, err)
		}
		p.PrepareForStorage()

		if err := s.products.Create(ctx, &p); err != nil {
			return res, err
		}
		res.created++

		if e.OpeningStock == 0 {
			continue
		}
		if _, err := s.ledger.RecordInbound(ctx, domain.MovementInput{
			ProductID:     p.ID,
			Quantity:      e.OpeningStock,
			ReferenceType: domain.ReferencePurchaseOrder,
			ReferenceID:   openingStockRefID,
			Reason:        "opening stock",
			ActorID:       seederActor,
		}); err != nil {
			return res, fmt.Errorf("failed to book opening stock for %s: %w", p.Code, err)
		}
		res.units += e.OpeningStock
	}

	return res, nil
}

func main() {
	var (
		catalogueFile = flag.String("catalogue", "", "Excel catalogue (.xlsx); built-in catalogue when empty")
		logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun        = flag.Bool("dry-run", false, "Preview the catalogue without modifying the database")
		migrate       = flag.Bool("migrate", true, "Apply migrations before seeding")
	)
	flag.Parse()

	slogger := logger.Setup(*logLevel, "text")
	slog.SetDefault(slogger)

	entries := defaultCatalogue(time.Now())
	if *catalogueFile != "" {
		loaded, err := loadCatalogue(*catalogueFile)
		if err != nil {
			slogger.Error("failed to load catalogue", slog.Any("error", err))
			os.Exit(1)
		}
		entries = loaded
	}

	if *dryRun {
		for _, e := range entries {
			fmt.Printf("%-14s %-36s %-14s %10s %6d\n",
				e.Product.Code, e.Product.Name, e.Product.Category,
				e.Product.UnitPrice.StringFixed(2), e.OpeningStock)
		}
		fmt.Println("\n[DRY RUN] No changes were made to the database")
		return
	}

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	if *migrate {
		if err := app.Migrate(ctx, cfg, slogger); err != nil {
			slogger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	database, err := app.OpenDatabase(ctx, cfg, 4, slogger)
	if err != nil {
		slogger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()

	products := db.NewProductRepository(database, slogger)
	s := &seeder{
		products: products,
		ledger: services.NewLedgerService(
			products,
			db.NewMovementRepository(database, slogger),
			db.NewAuditLogger(database, slogger),
			database,
			slogger,
		),
		logger: slogger,
	}

	res, err := s.seed(ctx, entries)
	if err != nil {
		slogger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 48))
	fmt.Printf("Products created:      %d\n", res.created)
	fmt.Printf("Products skipped:      %d\n", res.skipped)
	fmt.Printf("Opening units booked:  %d\n", res.units)

	slogger.Info("seed operation completed",
		slog.Int("products_created", res.created),
		slog.Int("products_skipped", res.skipped),
		slog.Int("units", res.units))
}
