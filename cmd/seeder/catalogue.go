// cmd/seeder/catalogue.go
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
)

// CatalogueEntry is one product with its opening stock
type CatalogueEntry struct {
	Product      domain.Product
	OpeningStock int
}

// defaultCatalogue is a small pharmacy shelf with a spread of stock levels
// and expiry dates so every alert type fires on the first run.
func defaultCatalogue(now time.Time) []CatalogueEntry {
	expires := func(days int) *time.Time {
		t := now.AddDate(0, 0, days).UTC()
		return &t
	}
	entry := func(code, name string, cat domain.ProductCategory, price string, stock int, expiry *time.Time) CatalogueEntry {
		return CatalogueEntry{
			Product: domain.Product{
				Code:       code,
				Name:       name,
				Category:   cat,
				UnitPrice:  decimal.RequireFromString(price),
				ExpiryDate: expiry,
			},
			OpeningStock: stock,
		}
	}

	return []CatalogueEntry{
		entry("MED-PARA500", "Paracetamol 500mg tablet", domain.CategoryOverTheCounter, "4.50", 500, expires(540)),
		entry("MED-IBU400", "Ibuprofen 400mg tablet", domain.CategoryOverTheCounter, "7.25", 240, expires(400)),
		entry("MED-AMOX500", "Amoxicillin 500mg capsule", domain.CategoryPrescription, "12.00", 15, expires(200)),
		entry("MED-LOSA50", "Losartan 50mg tablet", domain.CategoryPrescription, "18.75", 120, expires(25)),
		entry("MED-METF500", "Metformin 500mg tablet", domain.CategoryPrescription, "6.40", 0, expires(300)),
		entry("MED-CETI10", "Cetirizine 10mg tablet", domain.CategoryOverTheCounter, "9.00", 80, expires(5)),
		entry("VIT-C500", "Ascorbic acid 500mg", domain.CategoryVitamins, "5.50", 300, expires(50)),
		entry("VIT-BCOMP", "Vitamin B complex", domain.CategoryVitamins, "11.20", 60, expires(-3)),
		entry("PC-ALC70", "Isopropyl alcohol 70% 500ml", domain.CategoryPersonalCare, "85.00", 40, nil),
		entry("MS-GAUZE", "Sterile gauze pad 4x4", domain.CategoryMedicalSupply, "3.00", 1000, nil),
		entry("MS-BP-CUFF", "Digital blood pressure monitor", domain.CategoryMedicalSupply, "1850.00", 6, nil),
		entry("BC-DIAPER-M", "Baby diapers medium 40s", domain.CategoryBabyCare, "499.00", 25, nil),
	}
}

// loadCatalogue reads entries from the first sheet of an .xlsx workbook.
// Columns: code, name, category, unit price, opening stock, expiry (YYYY-MM-DD).
// The first row is a header.
func loadCatalogue(path string) ([]CatalogueEntry, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in catalogue")
	}

	var entries []CatalogueEntry
	rowIdx := 0
	err = file.Sheets[0].ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		if rowIdx == 1 {
			return nil
		}

		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			if s, err := c.FormattedValue(); err == nil {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(c.String())
		}

		code := get(0)
		if code == "" {
			return nil
		}

		price, err := decimal.NewFromString(get(3))
		if err != nil {
			return fmt.Errorf("row %d: invalid unit price %q", rowIdx, get(3))
		}

		stock := 0
		if raw := get(4); raw != "" {
			if stock, err = strconv.Atoi(raw); err != nil || stock < 0 {
				return fmt.Errorf("row %d: invalid opening stock %q", rowIdx, raw)
			}
		}

		var expiry *time.Time
		if raw := get(5); raw != "" {
			t, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return fmt.Errorf("row %d: invalid expiry %q", rowIdx, raw)
			}
			expiry = &t
		}

		entries = append(entries, CatalogueEntry{
			Product: domain.Product{
				Code:       code,
				Name:       get(1),
				Category:   domain.ProductCategory(strings.ToLower(get(2))),
				UnitPrice:  price,
				ExpiryDate: expiry,
			},
			OpeningStock: stock,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
