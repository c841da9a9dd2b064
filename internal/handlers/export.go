// internal/handlers/export.go
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
)

const (
	// ExportFilePattern names export files in the temp directory; the worker's
	// temp cleanup matches the same prefix
	ExportFilePattern = "pharmapos-export-*.xlsx"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportOptions bounds spreadsheet exports
type ExportOptions struct {
	TempDir  string
	MaxRows  int
	PageSize int
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.MaxRows <= 0 {
		o.MaxRows = 10000
	}
	if o.PageSize <= 0 {
		o.PageSize = 500
	}
	return o
}

var movementHeaders = []string{
	"Created At", "Product ID", "Movement Type", "Quantity",
	"Previous Quantity", "New Quantity", "Reference Type", "Reference ID",
	"Reason", "Created By",
}

// Export handles GET /api/v1/movements/export. It accepts the same filters
// as History and returns the matching movements as an .xlsx workbook.
func (h *MovementHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseMovementFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	movements, truncated, err := h.collect(ctx, filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	path, err := h.writeWorkbook(movements)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			h.logger.WarnContext(ctx, "failed to remove export file",
				slog.String("file", path),
				slog.Any("error", err))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		respondError(w, r, h.logger, fmt.Errorf("failed to open export: %w", err))
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("stock_movements_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("X-Export-Rows", strconv.Itoa(len(movements)))
	w.Header().Set("X-Export-Truncated", strconv.FormatBool(truncated))

	http.ServeContent(w, r, filename, time.Time{}, f)

	h.logger.InfoContext(ctx, "movement export completed",
		slog.Int("total_rows", len(movements)),
		slog.Bool("truncated", truncated))
}

// collect pages through history until the filter is exhausted or MaxRows
// is reached
func (h *MovementHandler) collect(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, bool, error) {
	var all []*domain.StockMovement
	filter.Limit = h.export.PageSize

	for {
		page, err := h.ledger.GetHistory(ctx, filter)
		if err != nil {
			return nil, false, err
		}
		all = append(all, page...)

		if len(all) >= h.export.MaxRows {
			return all[:h.export.MaxRows], true, nil
		}
		if len(page) < filter.Limit {
			return all, false, nil
		}
		filter.Offset += len(page)
	}
}

func (h *MovementHandler) writeWorkbook(movements []*domain.StockMovement) (string, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Movements")
	if err != nil {
		return "", fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range movementHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, m := range movements {
		row := sheet.AddRow()
		row.AddCell().SetString(m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(m.ProductID.String())
		row.AddCell().SetString(string(m.MovementType))
		row.AddCell().SetInt(m.Quantity)
		row.AddCell().SetInt(m.PreviousQuantity)
		row.AddCell().SetInt(m.NewQuantity)
		row.AddCell().SetString(string(m.ReferenceType))
		row.AddCell().SetString(m.ReferenceID)
		row.AddCell().SetString(m.Reason)
		row.AddCell().SetString(m.CreatedBy)
	}

	sheet.SetColWidth(1, len(movementHeaders), 18)

	if err := os.MkdirAll(h.export.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare export directory: %w", err)
	}
	tmp, err := os.CreateTemp(h.export.TempDir, ExportFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	path := filepath.Clean(tmp.Name())

	if err := file.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	return path, nil
}
