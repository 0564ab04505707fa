package dataprocessing

import (
	"fmt"
	"log/slog"
	"sort"

	"rejectcli/internal/config"
	"rejectcli/internal/workbook"
	"rejectcli/pkg/contracts/domain"
)

// FixedLayoutExtractor reads a grand total and per-category subtotals from
// fixed coordinates of the aggregate sheet.
type FixedLayoutExtractor struct {
	layout  config.AggregateSheetConfig
	coercer NumericCoercer
	logger  *slog.Logger
}

// NewFixedLayoutExtractor creates an extractor for the given layout.
func NewFixedLayoutExtractor(layout config.AggregateSheetConfig, coercer NumericCoercer, logger *slog.Logger) *FixedLayoutExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixedLayoutExtractor{
		layout:  layout,
		coercer: coercer,
		logger:  logger.With(slog.String("component", "breakdown")),
	}
}

// Extract builds the category breakdown. Unreadable counts become 0 with a
// warning; a coordinate outside the sheet fails the whole extraction.
func (e *FixedLayoutExtractor) Extract(sheet *workbook.SheetView) (*domain.CategoryBreakdown, []domain.RowWarning, error) {
	var warnings []domain.RowWarning

	total, w, err := e.readCount(sheet, e.layout.TotalRow, e.layout.TotalCol, "grand total")
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, w...)

	items := make([]domain.CategoryShare, 0, len(e.layout.Categories))
	sum := 0.0
	for _, cat := range e.layout.Categories {
		count, w, err := e.readCount(sheet, e.layout.TotalRow, cat.Col, cat.Label)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, w...)

		sum += count
		items = append(items, domain.CategoryShare{
			Label:      cat.Label,
			Count:      count,
			Percentage: percentOf(count, total),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Percentage > items[j].Percentage
	})

	breakdown := &domain.CategoryBreakdown{
		Sheet:             sheet.Name(),
		GrandTotal:        total,
		SubtotalSum:       sum,
		OverallPercentage: percentOf(sum, total),
		Items:             items,
	}

	e.logger.Debug("breakdown extracted",
		slog.String("sheet", sheet.Name()),
		slog.Float64("grand_total", total),
		slog.Float64("subtotal_sum", sum),
		slog.Int("warnings", len(warnings)))

	return breakdown, warnings, nil
}

func (e *FixedLayoutExtractor) readCount(sheet *workbook.SheetView, row, col int, label string) (float64, []domain.RowWarning, error) {
	cell, err := sheet.Cell(row, col)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", label, err)
	}

	c, err := e.coercer.CoerceCell(cell)
	switch {
	case err != nil:
		e.logger.Warn("count is not numeric, using 0",
			slog.String("label", label),
			slog.String("cell", workbook.CellName(row, col)),
			slog.String("value", cell.Value()))
		return 0, []domain.RowWarning{{
			Row:     row + 1,
			Column:  workbook.CellName(row, col),
			Kind:    domain.WarningNumericCoercion,
			Message: fmt.Sprintf("%s: %v; counted as 0", label, err),
		}}, nil
	case c.Sentinel != "":
		return 0, []domain.RowWarning{{
			Row:     row + 1,
			Column:  workbook.CellName(row, col),
			Kind:    domain.WarningInvalidCellValue,
			Message: fmt.Sprintf("%s holds %s; counted as 0", label, c.Sentinel),
		}}, nil
	case c.Missing:
		return 0, nil, nil
	}
	return c.Value, nil, nil
}

// percentOf returns part/whole*100, or 0 when whole is 0.
func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
