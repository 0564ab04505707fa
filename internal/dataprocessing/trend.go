package dataprocessing

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"rejectcli/internal/config"
	"rejectcli/internal/workbook"
	"rejectcli/pkg/contracts/domain"
)

// ErrEmptyResultSet is returned when no record survived filtering.
var ErrEmptyResultSet = errors.New("empty result set")

// TrendExtractor reads dated rejection rates from a fixed row window.
type TrendExtractor struct {
	window  config.AggregateSheetConfig
	dates   *DateParser
	coercer NumericCoercer
	logger  *slog.Logger
}

// NewTrendExtractor creates an extractor for the window in cfg. The coercer
// should normalize comma decimals.
func NewTrendExtractor(cfg config.AggregateSheetConfig, dates *DateParser, coercer NumericCoercer, logger *slog.Logger) *TrendExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if dates == nil {
		dates = NewDateParser(TrendDateLayouts...)
	}
	return &TrendExtractor{
		window:  cfg,
		dates:   dates,
		coercer: coercer,
		logger:  logger.With(slog.String("component", "trend")),
	}
}

// Extract scans the inclusive window FirstRow..LastRow. Rows past the end of
// the sheet read as blank. A formula error in the rate column keeps the row
// with a missing rate; every other unreadable row is skipped with a warning.
func (e *TrendExtractor) Extract(sheet *workbook.SheetView) (*domain.TrendSeries, []domain.RowWarning, error) {
	w := e.window
	var (
		points   []domain.TrendPoint
		warnings []domain.RowWarning
	)

	for row := w.TrendFirstRow; row <= w.TrendLastRow; row++ {
		dateCell := cellOrEmpty(sheet, row, w.TrendDateCol)
		rateCell := cellOrEmpty(sheet, row, w.TrendRateCol)

		if dateCell.IsEmpty() {
			if !rateCell.IsEmpty() {
				warnings = append(warnings, e.warn(row, w.TrendDateCol, domain.WarningMissingDate, "date cell is empty; row skipped"))
			}
			continue
		}

		date, err := e.dates.ParseStrict(dateCell.Value())
		if err != nil {
			warnings = append(warnings, e.warn(row, w.TrendDateCol, domain.WarningDateParse, err.Error()+"; row skipped"))
			continue
		}

		c, err := e.coercer.CoerceCell(rateCell)
		switch {
		case err != nil:
			warnings = append(warnings, e.warn(row, w.TrendRateCol, domain.WarningNumericCoercion, err.Error()+"; row skipped"))
			continue
		case c.Sentinel != "":
			warnings = append(warnings, e.warn(row, w.TrendRateCol, domain.WarningInvalidCellValue,
				fmt.Sprintf("rate holds %s; kept as missing", c.Sentinel)))
			points = append(points, domain.TrendPoint{Date: date, Row: row + 1})
		case c.Missing:
			warnings = append(warnings, e.warn(row, w.TrendRateCol, domain.WarningMissingRate, "rate cell is empty; row skipped"))
			continue
		default:
			points = append(points, domain.TrendPoint{Date: date, Rate: domain.Float(c.Value), Row: row + 1})
		}
	}

	if len(points) == 0 {
		return nil, warnings, fmt.Errorf("trend rows %d-%d of %q: %w",
			w.TrendFirstRow+1, w.TrendLastRow+1, sheet.Name(), ErrEmptyResultSet)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	e.logger.Debug("trend extracted",
		slog.String("sheet", sheet.Name()),
		slog.Int("points", len(points)),
		slog.Int("warnings", len(warnings)))

	return &domain.TrendSeries{Sheet: sheet.Name(), Points: points}, warnings, nil
}

func (e *TrendExtractor) warn(row, col int, kind domain.WarningKind, msg string) domain.RowWarning {
	e.logger.Warn(msg,
		slog.Int("row", row+1),
		slog.String("cell", workbook.CellName(row, col)),
		slog.String("kind", string(kind)))
	return domain.RowWarning{
		Row:     row + 1,
		Column:  workbook.CellName(row, col),
		Kind:    kind,
		Message: msg,
	}
}

// cellOrEmpty treats coordinates outside the sheet as blank.
func cellOrEmpty(sheet *workbook.SheetView, row, col int) workbook.Cell {
	c, err := sheet.Cell(row, col)
	if err != nil {
		return workbook.Cell{}
	}
	return c
}
