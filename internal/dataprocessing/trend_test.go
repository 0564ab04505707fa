package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rejectcli/internal/config"
	"rejectcli/internal/shared/testutil"
	"rejectcli/pkg/contracts/domain"
)

func newTrendExtractor(t *testing.T) (*TrendExtractor, config.AggregateSheetConfig) {
	t.Helper()
	cfg := config.Default().Analysis.Aggregate
	logger, _ := testutil.NewTestLogger(t)
	return NewTrendExtractor(cfg, nil, NewNumericCoercer(nil, true), logger), cfg
}

// trendRows places (date, rate) pairs on consecutive window rows.
func trendRows(cfg config.AggregateSheetConfig, pairs ...[2]any) map[coord]any {
	values := map[coord]any{}
	for i, p := range pairs {
		row := cfg.TrendFirstRow + i
		values[coord{row, cfg.TrendDateCol}] = p[0]
		values[coord{row, cfg.TrendRateCol}] = p[1]
	}
	return values
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTrendDropsDatelessRows(t *testing.T) {
	e, cfg := newTrendExtractor(t)

	sheet := gridSheet("Stamping Rej", trendRows(cfg,
		[2]any{"01/03/2024", "12.5"},
		[2]any{"", "#DIV/0!"},
		[2]any{"2024-03-05", "7.0"},
	))

	series, warnings, err := e.Extract(sheet)
	require.NoError(t, err)
	require.Len(t, series.Points, 2)

	assert.Equal(t, day(2024, time.March, 1), series.Points[0].Date)
	assert.Equal(t, 12.5, *series.Points[0].Rate)
	assert.Equal(t, cfg.TrendFirstRow+1, series.Points[0].Row)
	assert.Equal(t, day(2024, time.March, 5), series.Points[1].Date)
	assert.Equal(t, 7.0, *series.Points[1].Rate)

	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarningMissingDate, warnings[0].Kind)
	assert.Equal(t, cfg.TrendFirstRow+2, warnings[0].Row)
}

func TestTrendSortsByDate(t *testing.T) {
	e, cfg := newTrendExtractor(t)

	sheet := gridSheet("Stamping Rej", trendRows(cfg,
		[2]any{"20/03/2024", 4.0},
		[2]any{"2024-03-02", 1.0},
		[2]any{"", 9.0},
		[2]any{"15/03/2024", 3.0},
		[2]any{"02/03/2024", 2.0},
		[2]any{"03/31/2024", 5.0},
	))

	series, _, err := e.Extract(sheet)
	require.NoError(t, err)
	require.Len(t, series.Points, 5)

	for i := 1; i < len(series.Points); i++ {
		assert.False(t, series.Points[i].Date.Before(series.Points[i-1].Date))
	}
	// Duplicate dates are kept in row order.
	assert.Equal(t, 1.0, *series.Points[0].Rate)
	assert.Equal(t, 2.0, *series.Points[1].Rate)
	assert.Equal(t, day(2024, time.March, 31), series.Points[4].Date)
}

func TestTrendRowHandling(t *testing.T) {
	e, cfg := newTrendExtractor(t)

	sheet := gridSheet("Stamping Rej", trendRows(cfg,
		[2]any{"01/03/2024", "#DIV/0!"},
		[2]any{"someday", "3.0"},
		[2]any{"03/03/2024", ""},
		[2]any{"04/03/2024", "high"},
		[2]any{"05/03/2024", "2,5"},
		[2]any{"", ""},
		[2]any{"07/03/2024", 0.125},
	))

	series, warnings, err := e.Extract(sheet)
	require.NoError(t, err)
	require.Len(t, series.Points, 3)

	assert.Nil(t, series.Points[0].Rate, "formula error keeps the row as missing")
	assert.Equal(t, 2.5, *series.Points[1].Rate)
	assert.Equal(t, 0.125, *series.Points[2].Rate)
	assert.Equal(t, 2, series.Present())

	var kinds []domain.WarningKind
	for _, w := range warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []domain.WarningKind{
		domain.WarningInvalidCellValue,
		domain.WarningDateParse,
		domain.WarningMissingRate,
		domain.WarningNumericCoercion,
	}, kinds, "fully blank rows are skipped silently")
}

func TestTrendEmptyResult(t *testing.T) {
	e, cfg := newTrendExtractor(t)

	sheet := gridSheet("Stamping Rej", trendRows(cfg,
		[2]any{"", "1.0"},
		[2]any{"bad", "2.0"},
	))

	series, warnings, err := e.Extract(sheet)
	assert.Nil(t, series)
	assert.ErrorIs(t, err, ErrEmptyResultSet)
	assert.Len(t, warnings, 2)
}

func TestTrendWindowPastSheetEnd(t *testing.T) {
	e, _ := newTrendExtractor(t)

	sheet := gridSheet("Stamping Rej", map[coord]any{{0, 0}: "header"})
	_, _, err := e.Extract(sheet)
	assert.ErrorIs(t, err, ErrEmptyResultSet)
}
