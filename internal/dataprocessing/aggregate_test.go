package dataprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rejectcli/pkg/contracts/domain"
)

func record(d int, category, rate float64) domain.CleanRecord {
	return domain.CleanRecord{
		Date:     time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC),
		Category: category,
		Rate:     rate,
	}
}

func TestCategoryStats(t *testing.T) {
	table := &domain.CleanTable{Records: []domain.CleanRecord{
		record(2, 1.2, 3.5),
		record(1, 0.8, 0),
		record(3, 1.2, 4.5),
		record(3, 2.0, 1),
		record(4, 2.0, 2),
		record(5, 2.0, 6),
	}}

	stats := CategoryStats(table)
	require.Len(t, stats, 3)

	assert.Equal(t, 0.8, stats[0].Category)
	assert.Equal(t, 1, stats[0].Count)
	assert.Nil(t, stats[0].StdDev, "a single member has no sample deviation")
	assert.Equal(t, 0.0, stats[0].Mean)

	assert.Equal(t, 1.2, stats[1].Category)
	assert.Equal(t, 2, stats[1].Count)
	assert.InDelta(t, 4.0, stats[1].Mean, 1e-9)
	assert.Equal(t, 3.5, stats[1].Min)
	assert.Equal(t, 4.5, stats[1].Max)
	require.NotNil(t, stats[1].StdDev)
	assert.InDelta(t, math.Sqrt(0.5), *stats[1].StdDev, 1e-9)

	assert.Equal(t, 2.0, stats[2].Category)
	assert.InDelta(t, 3.0, stats[2].Mean, 1e-9)
	require.NotNil(t, stats[2].StdDev)
	assert.InDelta(t, math.Sqrt(7), *stats[2].StdDev, 1e-9)

	assert.Nil(t, CategoryStats(&domain.CleanTable{}))
}

func TestPivotByDate(t *testing.T) {
	table := &domain.CleanTable{Records: []domain.CleanRecord{
		record(3, 1.2, 4),
		record(1, 0.8, 1),
		record(3, 1.2, 6),
		record(2, 1.2, 2),
	}}

	pivot := PivotByDate(table)

	require.Len(t, pivot.Dates, 3)
	assert.Equal(t, 1, pivot.Dates[0].Day())
	assert.Equal(t, 2, pivot.Dates[1].Day())
	assert.Equal(t, 3, pivot.Dates[2].Day())

	require.Len(t, pivot.Series, 2)
	assert.Equal(t, 1.2, pivot.Series[0].Category, "categories keep first-appearance order")
	assert.Equal(t, 0.8, pivot.Series[1].Category)

	line := pivot.Series[0].Values
	assert.Nil(t, line[0])
	assert.Equal(t, 2.0, *line[1])
	assert.Equal(t, 5.0, *line[2], "same date and category are averaged")

	other := pivot.Series[1].Values
	assert.Equal(t, 1.0, *other[0])
	assert.Nil(t, other[1])
	assert.Nil(t, other[2])
}

func TestPivotByDateEmpty(t *testing.T) {
	pivot := PivotByDate(nil)
	assert.Empty(t, pivot.Dates)
	assert.Empty(t, pivot.Series)
}

func TestCategoryStatsSkipsNaNCategory(t *testing.T) {
	table := &domain.CleanTable{Records: []domain.CleanRecord{
		record(1, math.NaN(), 2),
		record(2, 0.8, 3),
	}}

	var stats []domain.GroupStats
	require.NotPanics(t, func() { stats = CategoryStats(table) })
	require.Len(t, stats, 1)
	assert.Equal(t, 0.8, stats[0].Category)
}
