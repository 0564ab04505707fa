package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rejectcli/pkg/contracts/domain"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	data = bytes.TrimPrefix(data, utf8BOM)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func sampleReport() *domain.AnalysisReport {
	return &domain.AnalysisReport{
		RunID:  "run-1",
		Source: "march.ods",
		Breakdown: domain.BreakdownSection{
			Status: domain.SectionOK,
			Breakdown: &domain.CategoryBreakdown{
				GrandTotal:        1000,
				SubtotalSum:       100,
				OverallPercentage: 10,
				Items: []domain.CategoryShare{
					{Label: "Bend", Count: 50, Percentage: 5},
					{Label: "TWM", Count: 50, Percentage: 5},
				},
			},
		},
		Trend: domain.TrendSection{
			Status: domain.SectionOK,
			Series: &domain.TrendSeries{Points: []domain.TrendPoint{
				{Date: day(1), Rate: domain.Float(1.5)},
				{Date: day(2)},
				{Date: day(13), Rate: domain.Float(2), Filled: true},
			}},
		},
		Detail: domain.DetailSection{
			Status: domain.SectionFailed,
			Error:  &domain.SectionError{Kind: domain.ErrKindAdvisoryUnavailable, Message: "down"},
		},
	}
}

func TestBreakdownRecords(t *testing.T) {
	assert.Equal(t, [][]string{
		{"Bend", "50.00", "5.00"},
		{"TWM", "50.00", "5.00"},
		{"Total", "100.00", "10.00"},
	}, BreakdownRecords(sampleReport().Breakdown.Breakdown))
}

func TestTrendRecords(t *testing.T) {
	assert.Equal(t, [][]string{
		{"01/03/2024", "1.50", "false"},
		{"02/03/2024", "", "false"},
		{"13/03/2024", "2.00", "true"},
	}, TrendRecords(sampleReport().Trend.Series))
}

func TestStatsRecords(t *testing.T) {
	stats := []domain.GroupStats{
		{Category: 0.5, Count: 2, Mean: 3, Min: 2, Max: 4, StdDev: domain.Float(1.41421356)},
		{Category: 0.75, Count: 1, Mean: 1, Min: 1, Max: 1},
	}

	assert.Equal(t, [][]string{
		{"0.5", "2", "3.00", "2.00", "4.00", "1.41"},
		{"0.75", "1", "1.00", "1.00", "1.00", ""},
	}, StatsRecords(stats))
}

func TestPivotTable(t *testing.T) {
	pivot := &domain.MultiSeries{
		Dates: []time.Time{day(1), day(2)},
		Series: []domain.CategoryLine{
			{Category: 0.8, Values: []*float64{domain.Float(1), nil}},
			{Category: 0.5, Values: []*float64{domain.Float(3), domain.Float(2.25)}},
		},
	}

	headers, records := PivotTable(pivot)
	assert.Equal(t, []string{"Date", "0.8", "0.5"}, headers)
	assert.Equal(t, [][]string{
		{"01/03/2024", "1.00", "3.00"},
		{"02/03/2024", "", "2.25"},
	}, records)
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])

	detail := decoded["detail"].(map[string]any)
	assert.Equal(t, "failed", detail["status"])
	assert.Equal(t, "advisory_service_unavailable", detail["error"].(map[string]any)["kind"])

	points := decoded["trend"].(map[string]any)["series"].(map[string]any)["points"].([]any)
	assert.Nil(t, points[1].(map[string]any)["rate"], "missing rate is null, not 0")
}

func TestReportExporterExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := NewReportExporter(dir, nil).Export(sampleReport())
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"march.report.json", "march.breakdown.csv", "march.trend.csv"}, names)

	data, err := os.ReadFile(filepath.Join(dir, "march.breakdown.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))
	records := readCSV(t, data)
	require.Len(t, records, 4)
	assert.Equal(t, BreakdownHeaders, records[0])
	assert.Equal(t, []string{"Total", "100.00", "10.00"}, records[3])

	data, err = os.ReadFile(filepath.Join(dir, "march.trend.csv"))
	require.NoError(t, err)
	records = readCSV(t, data)
	require.Len(t, records, 4)
	assert.Equal(t, TrendHeaders, records[0])
	assert.Equal(t, []string{"02/03/2024", "", "false"}, records[2])
}

func TestCSVWriterResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	path, err := w.WriteCSV("nested/a.csv", WriteOptions{Headers: []string{"h"}, Records: [][]string{{"v"}}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "a.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "h\nv\n", string(data))
}
