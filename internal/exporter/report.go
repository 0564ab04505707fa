package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rejectcli/pkg/contracts/domain"
)

// Column headers of the exported tables.
var (
	BreakdownHeaders = []string{"Rejection Type", "Rejection Sheets", "Rejection Percentage"}
	TrendHeaders     = []string{"Date", "Rejection %", "Filled"}
	StatsHeaders     = []string{"Thickness", "Count", "Mean", "Min", "Max", "Std"}
)

// BreakdownRecords lays out a breakdown as table rows, followed by a total row.
func BreakdownRecords(b *domain.CategoryBreakdown) [][]string {
	records := make([][]string, 0, len(b.Items)+1)
	for _, item := range b.Items {
		records = append(records, []string{item.Label, formatFloat(item.Count), formatFloat(item.Percentage)})
	}
	return append(records, []string{"Total", formatFloat(b.SubtotalSum), formatFloat(b.OverallPercentage)})
}

// TrendRecords lays out a trend series; a missing rate is an empty cell.
func TrendRecords(s *domain.TrendSeries) [][]string {
	records := make([][]string, 0, len(s.Points))
	for _, p := range s.Points {
		records = append(records, []string{formatDate(p.Date), formatOptional(p.Rate), formatBool(p.Filled)})
	}
	return records
}

// StatsRecords lays out per-category statistics. A single-member group has an
// empty Std cell.
func StatsRecords(stats []domain.GroupStats) [][]string {
	records := make([][]string, 0, len(stats))
	for _, g := range stats {
		records = append(records, []string{
			formatNumber(g.Category),
			fmt.Sprint(g.Count),
			formatFloat(g.Mean),
			formatFloat(g.Min),
			formatFloat(g.Max),
			formatOptional(g.StdDev),
		})
	}
	return records
}

// PivotTable returns the headers and rows of a date by category pivot.
func PivotTable(m *domain.MultiSeries) ([]string, [][]string) {
	headers := make([]string, 0, len(m.Series)+1)
	headers = append(headers, "Date")
	for _, line := range m.Series {
		headers = append(headers, formatNumber(line.Category))
	}

	records := make([][]string, 0, len(m.Dates))
	for i, d := range m.Dates {
		row := make([]string, 0, len(headers))
		row = append(row, formatDate(d))
		for _, line := range m.Series {
			row = append(row, formatOptional(line.Values[i]))
		}
		records = append(records, row)
	}
	return headers, records
}

// WriteReportJSON writes the complete report as indented JSON.
func WriteReportJSON(w io.Writer, report *domain.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// ReportExporter writes a report and the tables of its successful sections
// into a directory, as <source>.report.json and <source>.<table>.csv.
type ReportExporter struct {
	dir    string
	csv    *CSVWriter
	logger *slog.Logger
}

// NewReportExporter creates an exporter writing into dir.
func NewReportExporter(dir string, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{
		dir:    dir,
		csv:    NewCSVWriter(dir, logger),
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Export writes every output of report and returns the written paths.
func (e *ReportExporter) Export(report *domain.AnalysisReport) ([]string, error) {
	base := strings.TrimSuffix(report.Source, filepath.Ext(report.Source))
	if base == "" {
		base = report.RunID
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	jsonPath := filepath.Join(e.dir, base+".report.json")
	f, err := os.Create(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	err = WriteReportJSON(f, report)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	written = append(written, jsonPath)

	type table struct {
		name    string
		headers []string
		records [][]string
	}
	var tables []table
	if b := report.Breakdown; b.Status == domain.SectionOK {
		tables = append(tables, table{"breakdown", BreakdownHeaders, BreakdownRecords(b.Breakdown)})
	}
	if t := report.Trend; t.Status == domain.SectionOK {
		tables = append(tables, table{"trend", TrendHeaders, TrendRecords(t.Series)})
	}
	if d := report.Detail; d.Status == domain.SectionOK {
		tables = append(tables, table{"stats", StatsHeaders, StatsRecords(d.Stats)})
		headers, records := PivotTable(d.Pivot)
		tables = append(tables, table{"pivot", headers, records})
	}

	for _, t := range tables {
		path, err := e.csv.WriteCSV(base+"."+t.name+".csv", WriteOptions{
			Headers:   t.headers,
			Records:   t.records,
			BOMPrefix: true,
		})
		if err != nil {
			return written, fmt.Errorf("failed to write %s table: %w", t.name, err)
		}
		written = append(written, path)
	}

	e.logger.Info("report exported",
		slog.String("run_id", report.RunID),
		slog.String("dir", e.dir),
		slog.Int("files", len(written)))
	return written, nil
}
