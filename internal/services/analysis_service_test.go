package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"rejectcli/internal/advisory"
	"rejectcli/internal/config"
	"rejectcli/internal/dataprocessing"
	"rejectcli/internal/infrastructure"
	"rejectcli/internal/shared/testutil"
	"rejectcli/internal/workbook"
	api "rejectcli/pkg/contracts/api/v1"
	"rejectcli/pkg/contracts/domain"
	"rejectcli/pkg/contracts/events"
)

const fullGuidance = "Date column: \"Date\"\nThickness column: \"Thk\"\nRejection column: \"Rej %\"\n"

func testAnalysisConfig() config.AnalysisConfig {
	cfg := config.Default().Analysis
	cfg.Aggregate = config.AggregateSheetConfig{
		SheetNames:    []string{"Stamping Rej"},
		TotalRow:      5,
		TotalCol:      1,
		Categories:    []config.CategoryColumn{{Label: "Bend", Col: 2}, {Label: "Edge Damage", Col: 3}},
		TrendFirstRow: 1,
		TrendLastRow:  3,
		TrendDateCol:  0,
		TrendRateCol:  4,
		TopCategories: 1,
	}
	cfg.Detail.SheetNames = []string{"Size wise Rej"}
	return cfg
}

func aggregateSheet() *testutil.Sheet {
	return testutil.NewSheet("Stamping Rej").
		SetRow(0, "Date", "Total", "Bend", "Edge Damage", "Rej %").
		SetRow(1, "01/03/2024", nil, nil, nil, 1.5).
		SetRow(2, "02/03/2024", nil, nil, nil, testutil.FormulaError("#DIV/0!")).
		SetRow(3, "03/03/2024", nil, nil, nil, 2.5).
		SetRow(5, "Total", 100, 30, 20)
}

func detailSheet() *testutil.Sheet {
	return testutil.NewSheet("Size wise Rej").
		SetRow(0, "Date", "Thk", "Rej %").
		SetRow(1, "01-03-2024", 0.5, 2).
		SetRow(2, "01-03-2024", 0.5, 4).
		SetRow(3, "02-03-2024", 0.8, 1)
}

func writeWorkbook(t *testing.T, sheets ...*testutil.Sheet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rejections.ods")
	testutil.WriteODS(t, path, sheets...)
	return path
}

func TestAnalyzeFullReport(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeWorkbook(t, aggregateSheet(), detailSheet())

	notifier := &MockNotifier{}
	notifier.On("Broadcast", string(events.MessageTypeAnalysisStarted), mock.AnythingOfType("events.Message")).Once()
	notifier.On("Broadcast", string(events.MessageTypeAnalysisCompleted), mock.MatchedBy(func(m events.Message) bool {
		s, ok := m.Data.(events.AnalysisSummary)
		return ok && s.Status == "ok" && s.Sections[SectionDetail] == "ok" && s.Warnings == 1
	})).Once()

	svc := NewAnalysisService(testAnalysisConfig(), logger,
		WithAdvisor(advisory.StaticAdvisor{Guidance: fullGuidance}, time.Second),
		WithNotifier(notifier))

	report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "rejections.ods", report.Source)
	assert.Equal(t, []string{"Stamping Rej", "Size wise Rej"}, report.Sheets)
	assert.Equal(t, "ok", report.Status())
	assert.False(t, report.CompletedAt.Before(report.StartedAt))

	b := report.Breakdown
	require.Equal(t, domain.SectionOK, b.Status)
	assert.Equal(t, 100.0, b.Breakdown.GrandTotal)
	assert.Equal(t, 50.0, b.Breakdown.OverallPercentage)
	require.Len(t, b.Breakdown.Items, 2)
	assert.Equal(t, "Bend", b.Breakdown.Items[0].Label)
	assert.Equal(t, 30.0, b.Breakdown.Items[0].Percentage)
	require.Len(t, b.Top, 1)
	assert.Equal(t, b.Breakdown.Items[0], b.Top[0])

	tr := report.Trend
	require.Equal(t, domain.SectionOK, tr.Status)
	assert.Equal(t, "none", tr.GapFill)
	require.Len(t, tr.Series.Points, 3)
	assert.Nil(t, tr.Series.Points[1].Rate)
	require.Len(t, tr.Warnings, 1)
	assert.Equal(t, domain.WarningInvalidCellValue, tr.Warnings[0].Kind)
	assert.Equal(t, 3, tr.Warnings[0].Row)

	d := report.Detail
	require.Equal(t, domain.SectionOK, d.Status)
	assert.Equal(t, dataprocessing.ViaGuidance, d.MappingVia)
	assert.Equal(t, fullGuidance, d.Guidance)
	assert.Equal(t, "Thk", *d.Mapping.Category)
	require.Len(t, d.Table.Records, 3)
	require.Len(t, d.Stats, 2)
	assert.Equal(t, 0.5, d.Stats[0].Category)
	assert.Equal(t, 2, d.Stats[0].Count)
	assert.InDelta(t, 3.0, d.Stats[0].Mean, 1e-9)
	assert.Nil(t, d.Stats[1].StdDev)
	require.Len(t, d.Pivot.Dates, 2)
	require.Len(t, d.Pivot.Series, 2)

	notifier.AssertExpectations(t)
}

func TestAnalyzeTopCategories(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeWorkbook(t, aggregateSheet(), detailSheet())

	tests := []struct {
		name string
		top  int
		want []string
	}{
		{name: "disabled", top: 0},
		{name: "fewer than items", top: 1, want: []string{"Bend"}},
		{name: "more than items", top: 5, want: []string{"Bend", "Edge Damage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAnalysisConfig()
			cfg.Aggregate.TopCategories = tt.top
			svc := NewAnalysisService(cfg, logger,
				WithAdvisor(advisory.StaticAdvisor{Guidance: fullGuidance}, time.Second))

			report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
			require.NoError(t, err)
			require.Equal(t, domain.SectionOK, report.Breakdown.Status)

			var labels []string
			for _, item := range report.Breakdown.Top {
				labels = append(labels, item.Label)
			}
			assert.Equal(t, tt.want, labels)
		})
	}
}

func TestAnalyzeSectionIsolation(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	t.Run("missing detail sheet", func(t *testing.T) {
		path := writeWorkbook(t, aggregateSheet())
		svc := NewAnalysisService(testAnalysisConfig(), logger,
			WithAdvisor(advisory.StaticAdvisor{Guidance: fullGuidance}, time.Second))

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)

		assert.Equal(t, "partial", report.Status())
		assert.Equal(t, domain.SectionOK, report.Breakdown.Status)
		assert.Equal(t, domain.SectionOK, report.Trend.Status)
		require.Equal(t, domain.SectionFailed, report.Detail.Status)
		assert.Equal(t, domain.ErrKindSheetNotFound, report.Detail.Error.Kind)
		assert.Equal(t, []string{"Size wise Rej"}, report.Detail.Error.Attempted)
		assert.Nil(t, report.Detail.Table)
	})

	t.Run("missing aggregate sheet", func(t *testing.T) {
		path := writeWorkbook(t, detailSheet())
		svc := NewAnalysisService(testAnalysisConfig(), logger,
			WithAdvisor(advisory.StaticAdvisor{Guidance: fullGuidance}, time.Second))

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)

		assert.Equal(t, domain.ErrKindSheetNotFound, report.Breakdown.Error.Kind)
		assert.Equal(t, domain.ErrKindSheetNotFound, report.Trend.Error.Kind)
		assert.Equal(t, domain.SectionOK, report.Detail.Status)
	})

	t.Run("grand total outside the sheet", func(t *testing.T) {
		cfg := testAnalysisConfig()
		cfg.Aggregate.TotalRow = 40
		path := writeWorkbook(t, aggregateSheet(), detailSheet())
		svc := NewAnalysisService(cfg, logger,
			WithAdvisor(advisory.StaticAdvisor{Guidance: fullGuidance}, time.Second))

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)

		require.Equal(t, domain.SectionFailed, report.Breakdown.Status)
		assert.Equal(t, domain.ErrKindCellOutOfRange, report.Breakdown.Error.Kind)
		assert.Nil(t, report.Breakdown.Breakdown)
		assert.Equal(t, domain.SectionOK, report.Trend.Status)
	})

	t.Run("every section failed", func(t *testing.T) {
		path := writeWorkbook(t, testutil.NewSheet("Other").SetRow(0, "x"))
		svc := NewAnalysisService(testAnalysisConfig(), logger)

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)
		assert.True(t, report.Failed())
		assert.Equal(t, "failed", report.Status())
	})

	assert.True(t, handler.ContainsMessage("section failed"))
}

func TestAnalyzeGuidedPathStops(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeWorkbook(t, aggregateSheet(), detailSheet())

	t.Run("no advisor configured", func(t *testing.T) {
		svc := NewAnalysisService(testAnalysisConfig(), logger)

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)

		require.Equal(t, domain.SectionFailed, report.Detail.Status)
		assert.Equal(t, domain.ErrKindAdvisoryUnavailable, report.Detail.Error.Kind)
		assert.Equal(t, "partial", report.Status())
	})

	t.Run("advisor times out", func(t *testing.T) {
		slow := dataprocessing.AdvisorFunc(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		svc := NewAnalysisService(testAnalysisConfig(), logger, WithAdvisor(slow, 20*time.Millisecond))

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)
		assert.Equal(t, domain.ErrKindAdvisoryUnavailable, report.Detail.Error.Kind)
	})

	t.Run("guidance omits a role", func(t *testing.T) {
		guidance := "Date column: \"Date\"\nRejection column: \"Rej %\"\n"
		svc := NewAnalysisService(testAnalysisConfig(), logger,
			WithAdvisor(advisory.StaticAdvisor{Guidance: guidance}, time.Second))

		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{})
		require.NoError(t, err)

		d := report.Detail
		require.Equal(t, domain.SectionFailed, d.Status)
		assert.Equal(t, domain.ErrKindMappingUnresolved, d.Error.Kind)
		assert.Equal(t, []string{dataprocessing.RoleCategory}, d.Error.Unmatched)
		assert.Equal(t, guidance, d.Guidance)
		assert.Nil(t, d.Mapping.Category)
		assert.Nil(t, d.Table)
		assert.Nil(t, d.Stats)
	})
}

func TestAnalyzeManualMapping(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeWorkbook(t, aggregateSheet(), detailSheet())

	called := false
	advisor := dataprocessing.AdvisorFunc(func(context.Context, string) (string, error) {
		called = true
		return "", errors.New("unreachable")
	})
	svc := NewAnalysisService(testAnalysisConfig(), logger, WithAdvisor(advisor, time.Second))

	report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{
		DateColumn:     "date",
		CategoryColumn: "thk",
		RateColumn:     "Rej %",
	})
	require.NoError(t, err)

	assert.False(t, called)
	d := report.Detail
	require.Equal(t, domain.SectionOK, d.Status)
	assert.Equal(t, dataprocessing.ViaManual, d.MappingVia)
	assert.Empty(t, d.Guidance)
	assert.Len(t, d.Table.Records, 3)

	t.Run("unknown column", func(t *testing.T) {
		report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{
			DateColumn:     "Date",
			CategoryColumn: "Gauge",
			RateColumn:     "Rej %",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ErrKindMappingUnresolved, report.Detail.Error.Kind)
		assert.Equal(t, []string{dataprocessing.RoleCategory}, report.Detail.Error.Unmatched)
	})
}

func TestAnalyzeGapFill(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeWorkbook(t, aggregateSheet(), detailSheet())
	svc := NewAnalysisService(testAnalysisConfig(), logger)

	report, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{GapFill: "mean"})
	require.NoError(t, err)

	tr := report.Trend
	require.Equal(t, domain.SectionOK, tr.Status)
	assert.Equal(t, "mean", tr.GapFill)
	require.NotNil(t, tr.Series.Points[1].Rate)
	assert.InDelta(t, 2.0, *tr.Series.Points[1].Rate, 1e-9)
	assert.True(t, tr.Series.Points[1].Filled)
	assert.False(t, tr.Series.Points[0].Filled)
}

func TestAnalyzeRejectsRun(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := NewAnalysisService(testAnalysisConfig(), logger)
	path := writeWorkbook(t, aggregateSheet())

	t.Run("partial mapping", func(t *testing.T) {
		_, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{DateColumn: "Date"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, err, ErrPartialMapping)
	})

	t.Run("unknown gap fill", func(t *testing.T) {
		_, err := svc.Analyze(context.Background(), path, api.AnalysisOptions{GapFill: "spline"})
		assert.ErrorIs(t, err, ErrInvalidGapFill)
	})

	t.Run("missing document", func(t *testing.T) {
		notifier := &MockNotifier{}
		notifier.On("Broadcast", mock.Anything, mock.Anything)
		svc := NewAnalysisService(testAnalysisConfig(), logger, WithNotifier(notifier))

		report, err := svc.Analyze(context.Background(), filepath.Join(t.TempDir(), "gone.ods"), api.AnalysisOptions{})
		assert.Nil(t, report)
		assert.ErrorIs(t, err, ErrDocumentUnreadable)
		notifier.AssertCalled(t, "Broadcast", string(events.MessageTypeAnalysisCompleted), mock.Anything)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := svc.Analyze(context.Background(), filepath.Join(t.TempDir(), "data.csv"), api.AnalysisOptions{})
		assert.ErrorIs(t, err, ErrDocumentUnreadable)
		assert.ErrorIs(t, err, workbook.ErrUnsupportedFormat)
	})
}

func TestAnalyzeTelemetry(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := writeWorkbook(t, aggregateSheet(), detailSheet())

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer tp.Shutdown(context.Background())

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := infrastructure.CreateAnalysisMetrics(mp.Meter("test"))
	require.NoError(t, err)

	svc := NewAnalysisService(testAnalysisConfig(), logger,
		WithTracer(tp.Tracer("test")),
		WithMetrics(metrics),
		WithAdvisor(advisory.StaticAdvisor{Guidance: fullGuidance}, time.Second))

	_, err = svc.Analyze(context.Background(), path, api.AnalysisOptions{})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, s := range spans.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"analysis.run", "analysis.breakdown", "analysis.trend", "analysis.detail", "advisory.advise"} {
		assert.True(t, names[want], "missing span %s", want)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), counterValue(t, rm, "analysis_runs_total", attribute.String("status", "ok")))
	assert.Equal(t, int64(1), counterValue(t, rm, "analysis_sections_total",
		attribute.String("section", SectionDetail), attribute.String("status", "ok")))
	assert.Equal(t, int64(1), counterValue(t, rm, "analysis_rows_skipped_total",
		attribute.String("section", SectionTrend), attribute.String("kind", string(domain.WarningInvalidCellValue))))
	assert.Equal(t, int64(1), counterValue(t, rm, "advisory_requests_total", attribute.String("outcome", AdvisoryOK)))
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				match := true
				for _, kv := range attrs {
					if v, ok := dp.Attributes.Value(kv.Key); !ok || v != kv.Value {
						match = false
					}
				}
				if match {
					return dp.Value
				}
			}
		}
	}
	t.Fatalf("metric %s with %v not recorded", name, fmt.Sprint(attrs))
	return 0
}

func TestClassifySectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind domain.SectionErrorKind
	}{
		{"sheet", &workbook.SheetNotFoundError{Attempted: []string{"A"}}, domain.ErrKindSheetNotFound},
		{"cell", fmt.Errorf("read total: %w", &workbook.CellRangeError{Sheet: "A", Row: 9, Col: 9, Rows: 1, Cols: 1}), domain.ErrKindCellOutOfRange},
		{"empty", fmt.Errorf("sheet: %w", dataprocessing.ErrEmptyResultSet), domain.ErrKindEmptyResultSet},
		{"advisory", &dataprocessing.MappingError{Status: dataprocessing.StatusGuidanceUnavailable, Reason: "x"}, domain.ErrKindAdvisoryUnavailable},
		{"unresolved", &dataprocessing.MappingError{Status: dataprocessing.StatusUnresolved, Unmatched: []string{"rate"}}, domain.ErrKindMappingUnresolved},
		{"other", errors.New("boom"), domain.ErrKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := ClassifySectionError(tt.err)
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.err.Error(), se.Message)
		})
	}

	se := ClassifySectionError(&dataprocessing.MappingError{Status: dataprocessing.StatusUnresolved, Unmatched: []string{"rate"}})
	assert.Equal(t, []string{"rate"}, se.Unmatched)
	se = ClassifySectionError(&workbook.SheetNotFoundError{Attempted: []string{"A", "B"}})
	assert.Equal(t, []string{"A", "B"}, se.Attempted)
}
