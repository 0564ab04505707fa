package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics instruments the HTTP surface.
type HTTPMetrics struct {
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ActiveRequests  metric.Int64UpDownCounter
}

// AnalysisMetrics instruments analysis runs and the advisory service.
type AnalysisMetrics struct {
	RunsTotal        metric.Int64Counter
	RunDuration      metric.Float64Histogram
	SectionsTotal    metric.Int64Counter
	RowsSkipped      metric.Int64Counter
	AdvisoryRequests metric.Int64Counter
	AdvisoryDuration metric.Float64Histogram
	UploadBytes      metric.Int64Counter
}

// CreateHTTPMetrics registers the HTTP instruments on meter.
func CreateHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		RequestsTotal:   requestsTotal,
		RequestDuration: requestDuration,
		ActiveRequests:  activeRequests,
	}, nil
}

// CreateAnalysisMetrics registers the analysis instruments on meter.
func CreateAnalysisMetrics(meter metric.Meter) (*AnalysisMetrics, error) {
	runsTotal, err := meter.Int64Counter(
		"analysis_runs_total",
		metric.WithDescription("Total number of analysis runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"analysis_run_duration_seconds",
		metric.WithDescription("Analysis run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	sectionsTotal, err := meter.Int64Counter(
		"analysis_sections_total",
		metric.WithDescription("Analysis sections by name and status"),
	)
	if err != nil {
		return nil, err
	}

	rowsSkipped, err := meter.Int64Counter(
		"analysis_rows_skipped_total",
		metric.WithDescription("Rows skipped during extraction by section and warning kind"),
	)
	if err != nil {
		return nil, err
	}

	advisoryRequests, err := meter.Int64Counter(
		"advisory_requests_total",
		metric.WithDescription("Advisory service requests by outcome"),
	)
	if err != nil {
		return nil, err
	}

	advisoryDuration, err := meter.Float64Histogram(
		"advisory_request_duration_seconds",
		metric.WithDescription("Advisory service round trip in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	uploadBytes, err := meter.Int64Counter(
		"analysis_upload_bytes_total",
		metric.WithDescription("Bytes of uploaded workbooks accepted"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &AnalysisMetrics{
		RunsTotal:        runsTotal,
		RunDuration:      runDuration,
		SectionsTotal:    sectionsTotal,
		RowsSkipped:      rowsSkipped,
		AdvisoryRequests: advisoryRequests,
		AdvisoryDuration: advisoryDuration,
		UploadBytes:      uploadBytes,
	}, nil
}

// RecordRun records the outcome and duration of one analysis run.
func (m *AnalysisMetrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSection records the status of one report section.
func (m *AnalysisMetrics) RecordSection(ctx context.Context, section, status string) {
	if m == nil {
		return
	}
	m.SectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("section", section),
		attribute.String("status", status),
	))
}

// RecordSkippedRows counts skipped rows per warning kind.
func (m *AnalysisMetrics) RecordSkippedRows(ctx context.Context, section string, byKind map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range byKind {
		m.RowsSkipped.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String("section", section),
			attribute.String("kind", kind),
		))
	}
}

// RecordAdvisory records one advisory round trip.
func (m *AnalysisMetrics) RecordAdvisory(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.AdvisoryRequests.Add(ctx, 1, attrs)
	m.AdvisoryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordUpload counts accepted upload bytes.
func (m *AnalysisMetrics) RecordUpload(ctx context.Context, format string, n int64) {
	if m == nil {
		return
	}
	m.UploadBytes.Add(ctx, n, metric.WithAttributes(attribute.String("format", format)))
}
