package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rejectcli/internal/config"
	"rejectcli/internal/dataprocessing"
	"rejectcli/internal/infrastructure"
	"rejectcli/internal/workbook"
	api "rejectcli/pkg/contracts/api/v1"
	"rejectcli/pkg/contracts/domain"
	"rejectcli/pkg/contracts/events"
)

// Section names used on spans, metrics and logs.
const (
	SectionBreakdown = "breakdown"
	SectionTrend     = "trend"
	SectionDetail    = "detail"
)

// Notifier receives run lifecycle messages, typically a WebSocket hub.
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// AnalysisService runs every extraction over one document and assembles the
// report. Sections fail independently.
type AnalysisService struct {
	cfg             config.AnalysisConfig
	advisor         dataprocessing.Advisor
	advisoryTimeout time.Duration
	tracer          trace.Tracer
	metrics         *infrastructure.AnalysisMetrics
	notifier        Notifier
	logger          *slog.Logger
	open            func(path string) (*workbook.Document, error)
}

// AnalysisOption configures an AnalysisService.
type AnalysisOption func(*AnalysisService)

// WithAdvisor enables the guided path. Each call to the advisor is bounded
// by timeout.
func WithAdvisor(advisor dataprocessing.Advisor, timeout time.Duration) AnalysisOption {
	return func(s *AnalysisService) {
		s.advisor = advisor
		s.advisoryTimeout = timeout
	}
}

// WithTracer replaces the global tracer.
func WithTracer(tracer trace.Tracer) AnalysisOption {
	return func(s *AnalysisService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics records run, section and advisory metrics.
func WithMetrics(metrics *infrastructure.AnalysisMetrics) AnalysisOption {
	return func(s *AnalysisService) { s.metrics = metrics }
}

// WithNotifier publishes analysis:started and analysis:completed messages.
func WithNotifier(n Notifier) AnalysisOption {
	return func(s *AnalysisService) { s.notifier = n }
}

// NewAnalysisService creates the service. Without WithAdvisor every guided
// run reports the advisory service as unavailable.
func NewAnalysisService(cfg config.AnalysisConfig, logger *slog.Logger, opts ...AnalysisOption) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AnalysisService{
		cfg:    cfg,
		tracer: otel.Tracer("rejectcli/services"),
		logger: infrastructure.WithComponent(logger, "analysis"),
		open:   workbook.Open,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.advisor != nil {
		s.advisor = &instrumentedAdvisor{
			next:    s.advisor,
			tracer:  s.tracer,
			metrics: s.metrics,
			logger:  s.logger,
		}
	}
	return s
}

// ValidateOptions rejects option combinations no run could honour.
func (s *AnalysisService) ValidateOptions(opts api.AnalysisOptions) (dataprocessing.GapFillStrategy, error) {
	if opts.PartialMapping() {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, ErrPartialMapping)
	}
	name := opts.GapFill
	if name == "" {
		name = s.cfg.GapFill
	}
	strategy, err := dataprocessing.ParseGapFillStrategy(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", ErrInvalidInput, ErrInvalidGapFill, err)
	}
	return strategy, nil
}

// Analyze opens path and derives the full report. The only error it returns
// besides invalid options is a document that cannot be opened; every other
// problem is recorded on the section it affects.
func (s *AnalysisService) Analyze(ctx context.Context, path string, opts api.AnalysisOptions) (*domain.AnalysisReport, error) {
	strategy, err := s.ValidateOptions(opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(infrastructure.EnsureTraceID(ctx), runID)
	logger := s.logger.With(slog.String("run_id", runID))

	ctx, span := s.tracer.Start(ctx, "analysis.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("document", filepath.Base(path)),
			attribute.Bool("mapping.manual", opts.ManualMapping()),
		),
	)
	defer span.End()

	report := &domain.AnalysisReport{
		RunID:     runID,
		Source:    filepath.Base(path),
		StartedAt: time.Now().UTC(),
	}
	s.notify(ctx, events.MessageTypeAnalysisStarted, report, "running")
	logger.InfoContext(ctx, "analysis started", slog.String("document", path))

	doc, err := s.open(path)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordRun(ctx, "failed", time.Since(report.StartedAt))
		report.CompletedAt = time.Now().UTC()
		s.notify(ctx, events.MessageTypeAnalysisCompleted, report, "failed")
		logger.ErrorContext(ctx, "document could not be opened",
			slog.String("document", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrDocumentUnreadable, err)
	}
	defer doc.Close()

	report.Sheets = doc.SheetNames()
	aggregate, aggErr := workbook.Locate(doc, s.cfg.Aggregate.SheetNames...)

	report.Breakdown = s.breakdown(ctx, aggregate, aggErr)
	report.Trend = s.trend(ctx, aggregate, aggErr, strategy)
	report.Detail = s.detail(ctx, doc, opts)

	report.CompletedAt = time.Now().UTC()
	status := report.Status()
	elapsed := report.CompletedAt.Sub(report.StartedAt)

	span.SetAttributes(attribute.String("run.status", status))
	s.metrics.RecordRun(ctx, status, elapsed)
	s.notify(ctx, events.MessageTypeAnalysisCompleted, report, status)

	logger.InfoContext(ctx, "analysis completed",
		slog.String("status", status),
		slog.Duration("elapsed", elapsed),
		slog.String(SectionBreakdown, string(report.Breakdown.Status)),
		slog.String(SectionTrend, string(report.Trend.Status)),
		slog.String(SectionDetail, string(report.Detail.Status)))

	return report, nil
}

func (s *AnalysisService) breakdown(ctx context.Context, sheet *workbook.SheetView, locErr error) domain.BreakdownSection {
	ctx, span := s.startSection(ctx, SectionBreakdown, sheet)
	defer span.End()

	var sec domain.BreakdownSection
	err := locErr
	if err == nil {
		coercer := dataprocessing.NewNumericCoercer(s.cfg.ErrorSentinels, true)
		extractor := dataprocessing.NewFixedLayoutExtractor(s.cfg.Aggregate, coercer, s.logger)
		sec.Breakdown, sec.Warnings, err = extractor.Extract(sheet)
	}
	if err == nil {
		if n := s.cfg.Aggregate.TopCategories; n > 0 {
			sec.Top = sec.Breakdown.Top(n)
		}
		span.SetAttributes(
			attribute.Float64("breakdown.grand_total", sec.Breakdown.GrandTotal),
			attribute.Int("breakdown.items", len(sec.Breakdown.Items)),
		)
	}
	sec.Status, sec.Error = s.finishSection(ctx, span, SectionBreakdown, err, sec.Warnings)
	return sec
}

func (s *AnalysisService) trend(ctx context.Context, sheet *workbook.SheetView, locErr error, strategy dataprocessing.GapFillStrategy) domain.TrendSection {
	ctx, span := s.startSection(ctx, SectionTrend, sheet)
	defer span.End()

	sec := domain.TrendSection{GapFill: string(strategy)}
	err := locErr
	if err == nil {
		coercer := dataprocessing.NewNumericCoercer(s.cfg.ErrorSentinels, true)
		extractor := dataprocessing.NewTrendExtractor(s.cfg.Aggregate, nil, coercer, s.logger)
		sec.Series, sec.Warnings, err = extractor.Extract(sheet)
	}
	if err == nil && strategy != dataprocessing.GapFillNone {
		var stats dataprocessing.GapFillStatistics
		sec.Series, stats = dataprocessing.NewGapFiller(strategy).FillWithStats(sec.Series)
		span.SetAttributes(
			attribute.String("gap_fill.strategy", string(strategy)),
			attribute.Int("gap_fill.missing", stats.MissingPoints),
			attribute.Int("gap_fill.filled", stats.FilledPoints),
		)
	}
	if err == nil {
		span.SetAttributes(attribute.Int("trend.points", len(sec.Series.Points)))
	}
	sec.Status, sec.Error = s.finishSection(ctx, span, SectionTrend, err, sec.Warnings)
	return sec
}

func (s *AnalysisService) detail(ctx context.Context, doc *workbook.Document, opts api.AnalysisOptions) domain.DetailSection {
	sheet, err := workbook.Locate(doc, s.cfg.Detail.SheetNames...)
	ctx, span := s.startSection(ctx, SectionDetail, sheet)
	defer span.End()

	var sec domain.DetailSection
	if err == nil {
		sec, err = s.mapDetail(ctx, sheet, opts)
	}
	if err == nil {
		sec.Stats = dataprocessing.CategoryStats(sec.Table)
		sec.Pivot = dataprocessing.PivotByDate(sec.Table)
		span.SetAttributes(
			attribute.Int("detail.records", len(sec.Table.Records)),
			attribute.Int("detail.groups", len(sec.Stats)),
		)
	}
	if sec.MappingVia != "" {
		span.SetAttributes(attribute.String("mapping.via", sec.MappingVia))
	}
	sec.Status, sec.Error = s.finishSection(ctx, span, SectionDetail, err, sec.Warnings)
	return sec
}

func (s *AnalysisService) mapDetail(ctx context.Context, sheet *workbook.SheetView, opts api.AnalysisOptions) (domain.DetailSection, error) {
	var sec domain.DetailSection

	table, err := dataprocessing.NewRowTable(sheet, s.cfg.Detail.HeaderRow)
	if err != nil {
		return sec, err
	}

	mapper := dataprocessing.NewGuidedColumnMapper(s.cfg.Detail, s.advisor, s.advisoryTimeout, s.cfg.ErrorSentinels, s.logger)

	var res *dataprocessing.GuidedResult
	if opts.ManualMapping() {
		res, err = mapper.MapManual(table, domain.ColumnRoleMapping{
			Date:     domain.String(opts.DateColumn),
			Category: domain.String(opts.CategoryColumn),
			Rate:     domain.String(opts.RateColumn),
		})
	} else {
		res, err = mapper.Map(ctx, table)
	}

	sec.MappingVia = res.Via
	sec.Guidance = res.Guidance
	sec.Mapping = res.Mapping
	sec.Warnings = res.Warnings
	if err != nil {
		return sec, err
	}
	sec.Table = res.Table
	return sec, nil
}

func (s *AnalysisService) startSection(ctx context.Context, section string, sheet *workbook.SheetView) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("section", section)}
	if sheet != nil {
		attrs = append(attrs, attribute.String("sheet", sheet.Name()))
	}
	return s.tracer.Start(ctx, "analysis."+section,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func (s *AnalysisService) finishSection(ctx context.Context, span trace.Span, section string, err error, warnings []domain.RowWarning) (domain.SectionStatus, *domain.SectionError) {
	span.SetAttributes(attribute.Int("warnings", len(warnings)))
	s.metrics.RecordSkippedRows(ctx, section, countByKind(warnings))

	if err == nil {
		s.metrics.RecordSection(ctx, section, string(domain.SectionOK))
		return domain.SectionOK, nil
	}

	sectionErr := ClassifySectionError(err)
	infrastructure.RecordError(ctx, err)
	span.SetAttributes(attribute.String("error.kind", string(sectionErr.Kind)))
	s.metrics.RecordSection(ctx, section, string(domain.SectionFailed))
	s.logger.WarnContext(ctx, "section failed",
		slog.String("run_id", infrastructure.GetRunID(ctx)),
		slog.String("section", section),
		slog.String("kind", string(sectionErr.Kind)),
		slog.String("error", err.Error()))
	return domain.SectionFailed, sectionErr
}

// ClassifySectionError maps a section failure onto the kind shown to users.
func ClassifySectionError(err error) *domain.SectionError {
	se := &domain.SectionError{Kind: domain.ErrKindInternal, Message: err.Error()}

	var notFound *workbook.SheetNotFoundError
	var mapping *dataprocessing.MappingError
	switch {
	case errors.As(err, &notFound):
		se.Kind = domain.ErrKindSheetNotFound
		se.Attempted = notFound.Attempted
	case errors.Is(err, workbook.ErrSheetNotFound):
		se.Kind = domain.ErrKindSheetNotFound
	case errors.Is(err, workbook.ErrCellOutOfRange):
		se.Kind = domain.ErrKindCellOutOfRange
	case errors.Is(err, dataprocessing.ErrAdvisoryUnavailable):
		se.Kind = domain.ErrKindAdvisoryUnavailable
	case errors.Is(err, dataprocessing.ErrColumnMappingUnresolved):
		se.Kind = domain.ErrKindMappingUnresolved
		if errors.As(err, &mapping) {
			se.Unmatched = mapping.Unmatched
		}
	case errors.Is(err, dataprocessing.ErrEmptyResultSet):
		se.Kind = domain.ErrKindEmptyResultSet
	}
	return se
}

func (s *AnalysisService) notify(ctx context.Context, kind events.MessageType, report *domain.AnalysisReport, status string) {
	if s.notifier == nil {
		return
	}
	summary := events.AnalysisSummary{
		RunID:     report.RunID,
		Source:    report.Source,
		Status:    status,
		StartedAt: report.StartedAt,
	}
	if kind == events.MessageTypeAnalysisCompleted {
		summary.Duration = report.CompletedAt.Sub(report.StartedAt).String()
		if report.Sheets != nil {
			summary.Sections = map[string]string{
				SectionBreakdown: string(report.Breakdown.Status),
				SectionTrend:     string(report.Trend.Status),
				SectionDetail:    string(report.Detail.Status),
			}
			summary.Warnings = len(report.Breakdown.Warnings) + len(report.Trend.Warnings) + len(report.Detail.Warnings)
		}
	}
	s.notifier.Broadcast(string(kind), events.Message{
		ID:        report.RunID,
		Type:      kind,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
		Data:      summary,
	})
}

func countByKind(warnings []domain.RowWarning) map[string]int {
	if len(warnings) == 0 {
		return nil
	}
	byKind := make(map[string]int)
	for _, w := range warnings {
		byKind[string(w.Kind)]++
	}
	return byKind
}
