package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rejectcli/internal/dataprocessing"
	"rejectcli/internal/infrastructure"
)

// Advisory outcomes recorded on metrics and spans.
const (
	AdvisoryOK      = "ok"
	AdvisoryTimeout = "timeout"
	AdvisoryError   = "error"
)

// instrumentedAdvisor wraps an advisor with a span, metrics and a log line
// per round trip.
type instrumentedAdvisor struct {
	next    dataprocessing.Advisor
	tracer  trace.Tracer
	metrics *infrastructure.AnalysisMetrics
	logger  *slog.Logger
}

func (a *instrumentedAdvisor) Advise(ctx context.Context, prompt string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "advisory.advise",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("advisory.prompt_bytes", len(prompt))),
	)
	defer span.End()

	start := time.Now()
	guidance, err := a.next.Advise(ctx, prompt)
	elapsed := time.Since(start)

	outcome := advisoryOutcome(err)
	a.metrics.RecordAdvisory(ctx, outcome, elapsed)
	span.SetAttributes(
		attribute.String("advisory.outcome", outcome),
		attribute.Int("advisory.guidance_bytes", len(guidance)),
	)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		a.logger.WarnContext(ctx, "advisory request failed",
			slog.String("outcome", outcome),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return "", err
	}

	a.logger.DebugContext(ctx, "advisory request completed", slog.Duration("elapsed", elapsed))
	return guidance, nil
}

func advisoryOutcome(err error) string {
	switch {
	case err == nil:
		return AdvisoryOK
	case errors.Is(err, context.DeadlineExceeded):
		return AdvisoryTimeout
	default:
		return AdvisoryError
	}
}
