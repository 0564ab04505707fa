// Command analyzer runs the rejection analysis over workbooks on disk and
// writes a JSON report plus CSV tables per document.
//
//	analyzer [flags] file-or-dir...
//
// Exit status is 0 when every document could be opened, 1 when at least one
// could not, and 2 for usage, configuration or output errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"rejectcli/internal/advisory"
	"rejectcli/internal/config"
	"rejectcli/internal/dataprocessing"
	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/exporter"
	"rejectcli/internal/files"
	"rejectcli/internal/infrastructure"
	"rejectcli/internal/services"
	"rejectcli/internal/validation"
	"rejectcli/internal/workbook"
	"rejectcli/pkg/contracts"
	api "rejectcli/pkg/contracts/api/v1"
	"rejectcli/pkg/contracts/domain"
)

const (
	exitOK         = 0
	exitUnreadable = 1
	exitUsage      = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	out          string
	configPath   string
	guidanceFile string
	jobs         int
	logLevel     string
	analysis     api.AnalysisOptions
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.out, "out", "", "output directory (defaults to the configured reports directory)")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.analysis.DateColumn, "date-column", "", "detail sheet header holding the date")
	fs.StringVar(&opts.analysis.CategoryColumn, "category-column", "", "detail sheet header holding the category (thickness)")
	fs.StringVar(&opts.analysis.RateColumn, "rate-column", "", "detail sheet header holding the rejection rate")
	fs.StringVar(&opts.guidanceFile, "guidance-file", "", "use the text in this file as advisory guidance")
	fs.StringVar(&opts.analysis.GapFill, "gap-fill", "", "trend gap fill: none, mean or neighbors")
	fs.IntVar(&opts.jobs, "jobs", min(runtime.NumCPU(), 4), "documents analyzed concurrently")
	fs.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "%s\n\nusage: analyzer [flags] file-or-dir...\n\n", contracts.GetVersionString())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, errors.New("no input documents")
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}
	return opts, fs.Args(), nil
}

// result is the outcome of one input document.
type result struct {
	path    string
	report  *domain.AnalysisReport
	written []string
	err     *apierrors.AppError
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, inputs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "analyzer: %v\n", apierrors.NewConfigError("cannot load configuration", err))
		return exitUsage
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	// Nothing scrapes a one-shot process.
	cfg.Telemetry.MetricExporter = "none"

	logger := infrastructure.NewLogger(stderr, cfg.Logging.Level)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		fmt.Fprintf(stderr, "analyzer: %v\n", apierrors.NewConfigError("cannot initialize telemetry", err))
		return exitUsage
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if opts.out == "" {
		paths, err := config.ResolvePaths(cfg.Paths, "")
		if err != nil {
			fmt.Fprintf(stderr, "analyzer: %v\n", err)
			return exitUsage
		}
		opts.out = paths.ReportsDir
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateOutputDirectory(opts.out); err != nil {
		fmt.Fprintf(stderr, "analyzer: %v\n", apierrors.NewStorageError("unusable output directory", err))
		return exitUsage
	}

	serviceOpts := []services.AnalysisOption{services.WithTracer(providers.Tracer)}
	advisor, err := buildAdvisor(cfg.Advisory, opts.guidanceFile, logger)
	if err != nil {
		fmt.Fprintf(stderr, "analyzer: %v\n", err)
		return exitUsage
	}
	if advisor != nil {
		serviceOpts = append(serviceOpts, services.WithAdvisor(advisor, cfg.Advisory.Timeout))
	}
	svc := services.NewAnalysisService(cfg.Analysis, logger, serviceOpts...)

	if _, err := svc.ValidateOptions(opts.analysis); err != nil {
		fmt.Fprintf(stderr, "analyzer: %v\n", err)
		return exitUsage
	}

	paths, err := files.ExpandInputs(inputs)
	if err != nil {
		fmt.Fprintf(stderr, "analyzer: %v\n", err)
		return exitUsage
	}

	logger.Info("analyzer starting",
		slog.String("version", contracts.Version),
		slog.Int("documents", len(paths)),
		slog.Int("jobs", opts.jobs),
		slog.String("out", opts.out),
		slog.Bool("manual_mapping", opts.analysis.ManualMapping()))

	export := exporter.NewReportExporter(opts.out, logger)
	results := make([]result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = analyzeOne(gctx, svc, validator, export, path, opts.analysis)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(results, stdout, stderr)
}

// buildAdvisor prefers a guidance file over the configured service. A nil
// advisor leaves manual mapping as the only way to read the detail sheet.
func buildAdvisor(cfg config.AdvisoryConfig, guidanceFile string, logger *slog.Logger) (dataprocessing.Advisor, error) {
	if guidanceFile != "" {
		text, err := os.ReadFile(guidanceFile)
		if err != nil {
			return nil, apierrors.NewConfigError("cannot read guidance file", err).
				WithContext("path", guidanceFile)
		}
		return advisory.StaticAdvisor{Guidance: string(text)}, nil
	}
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := advisory.NewClient(cfg, nil, logger)
	if err != nil {
		logger.Warn("advisory service enabled but unusable",
			slog.String("error", apierrors.NewAdvisoryError("client setup failed", err).Error()))
		return nil, nil
	}
	return client, nil
}

func analyzeOne(ctx context.Context, svc *services.AnalysisService, v *validation.FileValidator, export *exporter.ReportExporter, path string, opts api.AnalysisOptions) result {
	res := result{path: path}

	if err := v.ValidateSpreadsheetFile(path); err != nil {
		switch {
		case errors.Is(err, validation.ErrLockFile):
		case errors.Is(err, os.ErrNotExist):
			res.err = apierrors.NewNotFoundError(path)
		default:
			res.err = apierrors.NewParsingError("document cannot be opened", err).WithContext("path", path)
		}
		return res
	}

	report, err := svc.Analyze(ctx, path, opts)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDocumentUnreadable), errors.Is(err, workbook.ErrUnsupportedFormat):
			res.err = apierrors.NewParsingError("document cannot be opened", err)
		default:
			res.err = apierrors.NewAppValidationError("analysis rejected", err)
		}
		res.err.WithContext("path", path)
		return res
	}
	res.report = report

	written, err := export.Export(report)
	res.written = written
	if err != nil {
		res.err = apierrors.NewStorageError("cannot write outputs", err).WithContext("path", path)
	}
	return res
}

func summarize(results []result, stdout, stderr io.Writer) int {
	code := exitOK
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", r.path, r.err)
			if exitCodeFor(r.err) > code {
				code = exitCodeFor(r.err)
			}
			continue
		}
		if r.report == nil {
			fmt.Fprintf(stdout, "%s: skipped\n", r.path)
			continue
		}
		fmt.Fprintf(stdout, "%s: breakdown=%s trend=%s detail=%s -> %d file(s)\n",
			r.path,
			sectionSummary(r.report.Breakdown.Status, r.report.Breakdown.Error),
			sectionSummary(r.report.Trend.Status, r.report.Trend.Error),
			sectionSummary(r.report.Detail.Status, r.report.Detail.Error),
			len(r.written))
	}
	return code
}

// exitCodeFor maps a per-document failure to an exit status. Only documents
// that could not be opened yield exitUnreadable.
func exitCodeFor(err *apierrors.AppError) int {
	switch err.Type {
	case apierrors.ErrTypeParsing, apierrors.ErrTypeNotFound:
		return exitUnreadable
	default:
		return exitUsage
	}
}

func sectionSummary(status domain.SectionStatus, secErr *domain.SectionError) string {
	if secErr == nil {
		return string(status)
	}
	return fmt.Sprintf("%s(%s)", status, secErr.Kind)
}
