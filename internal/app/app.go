package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rejectcli/internal/advisory"
	"rejectcli/internal/config"
	"rejectcli/internal/dataprocessing"
	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/files"
	"rejectcli/internal/infrastructure"
	customMiddleware "rejectcli/internal/middleware"
	"rejectcli/internal/services"
	handlers "rejectcli/internal/transport/http"
	ws "rejectcli/internal/websocket"
	"rejectcli/pkg/contracts"
)

const (
	AppName = "Rejection Analyzer"
	RepoURL = "https://github.com/rejectcli/rejectcli"
)

// BuildID is a short identifier for this build.
var BuildID = generateBuildID()

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(contracts.Version))
	h.Write([]byte(contracts.BuildTime))
	h.Write([]byte(contracts.GitCommit))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders

	uploads      *files.Manager
	validation   *customMiddleware.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
	metrics      *infrastructure.AnalysisMetrics
}

// Options tune NewApplication for embedding and tests.
type Options struct {
	// BaseDir anchors relative paths; empty means the executable directory.
	BaseDir string
	// Logger overrides the logger built from cfg.Logging.
	Logger *slog.Logger
	// HTTPClient is used for advisory calls.
	HTTPClient *http.Client
}

// NewApplication wires every component from cfg. The hub is started; the
// HTTP server is not.
func NewApplication(cfg *config.Config, opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("build_id", BuildID))

	paths, err := config.ResolvePaths(cfg.Paths, opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := a.initializeServices(opts.HTTPClient); err != nil {
		a.shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the services and the hub they notify.
func (a *Application) initializeServices(httpClient *http.Client) error {
	metrics, err := infrastructure.CreateAnalysisMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create analysis metrics: %w", err)
	}
	a.metrics = metrics

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	hub := ws.NewHub(a.Logger,
		ws.WithKeepalive(a.Config.WebSocket.PingPeriod, a.Config.WebSocket.PongWait),
		ws.WithMetrics(wsMetrics))
	hub.Start()
	a.WebSocketHub = hub

	serviceOpts := []services.AnalysisOption{
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithMetrics(metrics),
		services.WithNotifier(hub),
	}
	if a.Config.Advisory.Enabled {
		client, err := advisory.NewClient(a.Config.Advisory, httpClient, a.Logger)
		if err != nil {
			a.Logger.Warn("Advisory service enabled but unusable, runs need a manual mapping",
				slog.String("error", err.Error()))
		} else {
			serviceOpts = append(serviceOpts, services.WithAdvisor(client, a.Config.Advisory.Timeout))
		}
	}
	a.AnalysisService = services.NewAnalysisService(a.Config.Analysis, a.Logger, serviceOpts...)

	a.HealthService = services.NewHealthService(
		services.BuildInfo{
			Version:   contracts.Version,
			RepoURL:   RepoURL,
			BuildTime: contracts.BuildTime,
			BuildID:   BuildID,
		},
		config.PathsConfig{
			DataDir:    a.Paths.DataDir,
			UploadsDir: a.Paths.UploadsDir,
			ReportsDir: a.Paths.ReportsDir,
			LogsDir:    a.Paths.LogsDir,
		},
		a.Config.Advisory,
		hub,
		a.Logger,
	)

	a.uploads = files.NewManager(a.Paths.UploadsDir, a.Logger)
	a.errorHandler = apierrors.NewErrorHandler(a.Logger, a.Config.Security.DevMode)
	a.validation = customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware that does not wrap the ResponseWriter, so /ws can hijack.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, handlers.WebSocketHandlerConfig{
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
		DevMode:         a.Config.Security.DevMode,
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
	}, a.Logger, a.errorHandler)
	r.With(
		apierrors.RecoveryMiddleware(a.errorHandler),
		customMiddleware.WebSocketTraceMiddleware(a.Logger),
	).Handle("/ws", wsHandler)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		telemetry, err := customMiddleware.NewHTTPTelemetry(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create HTTP telemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(telemetry.Handler)
		}
		r.Use(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)

		headers := customMiddleware.DefaultSecureHeaders()
		headers.DevMode = a.Config.Security.DevMode
		r.Use(headers.Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins:   a.Config.Security.AllowedOrigins,
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           300,
				Logger:           a.Logger,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Compress(5))

		// Probes stay reachable without an API key.
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.APIKeyAuth(a.Logger, a.Config.Security.APIKeys))

			analysisHandler := handlers.NewAnalysisHandler(
				a.AnalysisService,
				a.uploads,
				a.validation,
				a.metrics,
				handlers.AnalysisHandlerConfig{
					MaxUploadBytes: a.Config.Analysis.MaxUploadBytes,
					Timeout:        a.Config.Server.AnalysisTimeout,
				},
				a.Logger,
				a.errorHandler,
			)
			r.Mount("/analyses", analysisHandler.Routes())

			detail := a.Config.Analysis.Detail
			guidanceHandler := handlers.NewGuidanceHandler(
				dataprocessing.RoleKeywords{
					Date:     detail.DateKeyword,
					Category: detail.CategoryKeyword,
					Rate:     detail.RateKeyword,
				},
				a.validation,
				a.Logger,
				a.errorHandler,
			)
			r.Mount("/guidance", guidanceHandler.Routes())
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start listens on the configured port and serves in the background. A
// serve failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln, cancel)
}

// Serve serves on ln in the background.
func (a *Application) Serve(ctx context.Context, ln net.Listener, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("address", ln.Addr().String()),
		slog.Bool("advisory_enabled", a.Config.Advisory.Enabled),
		slog.Bool("api_keys_required", len(a.Config.Security.APIKeys) > 0))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()
	a.shutdownTelemetry(shutdownCtx)

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) shutdownTelemetry(ctx context.Context) {
	if a.OTelProviders == nil {
		return
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
}

// Run serves until SIGINT, SIGTERM or a server failure.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	stopCtx, done := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer done()
	return a.Stop(stopCtx)
}
