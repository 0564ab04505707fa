package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"rejectcli/internal/config"
)

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	repoURL   string
	buildTime string
	buildID   string
	paths     config.PathsConfig
	advisory  config.AdvisoryConfig
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	RepoURL   string
	BuildTime string
	BuildID   string
}

// NewHealthService creates a health service. clients may be nil when no
// WebSocket hub runs.
func NewHealthService(build BuildInfo, paths config.PathsConfig, advisory config.AdvisoryConfig, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", build.Version),
		slog.String("build_time", build.BuildTime),
		slog.Bool("advisory_enabled", advisory.Enabled))

	return &HealthService{
		version:   build.Version,
		repoURL:   build.RepoURL,
		buildTime: build.BuildTime,
		buildID:   build.BuildID,
		paths:     paths,
		advisory:  advisory,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status),
		slog.String("uptime", time.Since(hs.startTime).String()))
	return status
}

// ReadinessCheck returns readiness status. A disabled advisory service does
// not make the process unready; runs fall back to manual mapping.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"websocket": hs.checkWebSocketHealth(),
			"advisory":  hs.checkAdvisoryHealth(),
			"uploads":   hs.checkUploadsHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "readiness check failed", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"repo_url":     hs.repoURL,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	h := ServiceHealth{
		Status: "ready",
		Uptime: time.Since(hs.startTime).String(),
	}
	if hs.clients == nil {
		h.Message = "WebSocket notifications disabled"
		return h
	}
	h.Message = fmt.Sprintf("%d client(s) connected", hs.clients.ClientCount())
	return h
}

func (hs *HealthService) checkAdvisoryHealth() ServiceHealth {
	if !hs.advisory.Enabled {
		return ServiceHealth{Status: "ready", Message: "advisory service disabled, manual mapping only"}
	}
	if hs.advisory.APIKey == "" {
		return ServiceHealth{Status: "not_ready", Message: "advisory service enabled without an API key"}
	}
	return ServiceHealth{Status: "ready", Message: "advisory service configured for " + hs.advisory.Model}
}

func (hs *HealthService) checkUploadsHealth() ServiceHealth {
	dir := hs.paths.UploadsDir
	if dir == "" {
		dir = os.TempDir()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("uploads directory unavailable: %v", err),
		}
	}
	if !info.IsDir() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("uploads path is not a directory: %s", dir),
		}
	}

	probe, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("cannot write to uploads directory: %v", err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return ServiceHealth{Status: "ready", Message: "uploads directory is writable"}
}
