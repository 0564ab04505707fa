package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains the resolved, absolute directories used at runtime.
type Paths struct {
	BaseDir    string
	DataDir    string
	UploadsDir string
	ReportsDir string
	LogsDir    string
}

// ExecutableDir returns the directory containing the running binary with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return filepath.Dir(exe), nil
}

// ResolvePaths makes every configured directory absolute. Relative entries are
// joined onto baseDir; an empty baseDir means the executable directory.
func ResolvePaths(cfg PathsConfig, baseDir string) (*Paths, error) {
	if baseDir == "" {
		dir, err := ExecutableDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	return &Paths{
		BaseDir:    baseDir,
		DataDir:    abs(cfg.DataDir),
		UploadsDir: abs(cfg.UploadsDir),
		ReportsDir: abs(cfg.ReportsDir),
		LogsDir:    abs(cfg.LogsDir),
	}, nil
}

// EnsureDirectories creates all required directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.UploadsDir, p.ReportsDir, p.LogsDir}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ReportPath returns the path of a report file derived from a source document
// name, e.g. ("march.ods", "breakdown.csv") -> <reports>/march.breakdown.csv.
func (p *Paths) ReportPath(source, suffix string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(p.ReportsDir, base+"."+suffix)
}

// LogPathResolution logs the resolved directories at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("Resolved application paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("uploads_dir", p.UploadsDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
