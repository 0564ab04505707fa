package files

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUploadTooLarge is returned when an upload exceeds its byte limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Scratch is a private copy of an upload. Cleanup removes it together with
// its directory and is safe to call more than once.
type Scratch struct {
	Path    string
	Size    int64
	Cleanup func()
}

// Manager owns the scratch area uploads are written to.
type Manager struct {
	uploadsDir string
	logger     *slog.Logger
}

// NewManager creates a manager rooted at uploadsDir; an empty dir uses the
// system temp directory.
func NewManager(uploadsDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		uploadsDir: uploadsDir,
		logger:     logger.With(slog.String("component", "files")),
	}
}

// SaveUpload copies r into a fresh directory under the uploads area, keeping
// only the base name of originalName. At most maxBytes are accepted; a
// non-positive limit disables the check.
func (m *Manager) SaveUpload(r io.Reader, originalName string, maxBytes int64) (*Scratch, error) {
	name := sanitizeName(originalName)
	if name == "" {
		return nil, fmt.Errorf("upload has no usable file name: %q", originalName)
	}

	if m.uploadsDir != "" {
		if err := os.MkdirAll(m.uploadsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create uploads directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(m.uploadsDir, "run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("failed to remove scratch directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		cleanup()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, maxBytes)
	}

	m.logger.Debug("upload stored",
		slog.String("name", name),
		slog.String("path", path),
		slog.Int64("size_bytes", n))

	return &Scratch{Path: path, Size: n, Cleanup: cleanup}, nil
}

// sanitizeName strips directories from client supplied names, including
// Windows style ones.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
