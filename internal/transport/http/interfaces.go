package http

import (
	"context"
	"io"

	"rejectcli/internal/files"
	api "rejectcli/pkg/contracts/api/v1"
	"rejectcli/pkg/contracts/domain"
)

// AnalysisServiceInterface runs one analysis over a workbook on disk.
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, path string, opts api.AnalysisOptions) (*domain.AnalysisReport, error)
}

// UploadStore persists an uploaded workbook to scratch space.
type UploadStore interface {
	SaveUpload(r io.Reader, originalName string, maxBytes int64) (*files.Scratch, error)
}
