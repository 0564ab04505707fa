package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/files"
	"rejectcli/internal/infrastructure"
	"rejectcli/internal/middleware"
	api "rejectcli/pkg/contracts/api/v1"
)

// Multipart field names of POST /api/analyses.
const (
	FieldWorkbook       = "workbook"
	FieldDateColumn     = "date_column"
	FieldCategoryColumn = "category_column"
	FieldRateColumn     = "rate_column"
	FieldGapFill        = "gap_fill"
)

// maxFieldBytes caps each non-file form value.
const maxFieldBytes = 4096

// AnalysisHandler accepts workbook uploads and returns the analysis report.
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	uploads      UploadStore
	validation   *middleware.ValidationMiddleware
	metrics      *infrastructure.AnalysisMetrics
	maxUpload    int64
	timeout      time.Duration
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// AnalysisHandlerConfig bounds a single request.
type AnalysisHandlerConfig struct {
	MaxUploadBytes int64
	Timeout        time.Duration
}

// NewAnalysisHandler creates a new analysis handler. metrics may be nil.
func NewAnalysisHandler(
	service AnalysisServiceInterface,
	uploads UploadStore,
	validation *middleware.ValidationMiddleware,
	metrics *infrastructure.AnalysisMetrics,
	cfg AnalysisHandlerConfig,
	logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler,
) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		uploads:      uploads,
		validation:   validation,
		metrics:      metrics,
		maxUpload:    cfg.MaxUploadBytes,
		timeout:      cfg.Timeout,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data"))
	// Form fields and multipart framing ride on top of the workbook bytes.
	r.Use(middleware.MaxBodySize(h.maxUpload + 1<<20))
	r.Post("/", h.CreateAnalysis)
	return r
}

// CreateAnalysis handles POST /api/analyses. The workbook is streamed to
// scratch space, analyzed and removed before the response is written.
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mr, err := r.MultipartReader()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	var (
		opts    api.AnalysisOptions
		scratch *files.Scratch
		meta    api.UploadMeta
	)
	defer func() {
		if scratch != nil {
			scratch.Cleanup()
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.errorHandler.HandleError(w, r, h.multipartError(err))
			return
		}

		switch part.FormName() {
		case FieldWorkbook:
			if scratch != nil {
				part.Close()
				h.errorHandler.HandleError(w, r, apierrors.ErrValidation(FieldWorkbook, "only one workbook may be uploaded per request"))
				return
			}
			meta.Filename = part.FileName()
			if err := h.validation.ValidateStruct(meta); err != nil {
				part.Close()
				h.errorHandler.HandleError(w, r, err)
				return
			}
			scratch, err = h.uploads.SaveUpload(part, meta.Filename, h.maxUpload)
			part.Close()
			if err != nil {
				h.errorHandler.HandleError(w, r, err)
				return
			}
			meta.Size = scratch.Size
		default:
			if err := readField(part, &opts); err != nil {
				h.errorHandler.HandleError(w, r, h.multipartError(err))
				return
			}
		}
	}

	if scratch == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(FieldWorkbook, "a workbook file is required"))
		return
	}
	if err := h.validation.ValidateStruct(opts); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(meta.Filename)), ".")
	h.metrics.RecordUpload(ctx, format, meta.Size)
	h.logger.InfoContext(ctx, "workbook received",
		slog.String("filename", meta.Filename),
		slog.Int64("size", meta.Size),
		slog.Bool("manual_mapping", opts.ManualMapping()))

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.service.Analyze(ctx, scratch.Path, opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, report)
}

// readField copies a small form value into opts. Unknown fields are ignored.
func readField(part *multipart.Part, opts *api.AnalysisOptions) error {
	defer part.Close()

	var dst *string
	switch part.FormName() {
	case FieldDateColumn:
		dst = &opts.DateColumn
	case FieldCategoryColumn:
		dst = &opts.CategoryColumn
	case FieldRateColumn:
		dst = &opts.RateColumn
	case FieldGapFill:
		dst = &opts.GapFill
	default:
		_, err := io.Copy(io.Discard, part)
		return err
	}

	value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return err
	}
	if len(value) > maxFieldBytes {
		return apierrors.ErrValidation(part.FormName(), fmt.Sprintf("value exceeds %d bytes", maxFieldBytes))
	}
	*dst = strings.TrimSpace(string(value))
	return nil
}

func (h *AnalysisHandler) multipartError(err error) error {
	var tooLarge *http.MaxBytesError
	var apiErr *apierrors.APIError
	if errors.As(err, &tooLarge) || errors.As(err, &apiErr) {
		return err
	}
	return apierrors.InvalidRequestWithError(err)
}
