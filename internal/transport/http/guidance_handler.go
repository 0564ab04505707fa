package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"rejectcli/internal/dataprocessing"
	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/middleware"
	api "rejectcli/pkg/contracts/api/v1"
)

// GuidanceHandler previews how a piece of guidance text maps onto a header
// row, without uploading a workbook.
type GuidanceHandler struct {
	keywords     dataprocessing.RoleKeywords
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewGuidanceHandler creates a new guidance handler
func NewGuidanceHandler(keywords dataprocessing.RoleKeywords, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *GuidanceHandler {
	return &GuidanceHandler{
		keywords:     keywords,
		validation:   validation,
		logger:       logger.With(slog.String("component", "guidance_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the guidance routes
func (h *GuidanceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))
	r.Use(h.validation.ValidateJSON)
	r.Post("/extract", h.Extract)
	return r
}

// Extract handles POST /api/guidance/extract
func (h *GuidanceHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req api.GuidanceExtractRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	extraction := dataprocessing.ExtractRoles(req.Guidance, h.keywords)
	resp := api.GuidanceExtractResponse{
		Status:    string(dataprocessing.StatusResolved),
		Mapping:   extraction.Mapping,
		Unmatched: extraction.Unmatched,
	}

	table := &dataprocessing.RowTable{Sheet: "request", Headers: req.Headers}
	if _, err := dataprocessing.ResolveMapping(extraction.Mapping, table); err != nil {
		resp.Status = string(dataprocessing.StatusUnresolved)
		resp.Reason = err.Error()
		var mErr *dataprocessing.MappingError
		if errors.As(err, &mErr) {
			resp.Reason = mErr.Reason
			resp.Unmatched = mErr.Unmatched
		}
	}

	h.logger.DebugContext(r.Context(), "guidance extracted",
		slog.String("status", resp.Status),
		slog.Any("unmatched", resp.Unmatched))

	render.JSON(w, r, resp)
}
