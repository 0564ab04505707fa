package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"rejectcli/internal/files"
	"rejectcli/internal/services"
	"rejectcli/internal/workbook"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeUnauthorized     = "/errors/unauthorized"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeUnsupportedFormat  = "/errors/workbook/unsupported-format"
	TypeUnreadableDocument = "/errors/workbook/unreadable"
	TypeSheetNotFound      = "/errors/workbook/sheet-not-found"
	TypeWebSocketUpgrade   = "/errors/websocket/upgrade-failed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	problem.Write(w)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details. Sentinels
// from the workbook, files and services packages are matched with errors.Is
// so wrapped causes keep their status.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ProblemFromAPIError(apiErr, r)
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		fields := make([]ValidationError, 0, len(valErrs))
		for _, fe := range valErrs {
			fields = append(fields, ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			})
		}
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Validation Failed",
			"Request validation failed",
			r.URL.Path,
		).WithExtension("errors", fields)
	}

	var tooLarge *http.MaxBytesError
	var sheetErr *workbook.SheetNotFoundError

	switch {
	case errors.Is(err, files.ErrUploadTooLarge), errors.As(err, &tooLarge):
		return ProblemFromAPIError(ErrPayloadTooLarge, r)

	case errors.Is(err, workbook.ErrUnsupportedFormat):
		return ProblemFromAPIError(ErrUnsupportedMediaType, r).
			WithExtension("accepted", workbook.Extensions)

	case errors.As(err, &sheetErr):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeSheetNotFound,
			"Sheet Not Found",
			err.Error(),
			r.URL.Path,
		).WithExtension("attempted", sheetErr.Attempted).
			WithExtension("available", sheetErr.Available)

	case errors.Is(err, workbook.ErrSheetNotFound):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeSheetNotFound,
			"Sheet Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, services.ErrDocumentUnreadable), errors.Is(err, workbook.ErrMalformedDocument):
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeUnreadableDocument,
			"Unreadable Workbook",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidFileType):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Invalid Request",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, services.ErrFileNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNotFound,
			"Resource Not Found",
			err.Error(),
			r.URL.Path,
		)

	case errors.Is(err, services.ErrServiceUnavailable):
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			TypeServiceDown,
			"Service Unavailable",
			err.Error(),
			r.URL.Path,
		)

	default:
		return ProblemFromAPIError(ErrInternalServer, r)
	}
}

// ProblemFromAPIError converts an APIError to ProblemDetails for r.
func ProblemFromAPIError(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "UNSUPPORTED_MEDIA_TYPE":
		problemType = TypeUnsupportedFormat
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	case "WEBSOCKET_UPGRADE_FAILED":
		problemType = TypeWebSocketUpgrade
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := ProblemFromAPIError(ErrInternalServer, r).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	problem.Write(w)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := ProblemFromAPIError(ErrNotFound, r).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))

	problem.Write(w)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	problem.Write(w)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
