package http

import (
	"log/slog"
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"

	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/middleware"
	"rejectcli/internal/websocket"
)

// WebSocketHandler upgrades /ws requests and registers the client with the hub.
type WebSocketHandler struct {
	hub            *websocket.Hub
	upgrader       gorillaws.Upgrader
	allowedOrigins []string
	devMode        bool
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// WebSocketHandlerConfig configures the upgrader.
type WebSocketHandlerConfig struct {
	AllowedOrigins  []string
	DevMode         bool
	ReadBufferSize  int
	WriteBufferSize int
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, cfg WebSocketHandlerConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		allowedOrigins: cfg.AllowedOrigins,
		devMode:        cfg.DevMode,
		logger:         logger.With(slog.String("component", "websocket_handler")),
		errorHandler:   errorHandler,
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "WebSocket upgrade rejected",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(status, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed", reason.Error()))
		},
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the request.
		return
	}

	reqID := middleware.GetRequestID(r.Context())
	client := websocket.NewClient(h.hub, websocket.NewConnectionWrapper(conn), reqID, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(r.Context(), "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}

// checkOrigin allows requests without an Origin header, any origin in dev
// mode, and otherwise only the configured origins.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.devMode {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
