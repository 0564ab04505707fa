package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/middleware"
	"rejectcli/internal/shared/testutil"
	"rejectcli/internal/websocket"
	"rejectcli/pkg/contracts/events"
)

func newWebSocketServer(t *testing.T, cfg WebSocketHandlerConfig) (*httptest.Server, *websocket.Hub) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := websocket.NewHub(logger)
	hub.Start()
	t.Cleanup(hub.Stop)

	h := NewWebSocketHandler(hub, cfg, logger, apierrors.NewErrorHandler(logger, false))
	srv := httptest.NewServer(middleware.RequestID(h))
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketHandlerConnect(t *testing.T) {
	srv, hub := newWebSocketServer(t, WebSocketHandlerConfig{})

	header := http.Header{}
	header.Set("X-Request-ID", "req-42")
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg events.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Equal(t, "req-42", msg.TraceID)

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandlerOrigin(t *testing.T) {
	srv, _ := newWebSocketServer(t, WebSocketHandlerConfig{AllowedOrigins: []string{"https://plant.example"}})

	t.Run("rejected origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "https://evil.example")
		_, resp, err := gorillaws.DefaultDialer.Dial(wsURL(srv), header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	})

	t.Run("allowed origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "https://PLANT.example")
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL(srv), header)
		require.NoError(t, err)
		conn.Close()
	})
}

func TestCheckOriginDevMode(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewWebSocketHandler(nil, WebSocketHandlerConfig{DevMode: true}, logger, apierrors.NewErrorHandler(logger, false))

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, h.checkOrigin(r))
}
