package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rejectcli/internal/config"
	apierrors "rejectcli/internal/errors"
	"rejectcli/internal/shared/testutil"
	"rejectcli/pkg/contracts/domain"
	"rejectcli/pkg/contracts/events"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*Application, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	a, err := NewApplication(cfg, Options{BaseDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() {
		a.WebSocketHub.Stop()
		a.shutdownTelemetry(context.Background())
	})
	return a, handler
}

func workbookUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("workbook", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestNewApplication(t *testing.T) {
	a, handler := newTestApp(t, testConfig())

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.AnalysisService)
	assert.NotNil(t, a.HealthService)
	assert.Equal(t, ":8080", a.Server.Addr)
	assert.DirExists(t, a.Paths.UploadsDir)
	assert.DirExists(t, a.Paths.ReportsDir)
	assert.True(t, handler.ContainsMessage("Application starting"))
	assert.Len(t, BuildID, 12)
}

func TestNewApplicationAdvisoryWithoutKey(t *testing.T) {
	cfg := testConfig()
	cfg.Advisory.Enabled = true
	cfg.Advisory.APIKey = ""

	a, handler := newTestApp(t, cfg)

	assert.NotNil(t, a.AnalysisService)
	assert.True(t, handler.ContainsMessage("runs need a manual mapping"))
}

func TestRoutes(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK, `"status":"ok"`},
		{"readiness", http.MethodGet, "/api/health/ready", http.StatusOK, `"status":"ready"`},
		{"liveness", http.MethodGet, "/api/health/live", http.StatusOK, `"status":"alive"`},
		{"version", http.MethodGet, "/api/version", http.StatusOK, `"build_id"`},
		{"unknown route", http.MethodGet, "/api/nothing", http.StatusNotFound, apierrors.TypeNotFound},
		{"wrong method", http.MethodGet, "/api/guidance/extract", http.StatusMethodNotAllowed, apierrors.TypeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var buf bytes.Buffer
			_, err = buf.ReadFrom(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.wantBody)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAnalysisEndToEnd(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	detail := testutil.NewSheet("Size wise Rej").
		SetRow(0, "Date", "Thk", "Rej %").
		SetRow(1, "01-03-2024", 0.5, 2).
		SetRow(2, "01-03-2024", 0.5, 4).
		SetRow(3, "02-03-2024", 0.8, 1)
	body, contentType := workbookUpload(t, "march.ods", testutil.ODSBytes(t, detail), map[string]string{
		"date_column":     "Date",
		"category_column": "Thk",
		"rate_column":     "Rej %",
	})

	resp, err := http.Post(srv.URL+"/api/analyses", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report domain.AnalysisReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "march.ods", report.Source)
	assert.Equal(t, domain.SectionOK, report.Detail.Status)
	assert.Equal(t, domain.SectionFailed, report.Breakdown.Status)
	assert.Equal(t, domain.ErrKindSheetNotFound, report.Breakdown.Error.Kind)
}

func TestAnalysisUnreadableWorkbook(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	body, contentType := workbookUpload(t, "broken.xlsx", []byte("definitely not a zip archive"), nil)
	resp, err := http.Post(srv.URL+"/api/analyses", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.APIKeys = []string{"s3cret"}
	a, _ := newTestApp(t, cfg)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	extract := func(key string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/guidance/extract",
			strings.NewReader(`{"guidance":"date column: \"Date\"","headers":["Date"]}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, extract(""))
	assert.Equal(t, http.StatusUnauthorized, extract("wrong"))
	assert.Equal(t, http.StatusOK, extract("s3cret"))

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "probes stay open")
}

func TestWebSocketRoute(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg events.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Eventually(t, func() bool { return a.WebSocketHub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServeAndStop(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	a, err := NewApplication(testConfig(), Options{BaseDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Serve(ctx, ln, cancel))

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
	assert.True(t, handler.ContainsMessage("Application shutdown complete"))
	assert.NoError(t, ctx.Err(), "a clean shutdown does not cancel")

	_, err = http.Get("http://" + ln.Addr().String() + "/api/health/live")
	assert.Error(t, err)
}
