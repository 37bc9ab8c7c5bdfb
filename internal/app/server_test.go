package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/platfeed/internal/config"
	"github.com/hitoshi/platfeed/internal/database"
)

// newTestServer は到達できないDBに対して遅延接続のままサーバーを組み立てる。
func newTestServer(t *testing.T) *server {
	t.Helper()
	setTestEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := newServer(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(srv.close)
	return srv
}

func TestNewServer_ProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/twitter", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestNewServer_HealthReportsDatabaseFailure(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["connectedClients"] != float64(0) {
		t.Errorf("connectedClients = %v, want 0", body["connectedClients"])
	}
}

func TestNewServer_MetricsRecordHTTPStatus(t *testing.T) {
	srv := newTestServer(t)

	srv.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/twitter", nil))

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		`platfeed_http_status_total{status_code="401"} 1`,
		"platfeed_realtime_connections 0",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output should contain %q", want)
		}
	}
}
