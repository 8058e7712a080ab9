package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/config"
)

// setTestEnv は実行環境に依存しないよう設定用の環境変数を固定する。
func setTestEnv(t *testing.T, apiBaseURL string) {
	t.Helper()
	t.Setenv("API_BASE_URL", apiBaseURL)
	t.Setenv("SERVER_PORT", "0")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SESSION_HYDRATION_DELAY", "0s")
	t.Setenv("VISITOR_IDLE_TTL", "")
	t.Setenv("RATE_LIMIT_GENERAL", "")
	t.Setenv("AUTH_RATE_LIMIT", "")
	t.Setenv("COOKIE_SECURE", "")
	t.Setenv("COOKIE_DOMAIN", "")
}

// restoreDefaultLogger はInitが差し替えたグローバルロガーをテスト後に戻す。
func restoreDefaultLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

// newEmptyAPI は空の商品一覧だけを返すテスト用APIサーバー。
func newEmptyAPI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/public/products":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("[]"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t, "http://localhost:5000")

	var buf bytes.Buffer
	cfg, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil || log == nil {
		t.Fatal("expected non-nil config and logger")
	}
	if cfg.APIBaseURL != "http://localhost:5000" {
		t.Errorf("APIBaseURL = %q, want http://localhost:5000", cfg.APIBaseURL)
	}

	// Verify that slog global logger is configured for JSON output
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t, "http://localhost:5000")
	t.Setenv("LOG_LEVEL", "error")

	var buf bytes.Buffer
	if _, _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Warn("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("LOG_LEVEL=error ではWarnを出力しないべき: %s", buf.String())
	}
}

func TestInit_WithInvalidAPIBaseURL_ReturnsError(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t, "not-a-url")

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for invalid API_BASE_URL, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
	if !strings.Contains(buf.String(), "failed to load config") {
		t.Error("設定の読み込み失敗はログに残すべき")
	}
}

func testConfig(apiBaseURL string) *config.Config {
	return &config.Config{
		APIBaseURL:     apiBaseURL,
		ServerPort:     "0",
		VisitorIdleTTL: time.Minute,
	}
}

func TestBuild_ServesHealthAndMetrics(t *testing.T) {
	api := newEmptyAPI(t)
	srv, err := Build(testConfig(api.URL), slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}
	t.Cleanup(srv.Close)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", w.Code)
	}

	// トップページを1回表示してからメトリクスを確認する
	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if srv.Registry.Len() != 1 {
		t.Errorf("active visitors = %d, want 1", srv.Registry.Len())
	}

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"storefront_api_requests_total", "storefront_active_visitors 1"} {
		if !strings.Contains(body, name) {
			t.Errorf("メトリクス %q が公開されるべき", name)
		}
	}
}

func TestBuild_GuardsProtectedPages(t *testing.T) {
	api := newEmptyAPI(t)
	srv, err := Build(testConfig(api.URL), slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Build がエラーを返した: %v", err)
	}
	t.Cleanup(srv.Close)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?redirect=%2Fadmin" {
		t.Errorf("Location = %q", got)
	}
	if srv.Registry.Len() != 0 {
		t.Error("ガードで弾かれたリクエストは訪問者を生成しないべき")
	}
}
