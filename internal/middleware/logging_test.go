package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// serveLogged はハンドラーをログミドルウェア越しに実行し、出力された1行を返す。
func serveLogged(t *testing.T, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewLoggingMiddleware(logger)(h).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	entry := serveLogged(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}), httptest.NewRequest(http.MethodGet, "/products/p1", nil))

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["method"] != "GET" || entry["path"] != "/products/p1" {
		t.Errorf("method/path = %v %v", entry["method"], entry["path"])
	}
	// WriteHeaderを呼ばずにWriteすると200として記録される
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if entry["bytes"] != float64(5) {
		t.Errorf("bytes = %v, want 5", entry["bytes"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v", entry["duration_ms"])
	}
	if _, ok := entry["location"]; ok {
		t.Error("リダイレクト以外ではlocationを出力しないべき")
	}
}

func TestLoggingMiddleware_EmptyResponseIs200(t *testing.T) {
	entry := serveLogged(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		httptest.NewRequest(http.MethodGet, "/health", nil))

	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusSeeOther, "INFO"},
		{http.StatusUnprocessableEntity, "WARN"},
		{http.StatusForbidden, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			entry := serveLogged(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}), httptest.NewRequest(http.MethodGet, "/cart", nil))

			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
		})
	}
}

func TestLoggingMiddleware_RecordsRedirectLocation(t *testing.T) {
	entry := serveLogged(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
	}), httptest.NewRequest(http.MethodPost, "/cart/clear", nil))

	if entry["location"] != "/cart" {
		t.Errorf("location = %v, want /cart", entry["location"])
	}
}

func TestLoggingMiddleware_RecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products/p1", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["route"] != "/products/{id}" {
		t.Errorf("route = %v, want /products/{id}", entry["route"])
	}
	if entry["path"] != "/products/p1" {
		t.Errorf("path = %v", entry["path"])
	}
}

func TestLoggingMiddleware_IncludesVisitorID(t *testing.T) {
	sc := newTestVisitor(t, "visitor-123")

	// 訪問者ミドルウェアの代わりにプローブへ直接設定する
	entry := serveLogged(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := r.Context().Value(carrierContextKey).(*visitorCarrier); ok {
			p.visitor = sc
		}
	}), httptest.NewRequest(http.MethodGet, "/cart", nil))

	if entry["visitor_id"] != "visitor-123" {
		t.Errorf("visitor_id = %v, want visitor-123", entry["visitor_id"])
	}
	// 未ログインのためuser_idは含まれない
	if val, ok := entry["user_id"]; ok {
		t.Errorf("user_id should be omitted for anonymous visitor, got %v", val)
	}
}

func TestLoggingMiddleware_NoVisitor_OmitsField(t *testing.T) {
	entry := serveLogged(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		httptest.NewRequest(http.MethodGet, "/health", nil))

	if val, ok := entry["visitor_id"]; ok {
		t.Errorf("visitor_id should be omitted, got %v", val)
	}
}
