// Package apiclient はリモートREST APIのクライアントを提供する。
// すべての呼び出しは<base>/api以下に対して行い、訪問者ごとのCookieを送信する。
// リトライ・タイムアウト・キャッシュは行わない。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/storefront/internal/metrics"
)

// DefaultBaseURL はAPI_BASE_URL未設定時のローカル開発用オリジン。
const DefaultBaseURL = "http://localhost:5000"

// Client はリモートAPIのクライアント。
// httpClientのCookieJarが訪問者の資格情報（Cookie）を保持する。
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾の/apiを含まないオリジン（例: http://localhost:5000）。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, collector metrics.MetricsCollector) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme: %q", u.Scheme)
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    u,
		logger:     logger,
		metrics:    collector,
	}, nil
}

// NewCookieJar は公開サフィックスリストを使ったCookieJarを生成する。
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// BaseURL はAPIのオリジンを返す。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetCookie はAPIオリジン向けのCookieをJarに設定する。
// ブラウザから受け取ったトークンを引き継ぐ際に使用する。
func (c *Client) SetCookie(name, value string) {
	if c.httpClient.Jar == nil {
		return
	}
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  name,
		Value: value,
		Path:  "/",
	}})
}

// CookieValue はJarに保持されたAPIオリジン向けCookieの値を返す。
// 存在しない場合は空文字列を返す。
func (c *Client) CookieValue(name string) string {
	if c.httpClient.Jar == nil {
		return ""
	}
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// ClearCookie はJarからCookieを削除する。
func (c *Client) ClearCookie(name string) {
	if c.httpClient.Jar == nil {
		return
	}
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:   name,
		Path:   "/",
		MaxAge: -1,
	}})
}

// Do はAPIを呼び出し、成功時は応答JSONをoutにデコードする。
// bodyがnilでない場合はJSONにエンコードして送信する。
// エラーは StatusError（HTTPレベル）か TransportError（通信レベル）のいずれか。
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	start := time.Now()
	err := c.do(ctx, method, endpoint, body, out)
	c.metrics.RecordAPIRequest(endpointGroup(endpoint), outcomeOf(err), time.Since(start))
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	// 1. リクエストボディ構築
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	// 2. HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+"/api"+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// 3. HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	// 4. 認証エラーは本文に関わらず一律に扱う
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("APIが認証エラーを返しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Message:    "Unauthorized",
		}
	}

	// 5. その他の2xx以外
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseErrorResponse(resp)
		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	// 6. 成功応答のデコード
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return &TransportError{Err: err}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// errorBody はAPIエラー応答のJSONボディ。
type errorBody struct {
	Message string `json:"message"`
}

// parseErrorResponse は2xx以外の応答をStatusErrorに変換する。
// JSON応答であればサーバーのmessageを採用する。
func parseErrorResponse(resp *http.Response) *StatusError {
	text := statusText(resp)
	se := &StatusError{
		StatusCode: resp.StatusCode,
		Status:     text,
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.Message != "" {
			se.Message = eb.Message
			return se
		}
		se.Message = "API error: " + text
		return se
	}

	se.Message = "API error: " + text + ". Make sure backend server is running."
	return se
}

// statusText は"404 Not Found"からステータスコードを除いた部分を返す。
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// endpointGroup はメトリクス用にエンドポイントの先頭セグメントを返す。
func endpointGroup(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if i := strings.IndexAny(trimmed, "/?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "public" {
		return "catalog"
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

// outcomeOf はエラーをメトリクスの結果分類に変換する。
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case IsUnauthorized(err):
		return metrics.OutcomeUnauthorized
	case IsTransport(err):
		return metrics.OutcomeTransport
	default:
		return metrics.OutcomeDomainError
	}
}

// Get はGETリクエストを送り、応答をTとして返す。
func Get[T any](ctx context.Context, c *Client, endpoint string) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodGet, endpoint, nil, &out)
	return out, err
}

// Post はPOSTリクエストを送り、応答をTとして返す。
func Post[T any](ctx context.Context, c *Client, endpoint string, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPost, endpoint, body, &out)
	return out, err
}

// Put はPUTリクエストを送り、応答をTとして返す。
func Put[T any](ctx context.Context, c *Client, endpoint string, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPut, endpoint, body, &out)
	return out, err
}

// Patch はPATCHリクエストを送り、応答をTとして返す。
func Patch[T any](ctx context.Context, c *Client, endpoint string, body any) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodPatch, endpoint, body, &out)
	return out, err
}

// Delete はDELETEリクエストを送り、応答をTとして返す。
func Delete[T any](ctx context.Context, c *Client, endpoint string) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodDelete, endpoint, nil, &out)
	return out, err
}
