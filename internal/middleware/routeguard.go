package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/storefront/internal/metrics"
)

// ガードによるリダイレクトの理由（メトリクスのラベル）。
const (
	GuardReasonLoginRequired = "login_required"
	GuardReasonAlreadyAuthed = "already_authenticated"
)

// RouteGuardConfig はルートガードの設定。
type RouteGuardConfig struct {
	TokenCookie     string   // 判定に使う認証Cookieの名前
	ProtectedPrefix []string // ログインが必要なパス
	AuthOnlyPrefix  []string // 未ログイン時のみ表示するパス
	LoginPath       string
	HomePath        string
}

// DefaultRouteGuardConfig はデフォルトのルートガード設定を返す。
func DefaultRouteGuardConfig() RouteGuardConfig {
	return RouteGuardConfig{
		TokenCookie:     "token",
		ProtectedPrefix: []string{"/cart", "/checkout", "/orders", "/seller", "/admin"},
		AuthOnlyPrefix:  []string{"/login", "/register"},
		LoginPath:       "/login",
		HomePath:        "/",
	}
}

// NewRouteGuardMiddleware は認証Cookieの有無だけでリダイレクトを判断するミドルウェアを返す。
// Cookieの有効性やロールは検証しない。期限切れのトークンはページ側で401として扱う。
func NewRouteGuardMiddleware(config RouteGuardConfig, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			hasToken := false
			if ck, err := r.Cookie(config.TokenCookie); err == nil && ck.Value != "" {
				hasToken = true
			}

			switch {
			case !hasToken && matchesPrefix(path, config.ProtectedPrefix):
				collector.RecordGuardRedirect(GuardReasonLoginRequired)
				http.Redirect(w, r, LoginRedirectURL(config.LoginPath, path), http.StatusFound)
				return
			case hasToken && matchesPrefix(path, config.AuthOnlyPrefix):
				collector.RecordGuardRedirect(GuardReasonAlreadyAuthed)
				http.Redirect(w, r, config.HomePath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginRedirectURL は元のパスを戻り先として持つログインURLを返す。
func LoginRedirectURL(loginPath, returnTo string) string {
	return loginPath + "?" + url.Values{"redirect": {returnTo}}.Encode()
}

// matchesPrefix はパスがいずれかのプレフィックス配下にあるかを判定する。
// "/cart" は "/cart" と "/cart/..." に一致し、"/cartoon" には一致しない。
func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// SafeRedirectTarget はログイン後の戻り先として安全なパスかを検証し、
// 安全でなければfallbackを返す。同一オリジンの絶対パスのみ許可する。
func SafeRedirectTarget(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
