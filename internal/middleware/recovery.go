package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hitoshi/storefront/internal/storefront"
)

// NewRecoveryMiddleware はページ描画中のpanicを回復し、500を返すミドルウェアを生成する。
// 訪問者Cookieがあればvisitor_idとしてログに残す。http.ErrAbortHandlerは再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []slog.Attr{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				if ck, err := r.Cookie(storefront.VisitorCookie); err == nil {
					attrs = append(attrs, slog.String("visitor_id", ck.Value))
				}
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered", attrs...)

				WriteInternalServerError(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
