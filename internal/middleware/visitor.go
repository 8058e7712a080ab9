// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storefront"
)

// visitorCookieMaxAge は訪問者Cookieの有効期間（秒）。
const visitorCookieMaxAge = 30 * 24 * 60 * 60

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// visitorContextKey はリクエストコンテキストに訪問者のContextを格納するためのキー。
	visitorContextKey = contextKey("visitor")
	// csrfContextKey はリクエストコンテキストにCSRFトークンを格納するためのキー。
	csrfContextKey = contextKey("csrf_token")
	// carrierContextKey はロギングミドルウェアが訪問者を受け取るためのキー。
	carrierContextKey = contextKey("visitor_carrier")
)

// visitorCarrier は内側のミドルウェアで識別した訪問者を外側に伝える。
type visitorCarrier struct {
	visitor *storefront.Context
}

func withVisitorCarrier(ctx context.Context, p *visitorCarrier) context.Context {
	return context.WithValue(ctx, carrierContextKey, p)
}

// VisitorRegistry は訪問者IDからContextを得るためのインターフェース。
// storefront.Registryが満たす。
type VisitorRegistry interface {
	Acquire(visitorID, token string) (*storefront.Context, bool, error)
}

// CookieConfig はこのサーバーが発行するCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewVisitorMiddleware は訪問者Cookieから訪問者を識別し、そのContextをリクエストに注入する。
// Cookieがなければ新しい訪問者IDを発行する。
// ブラウザのtoken CookieはContextのCookieJarに反映し、初回のセッション確認の完了を待つ。
func NewVisitorMiddleware(registry VisitorRegistry, config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 訪問者IDの取得または発行
			visitorID := ""
			if ck, err := r.Cookie(storefront.VisitorCookie); err == nil {
				if _, perr := uuid.Parse(ck.Value); perr == nil {
					visitorID = ck.Value
				}
			}
			if visitorID == "" {
				visitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     storefront.VisitorCookie,
					Value:    visitorID,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   visitorCookieMaxAge,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// 2. Contextの取得と認証Cookieの同期
			token := ""
			if ck, err := r.Cookie(storefront.TokenCookie); err == nil {
				token = ck.Value
			}
			sc, created, err := registry.Acquire(visitorID, token)
			if err != nil {
				slog.Error("failed to acquire visitor context",
					slog.String("visitor_id", visitorID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w, r)
				return
			}
			if !created {
				sc.SyncToken(r.Context(), token)
			}
			if p, ok := r.Context().Value(carrierContextKey).(*visitorCarrier); ok {
				p.visitor = sc
			}

			// 3. 初回のセッション確認を待つ
			if err := sc.Session.Wait(r.Context()); err != nil {
				return
			}

			ctx := context.WithValue(r.Context(), visitorContextKey, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VisitorFromContext はリクエストコンテキストから訪問者のContextを取得する。
// 訪問者ミドルウェアを通過したリクエストでのみ有効。
func VisitorFromContext(ctx context.Context) (*storefront.Context, error) {
	sc, ok := ctx.Value(visitorContextKey).(*storefront.Context)
	if !ok || sc == nil {
		return nil, fmt.Errorf("visitor context not found")
	}
	return sc, nil
}

// ContextWithVisitor はコンテキストに訪問者のContextを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithVisitor(ctx context.Context, sc *storefront.Context) context.Context {
	return context.WithValue(ctx, visitorContextKey, sc)
}

// CurrentUser はリクエストの訪問者のログインユーザーを返す。未ログインの場合はnil。
func CurrentUser(ctx context.Context) *model.User {
	sc, err := VisitorFromContext(ctx)
	if err != nil {
		return nil
	}
	return sc.Session.User()
}
