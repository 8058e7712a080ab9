// Package handler はブラウザ向けのHTMLページを返すHTTPハンドラーを提供する。
//
// 各ハンドラーはリクエストコンテキストに注入された訪問者のContextを通じて
// リモートAPIを呼び出し、結果をhtml/templateで描画する。
// 状態変更はPOST→リダイレクト（303）で行い、結果はトーストで通知する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/storefront"
)

// Config はページハンドラーの設定。
type Config struct {
	CookieSecure bool
	CookieDomain string
}

// Handler は全ページのハンドラーをまとめたもの。
type Handler struct {
	pages     *Renderer
	sanitizer security.ContentSanitizerService
	config    Config
	logger    *slog.Logger
}

// NewHandler はHandlerを生成する。テンプレートの解析に失敗した場合はエラーを返す。
func NewHandler(config Config, logger *slog.Logger) (*Handler, error) {
	pages, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Handler{
		pages:     pages,
		sanitizer: security.NewContentSanitizer(),
		config:    config,
		logger:    logger,
	}, nil
}

// visitor はリクエストの訪問者Contextを返す。
// 訪問者ミドルウェアを通っていない場合は500を書き込んでfalseを返す。
func (h *Handler) visitor(w http.ResponseWriter, r *http.Request) (*storefront.Context, bool) {
	sc, err := middleware.VisitorFromContext(r.Context())
	if err != nil {
		h.logger.Error("visitor context missing", slog.String("path", r.URL.Path))
		middleware.WriteInternalServerError(w, r)
		return nil, false
	}
	return sc, true
}

// requireRole はログイン済みかつ指定ロールのいずれかを持つユーザーを返す。
// 未ログインの場合はログイン画面へ、ロールが足りない場合は403ページを描画してfalseを返す。
func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, sc *storefront.Context, roles ...model.Role) (*model.User, bool) {
	user := sc.Session.User()
	if user == nil {
		h.redirectToLogin(w, r, sc)
		return nil, false
	}
	if !slices.Contains(roles, user.Role) {
		h.renderError(w, r, http.StatusForbidden, model.NewForbiddenError())
		return nil, false
	}
	return user, true
}

// redirectToLogin はローカルの認証状態を破棄し、ログイン画面へリダイレクトする。
// ブラウザのtoken Cookieも消すため、ルートガードによるループは起きない。
func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, sc *storefront.Context) {
	sc.Invalidate()
	h.clearTokenCookie(w)

	returnTo := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		returnTo = middleware.SafeRedirectTarget(r.PostFormValue("return"), "/")
	}
	http.Redirect(w, r, middleware.LoginRedirectURL("/login", returnTo), http.StatusSeeOther)
}

// pageError はページ表示（GET）中のAPIエラーを画面に反映する。
// 401はログイン画面へ、到達不能はバックエンド停止の案内、404は未検出ページを描画する。
func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, sc *storefront.Context, err error, what string) {
	switch {
	case sessionExpired(err):
		h.redirectToLogin(w, r, sc)
	case apiclient.IsUnauthorized(err):
		h.renderError(w, r, http.StatusForbidden, model.NewForbiddenError())
	case apiclient.IsTransport(err):
		h.renderError(w, r, http.StatusBadGateway, model.NewBackendUnreachableError())
	case apiclient.StatusCode(err) == http.StatusNotFound:
		h.renderError(w, r, http.StatusNotFound, model.NewNotFoundError(what))
	default:
		h.renderError(w, r, http.StatusBadGateway, model.NewOperationFailedError("load "+what, err.Error()))
	}
}

// actionError は状態変更（POST）中のエラーをトーストで通知し、backへリダイレクトする。
// 401の場合はログイン画面へリダイレクトする。
func (h *Handler) actionError(w http.ResponseWriter, r *http.Request, sc *storefront.Context, err error, op, back string) {
	if sessionExpired(err) {
		h.redirectToLogin(w, r, sc)
		return
	}
	sc.Toasts.Error(uiErrorFor(err, op).Message)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// uiErrorFor はエラーを画面表示用のUIErrorに変換する。
func uiErrorFor(err error, op string) *model.UIError {
	var uiErr *model.UIError
	switch {
	case errors.As(err, &uiErr):
		return uiErr
	case apiclient.IsTransport(err):
		return model.NewBackendUnreachableError()
	case sessionExpired(err):
		return model.NewUnauthorizedError()
	case apiclient.IsUnauthorized(err):
		return model.NewForbiddenError()
	default:
		return model.NewOperationFailedError(op, err.Error())
	}
}

// sessionExpired はAPIが401を返したかを返す。ローカルの認証状態を破棄するのは401のみで、403は権限不足として扱う。
func sessionExpired(err error) bool {
	return apiclient.StatusCode(err) == http.StatusUnauthorized
}

// returnTarget はフォームのreturnフィールドを安全な戻り先として返す。
func returnTarget(r *http.Request, fallback string) string {
	return middleware.SafeRedirectTarget(r.PostFormValue("return"), fallback)
}

// setTokenCookie はAPIサーバーが発行した認証トークンをブラウザにも設定する。
// ルートガードはこのCookieの有無だけで判定する。
func (h *Handler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     storefront.TokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookie はブラウザの認証Cookieを削除する。
func (h *Handler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     storefront.TokenCookie,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
