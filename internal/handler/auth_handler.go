package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
	"github.com/hitoshi/storefront/internal/storefront"
)

// minPasswordLength は会員登録時のパスワードの最小文字数。
const minPasswordLength = 6

// authPage はログイン・会員登録画面の描画データ。
type authPage struct {
	Name     string
	Email    string
	Redirect string
	Error    string
}

// LoginForm はログイン画面を描画する。
// GET /login?redirect=/cart
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", "Login", authPage{
		Redirect: middleware.SafeRedirectTarget(r.URL.Query().Get("redirect"), ""),
	})
}

// Login はログインを行い、成功時は元のページ（なければトップ）へリダイレクトする。
// POST /login (email, password, redirect)
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	// 1. 入力の検証
	page := authPage{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Redirect: middleware.SafeRedirectTarget(r.PostFormValue("redirect"), ""),
	}
	password := r.PostFormValue("password")
	if page.Email == "" || password == "" {
		page.Error = "Email and password are required"
		h.render(w, r, http.StatusUnprocessableEntity, "login", "Login", page)
		return
	}

	// 2. ログイン
	user, err := sc.Session.Login(r.Context(), page.Email, password)
	if err != nil {
		page.Error = authErrorMessage(err)
		h.render(w, r, authErrorStatus(err), "login", "Login", page)
		return
	}

	// 3. 認証Cookieをブラウザに反映してリダイレクト
	h.completeSignIn(w, r, sc, user, "Welcome back, "+user.Name+"!", page.Redirect)
}

// RegisterForm は会員登録画面を描画する。
// GET /register
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", "Register", authPage{
		Redirect: middleware.SafeRedirectTarget(r.URL.Query().Get("redirect"), ""),
	})
}

// Register は会員登録を行い、そのままログイン状態にする。
// POST /register (name, email, password, confirmPassword, redirect)
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	// 1. 入力の検証
	page := authPage{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Redirect: middleware.SafeRedirectTarget(r.PostFormValue("redirect"), ""),
	}
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirmPassword")
	switch {
	case page.Name == "" || page.Email == "" || password == "" || confirm == "":
		page.Error = "All fields are required"
	case password != confirm:
		page.Error = "Passwords do not match"
	case len(password) < minPasswordLength:
		page.Error = "Password must be at least 6 characters"
	}
	if page.Error != "" {
		h.render(w, r, http.StatusUnprocessableEntity, "register", "Register", page)
		return
	}

	// 2. 会員登録
	user, err := sc.Session.Register(r.Context(), page.Name, page.Email, password)
	if err != nil {
		page.Error = authErrorMessage(err)
		h.render(w, r, authErrorStatus(err), "register", "Register", page)
		return
	}

	h.completeSignIn(w, r, sc, user, "Welcome, "+user.Name+"!", page.Redirect)
}

// Logout はログアウトし、ブラウザの認証Cookieを削除する。
// サーバー側のログアウトに失敗してもローカルの状態は破棄する。
// POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	if err := sc.SignOut(r.Context()); err != nil {
		h.logger.Warn("server logout failed",
			slog.String("visitor_id", sc.VisitorID),
			slog.String("error", err.Error()),
		)
	}
	h.clearTokenCookie(w)

	sc.Toasts.Info("You have been logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// completeSignIn はCookieJarの認証トークンをブラウザに設定し、戻り先へリダイレクトする。
func (h *Handler) completeSignIn(w http.ResponseWriter, r *http.Request, sc *storefront.Context, user *model.User, message, redirect string) {
	if token := sc.Token(); token != "" {
		h.setTokenCookie(w, token)
	} else {
		h.logger.Warn("authentication succeeded without a token cookie",
			slog.String("visitor_id", sc.VisitorID),
			slog.String("user_id", user.ID),
		)
	}

	sc.Toasts.Success(message)
	if redirect == "" {
		redirect = "/"
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// authErrorMessage はログイン・会員登録のエラーを表示用メッセージに変換する。
func authErrorMessage(err error) string {
	var authErr *session.AuthError
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return "You were signed out while signing in. Please try again."
	case errors.As(err, &authErr):
		return authErr.Message
	default:
		return err.Error()
	}
}

func authErrorStatus(err error) int {
	switch {
	case apiclient.IsTransport(err):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusUnauthorized
	}
}
