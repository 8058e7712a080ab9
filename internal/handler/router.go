package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Registry    middleware.VisitorRegistry
	RateLimiter *middleware.RateLimiter
	Metrics     metrics.MetricsCollector
	Cookie      middleware.CookieConfig

	// MetricsHandler は /metrics で公開するハンドラー。nilの場合は公開しない。
	MetricsHandler http.Handler

	Handler *Handler
}

// NewRouter は全ページのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders
//	  → RouteGuard → RateLimit(General) → Visitor → CSRF
//
// /health と /metrics は訪問者を生成しないようチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	h := deps.Handler

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookie.Secure))

	// --- 訪問者を必要としないルート ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 画面 ---
	// ミドルウェアスタック: RouteGuard → RateLimit(General) → Visitor → CSRF
	// レート制限を訪問者より先に置き、拒否したリクエストで訪問者を生成しない
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRouteGuardMiddleware(middleware.DefaultRouteGuardConfig(), deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewVisitorMiddleware(deps.Registry, deps.Cookie))
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.Cookie.Secure,
			CookieDomain: deps.Cookie.Domain,
		}))

		// カタログ
		r.Get("/", h.Home)
		r.Get("/products/{id}", h.Product)
		r.Get("/shops/{sellerId}", h.Shop)

		// 認証（送信のみIP単位のレート制限を追加）
		r.Get("/login", h.LoginForm)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", h.Login)
		r.Get("/register", h.RegisterForm)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", h.Register)
		r.Post("/logout", h.Logout)

		// トースト
		r.Post("/toasts/{id}/dismiss", h.DismissToast)

		// カート・チェックアウト・注文履歴
		r.Get("/cart", h.Cart)
		r.Route("/cart/items", func(r chi.Router) {
			r.Get("/", h.CartItemsRedirect)
			r.Post("/", h.AddCartItem)
			r.Post("/{id}/remove", h.RemoveCartItem)
		})
		r.Post("/cart/clear", h.ClearCart)
		r.Get("/checkout", h.CheckoutForm)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders", h.Orders)

		// 出品者
		r.Route("/seller", func(r chi.Router) {
			r.Get("/", h.SellerDashboard)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.SellerProducts)
				r.Post("/", h.SellerCreateProduct)
				r.Get("/new", h.SellerNewProductForm)
				r.Post("/{id}", h.SellerUpdateProduct)
				r.Get("/{id}/edit", h.SellerEditProductForm)
				r.Post("/{id}/delete", h.SellerDeleteProduct)
			})
		})

		// 管理者
		r.Route("/admin", func(r chi.Router) {
			r.Get("/", h.AdminDashboard)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.AdminProducts)
				r.Post("/{id}/approve", h.AdminApproveProduct)
				r.Post("/{id}/delete", h.AdminDeleteProduct)
			})
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.AdminUsers)
				r.Get("/{id}", h.AdminUser)
				r.Post("/{id}/role", h.AdminUpdateUserRole)
				r.Post("/{id}/delete", h.AdminDeleteUser)
			})
		})

		r.NotFound(h.NotFound)
	})

	return r
}
