package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storefront"
	"github.com/hitoshi/storefront/internal/toast"
)

// テスト用の認証トークン。
const (
	aliceToken  = "tok-alice"
	sellerToken = "tok-seller"
	adminToken  = "tok-admin"
)

// --- テスト用APIサーバー ---

// fakeAPI はハンドラーテスト用のAPIサーバー。状態はミューテックスで保護する。
type fakeAPI struct {
	mu sync.Mutex

	users    map[string]model.User // token → user
	products []model.AdminProduct
	cart     model.Cart

	lastProductQuery url.Values
	checkouts        []json.RawMessage
	orders           []model.Order
	created          []model.ProductInput
	approved         []string
	roleUpdates      map[string]model.Role
	failCheckout     bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: map[string]model.User{
			aliceToken:  {ID: "u1", Name: "Alice", Email: "alice@example.com", Role: model.RoleUser},
			sellerToken: {ID: "s1", Name: "Sam", Email: "sam@example.com", Role: model.RoleSeller},
			adminToken:  {ID: "a1", Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin},
		},
		products: []model.AdminProduct{
			{
				Product: model.Product{
					ID: "p1", Name: "Laptop", Price: 999.99, Stock: 5, Category: "Electronics", SellerID: "s1",
					Description: `<p>Fast</p><script>alert(1)</script>`,
					Image:       "javascript:alert(1)",
				},
				Approved: true,
				Seller:   model.SellerRef{ID: "s1", Name: "Sam"},
			},
			{
				Product:  model.Product{ID: "p2", Name: "T-Shirt", Price: 19.99, Stock: 0, Category: "Clothing", SellerID: "s1"},
				Approved: false,
				Seller:   model.SellerRef{ID: "s1", Name: "Sam"},
			},
		},
		roleUpdates: make(map[string]model.Role),
	}
}

// expire はトークンを失効させる。以降の呼び出しは401になる。
func (f *fakeAPI) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, token)
}

// demote はトークンのユーザーを一般ユーザーに変更する。
func (f *fakeAPI) demote(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[token]
	u.Role = model.RoleUser
	f.users[token] = u
}

func (f *fakeAPI) setCart(items ...model.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cart = model.Cart{Items: items}
	f.recalcLocked()
}

func (f *fakeAPI) recalcLocked() {
	f.cart.Total = 0
	for _, it := range f.cart.Items {
		f.cart.Total += it.Subtotal()
	}
}

func (f *fakeAPI) userFor(r *http.Request) (model.User, bool) {
	ck, err := r.Cookie(storefront.TokenCookie)
	if err != nil {
		return model.User{}, false
	}
	u, ok := f.users[ck.Value]
	return u, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api")
	user, authed := f.userFor(r)

	// 認証不要のエンドポイント
	switch {
	case r.Method == http.MethodPost && path == "/auth/login":
		var body struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&body)
		for token, u := range f.users {
			if u.Email == body.Email && body.Password == "secret1" {
				http.SetCookie(w, &http.Cookie{Name: storefront.TokenCookie, Value: token, Path: "/"})
				writeJSON(w, http.StatusOK, u)
				return
			}
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	case r.Method == http.MethodPost && path == "/auth/register":
		var body struct{ Name, Email, Password string }
		json.NewDecoder(r.Body).Decode(&body)
		u := model.User{ID: "u-new", Name: body.Name, Email: body.Email, Role: model.RoleUser}
		f.users["tok-new"] = u
		http.SetCookie(w, &http.Cookie{Name: storefront.TokenCookie, Value: "tok-new", Path: "/"})
		writeJSON(w, http.StatusCreated, u)
		return
	case r.Method == http.MethodPost && path == "/auth/logout":
		http.SetCookie(w, &http.Cookie{Name: storefront.TokenCookie, Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		return
	case r.Method == http.MethodGet && path == "/public/products":
		f.lastProductQuery = r.URL.Query()
		var out []model.Product
		for _, p := range f.products {
			if p.Approved {
				out = append(out, p.Product)
			}
		}
		writeJSON(w, http.StatusOK, out)
		return
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/public/products/"):
		id := strings.TrimPrefix(path, "/public/products/")
		for _, p := range f.products {
			if p.ID == id {
				writeJSON(w, http.StatusOK, p.Product)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
		return
	}

	if !authed {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	switch {
	case r.Method == http.MethodGet && path == "/auth/me":
		writeJSON(w, http.StatusOK, user)

	case r.Method == http.MethodGet && path == "/cart":
		writeJSON(w, http.StatusOK, f.cart)
	case r.Method == http.MethodPost && path == "/cart/add", r.Method == http.MethodPut && path == "/cart/update":
		var req model.CartItemRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.upsertCartLocked(req)
		writeJSON(w, http.StatusOK, f.cart)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/cart/remove/"):
		id := strings.TrimPrefix(path, "/cart/remove/")
		var items []model.CartItem
		for _, it := range f.cart.Items {
			if it.ProductID != id {
				items = append(items, it)
			}
		}
		f.cart.Items = items
		f.recalcLocked()
		writeJSON(w, http.StatusOK, f.cart)
	case r.Method == http.MethodDelete && path == "/cart/clear":
		f.cart = model.Cart{}
		writeJSON(w, http.StatusOK, f.cart)

	case r.Method == http.MethodPost && path == "/orders/checkout":
		if f.failCheckout {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient stock"})
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.checkouts = append(f.checkouts, body)
		order := model.Order{
			ID:        fmt.Sprintf("o%d", len(f.orders)+1),
			Items:     f.cart.Items,
			Total:     f.cart.Total,
			Status:    "pending",
			CreatedAt: time.Date(2026, 1, 1, 0, len(f.orders), 0, 0, time.UTC),
		}
		f.orders = append(f.orders, order)
		f.cart = model.Cart{}
		writeJSON(w, http.StatusCreated, order)
	case r.Method == http.MethodGet && path == "/orders":
		writeJSON(w, http.StatusOK, f.orders)

	case strings.HasPrefix(path, "/admin/"):
		if user.Role != model.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
			return
		}
		f.serveAdminLocked(w, r, path)

	case strings.HasPrefix(path, "/seller/"):
		if user.Role != model.RoleSeller && user.Role != model.RoleAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
			return
		}
		f.serveSellerLocked(w, r, path)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	}
}

func (f *fakeAPI) upsertCartLocked(req model.CartItemRequest) {
	for i, it := range f.cart.Items {
		if it.ProductID == req.ProductID {
			f.cart.Items[i].Quantity = req.Quantity
			f.recalcLocked()
			return
		}
	}
	for _, p := range f.products {
		if p.ID == req.ProductID {
			f.cart.Items = append(f.cart.Items, model.CartItem{
				ProductID: p.ID, ProductName: p.Name, Price: p.Price, Quantity: req.Quantity,
			})
		}
	}
	f.recalcLocked()
}

func (f *fakeAPI) serveAdminLocked(w http.ResponseWriter, r *http.Request, path string) {
	switch {
	case r.Method == http.MethodGet && path == "/admin/stats":
		writeJSON(w, http.StatusOK, model.AdminStats{TotalUsers: len(f.users), TotalProducts: len(f.products), PendingApprovals: 1})
	case r.Method == http.MethodGet && path == "/admin/users":
		var out []model.UserSummary
		for _, u := range f.users {
			out = append(out, model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
		}
		writeJSON(w, http.StatusOK, out)
	case r.Method == http.MethodGet && path == "/admin/products":
		var out []model.AdminProduct
		approved := r.URL.Query().Get("approved")
		for _, p := range f.products {
			if approved == "" || (approved == "true") == p.Approved {
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	case r.Method == http.MethodPatch && strings.HasSuffix(path, "/approve"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/admin/products/"), "/approve")
		f.approved = append(f.approved, id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	case r.Method == http.MethodPatch && strings.HasSuffix(path, "/role"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/admin/users/"), "/role")
		var body struct{ Role model.Role }
		json.NewDecoder(r.Body).Decode(&body)
		f.roleUpdates[id] = body.Role
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	}
}

func (f *fakeAPI) serveSellerLocked(w http.ResponseWriter, r *http.Request, path string) {
	switch {
	case r.Method == http.MethodGet && path == "/seller/stats":
		writeJSON(w, http.StatusOK, model.SellerStats{TotalProducts: len(f.products), ApprovedProducts: 1, PendingProducts: 1})
	case r.Method == http.MethodGet && path == "/seller/products":
		writeJSON(w, http.StatusOK, f.products)
	case r.Method == http.MethodPost && path == "/seller/products":
		var in model.ProductInput
		json.NewDecoder(r.Body).Decode(&in)
		f.created = append(f.created, in)
		writeJSON(w, http.StatusCreated, model.AdminProduct{Product: model.Product{ID: "p-new", Name: in.Name}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	}
}

// --- テスト環境 ---

// testEnv はテスト用APIサーバーにつながったルーター一式。
type testEnv struct {
	api      *fakeAPI
	registry *storefront.Registry
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLimits(t, middleware.DefaultRateLimiterConfig())
}

// newTestEnvWithLimits はレート制限の設定を指定してテスト環境を作る。
func newTestEnvWithLimits(t *testing.T, limits middleware.RateLimiterConfig) *testEnv {
	t.Helper()
	api := newFakeAPI()
	backend := httptest.NewServer(api)
	t.Cleanup(backend.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	registry := storefront.NewRegistry(storefront.RegistryConfig{IdleTTL: time.Minute}, storefront.Options{
		BaseURL: backend.URL,
		Logger:  logger,
	})
	t.Cleanup(registry.Stop)

	rl := middleware.NewRateLimiter(limits)
	t.Cleanup(rl.Stop)

	h, err := NewHandler(Config{}, logger)
	if err != nil {
		t.Fatalf("NewHandler がエラーを返した: %v", err)
	}

	router := NewRouter(&RouterDeps{
		Logger:      logger,
		Registry:    registry,
		RateLimiter: rl,
		Handler:     h,
	})
	return &testEnv{api: api, registry: registry, router: router}
}

// browser はCookieを保持してルーターにリクエストを送るテスト用クライアント。
type browser struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]string
}

// newBrowser はtokenでログイン済みのブラウザを返す。tokenが空の場合は未ログイン。
// トップページを1回開いて訪問者CookieとCSRF Cookieを受け取る。
func (e *testEnv) newBrowser(t *testing.T, token string) *browser {
	t.Helper()
	b := &browser{t: t, env: e, cookies: make(map[string]string)}
	if token != "" {
		b.cookies[storefront.TokenCookie] = token
	}
	if w := b.get("/"); w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", w.Code)
	}
	return b
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	w := httptest.NewRecorder()
	b.env.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
		} else {
			b.cookies[c.Name] = c.Value
		}
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// post はフォームを送信する。CSRFトークンは自動で付与する。
func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if _, ok := form[middleware.CSRFFormField]; !ok {
		form.Set(middleware.CSRFFormField, b.cookies["csrf_token"])
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// visitor はブラウザに対応する訪問者Contextを返す。
func (b *browser) visitor() *storefront.Context {
	b.t.Helper()
	sc, ok := b.env.registry.Get(b.cookies[storefront.VisitorCookie])
	if !ok {
		b.t.Fatal("訪問者Contextが存在するべき")
	}
	return sc
}

// hasToast は指定種別・メッセージのトーストが表示中かを返す。
func (b *browser) hasToast(typ toast.Type, message string) bool {
	for _, item := range b.visitor().Toasts.List() {
		if item.Type == typ && item.Message == message {
			return true
		}
	}
	return false
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if w.Code != http.StatusSeeOther && w.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect (body: %s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

// --- 共通ヘルパーのテスト ---

func TestSessionExpired_OnlyFor401(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, adminToken)

	// ローカルでは管理者だがAPIは403を返す（権限を剥奪された）場合もログイン状態は維持する
	env.api.demote(adminToken)
	w := b.get("/admin")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if b.visitor().Session.User() == nil {
		t.Error("403ではログイン状態を破棄しないべき")
	}
	if _, ok := b.cookies[storefront.TokenCookie]; !ok {
		t.Error("403ではtoken Cookieを削除しないべき")
	}
}

func TestExpiredSession_RedirectsToLoginAndClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, aliceToken)
	env.api.expire(aliceToken)

	w := b.get("/cart")

	assertRedirect(t, w, "/login?redirect=%2Fcart")
	if _, ok := b.cookies[storefront.TokenCookie]; ok {
		t.Error("401の場合はブラウザのtoken Cookieを削除するべき")
	}
	if b.visitor().Session.User() != nil {
		t.Error("401の場合はローカルのログイン状態を破棄するべき")
	}

	// Cookieが消えているのでログイン画面はループせずに表示される
	if w := b.get("/login?redirect=%2Fcart"); w.Code != http.StatusOK {
		t.Errorf("GET /login status = %d, want 200", w.Code)
	}
}

func TestDismissToast(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")
	id := b.visitor().Toasts.Info("hello")

	w := b.post("/toasts/"+id+"/dismiss", url.Values{"return": {"/products/p1"}})

	assertRedirect(t, w, "/products/p1")
	if len(b.visitor().Toasts.List()) != 0 {
		t.Error("トーストが削除されるべき")
	}
}

func TestDismissToast_RejectsExternalReturn(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")
	id := b.visitor().Toasts.Info("hello")

	w := b.post("/toasts/"+id+"/dismiss", url.Values{"return": {"https://evil.example.com/"}})

	assertRedirect(t, w, "/")
}
