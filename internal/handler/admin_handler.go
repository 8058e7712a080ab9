package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/model"
)

// dashboardPreviewSize はダッシュボードに表示する承認待ち商品の件数。
const dashboardPreviewSize = 5

// adminDashboardPage は管理ダッシュボードの描画データ。
type adminDashboardPage struct {
	Stats       model.AdminStats
	Pending     []model.AdminProduct
	RecentUsers []model.UserSummary
}

// adminProductsPage は管理画面の商品一覧の描画データ。
type adminProductsPage struct {
	Search   string
	Approval model.ApprovalFilter
	Products []model.AdminProduct
	Pager    Pager
	Return   string
}

// adminUsersPage は管理画面のユーザー一覧の描画データ。
type adminUsersPage struct {
	Search string
	Users  []model.UserSummary
}

// adminUserPage は管理画面のユーザー詳細の描画データ。
type adminUserPage struct {
	User   model.UserDetail
	Return string
}

// AdminDashboard は集計・承認待ち商品・ユーザーを並行に取得して描画する。
// GET /admin
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}

	var page adminDashboardPage
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		stats, err := sc.API.AdminStats(ctx)
		page.Stats = stats
		return err
	})
	g.Go(func() error {
		pending, err := sc.API.AdminListProducts(ctx, model.ApprovalPending)
		page.Pending = pending[:min(len(pending), dashboardPreviewSize)]
		return err
	})
	g.Go(func() error {
		users, err := sc.API.AdminListUsers(ctx)
		page.RecentUsers = users[:min(len(users), dashboardPreviewSize)]
		return err
	})
	if err := g.Wait(); err != nil {
		h.pageError(w, r, sc, err, "dashboard")
		return
	}

	h.render(w, r, http.StatusOK, "admin_dashboard", "Admin Dashboard", page)
}

// AdminProducts は承認状態（サーバー側）と検索語（ローカル）で絞り込んだ商品一覧を描画する。
// GET /admin/products?status=all|pending|approved&q=&page=
func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}
	query := r.URL.Query()

	// 1. 承認状態でサーバー側を絞り込んで取得
	filter := catalog.AdminFilter{
		Search:   strings.TrimSpace(query.Get("q")),
		Approval: model.ParseApprovalFilter(query.Get("status")),
	}
	products, err := sc.API.AdminListProducts(r.Context(), filter.Approval)
	if err != nil {
		h.pageError(w, r, sc, err, "products")
		return
	}

	// 2. 検索語で絞り込み、ページング
	state := sc.AdminProducts.Apply(products, filter, pageParam(query))

	query.Del("page")
	h.render(w, r, http.StatusOK, "admin_products", "Manage Products", adminProductsPage{
		Search:   filter.Search,
		Approval: filter.Approval,
		Products: state.Items,
		Pager:    newPager(state, "/admin/products", query),
		Return:   r.URL.RequestURI(),
	})
}

// AdminApproveProduct は商品を承認する。
// POST /admin/products/{id}/approve
func (h *Handler) AdminApproveProduct(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}
	back := returnTarget(r, "/admin/products")

	if err := sc.API.AdminApproveProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.actionError(w, r, sc, err, "approve product", back)
		return
	}

	sc.Toasts.Success("Product approved")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// AdminDeleteProduct は商品を削除する。
// POST /admin/products/{id}/delete
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}
	back := returnTarget(r, "/admin/products")

	if err := sc.API.AdminDeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.actionError(w, r, sc, err, "delete product", back)
		return
	}

	sc.Toasts.Success("Product deleted")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// AdminUsers はユーザー一覧を描画する。qで名前またはメールアドレスを絞り込む。
// GET /admin/users?q=
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}

	users, err := sc.API.AdminListUsers(r.Context())
	if err != nil {
		h.pageError(w, r, sc, err, "users")
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("q"))
	h.render(w, r, http.StatusOK, "admin_users", "Manage Users", adminUsersPage{
		Search: search,
		Users:  filterUsers(users, search),
	})
}

// AdminUser はユーザー詳細（出品者の場合は商品を含む）を描画する。
// GET /admin/users/{id}
func (h *Handler) AdminUser(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}

	user, err := sc.API.AdminGetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pageError(w, r, sc, err, "User")
		return
	}

	h.render(w, r, http.StatusOK, "admin_user", user.Name, adminUserPage{
		User:   *user,
		Return: r.URL.Path,
	})
}

// AdminUpdateUserRole はユーザーのロールを変更する。
// POST /admin/users/{id}/role (role)
func (h *Handler) AdminUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}
	userID := chi.URLParam(r, "id")
	back := "/admin/users/" + userID

	role := model.Role(r.PostFormValue("role"))
	if !role.Valid() {
		sc.Toasts.Error(model.NewValidationError("Unknown role: " + string(role)).Message)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	if err := sc.API.AdminUpdateUserRole(r.Context(), userID, role); err != nil {
		h.actionError(w, r, sc, err, "update role", back)
		return
	}

	sc.Toasts.Success("Role updated successfully")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// AdminDeleteUser はユーザーを削除する。
// POST /admin/users/{id}/delete
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, model.RoleAdmin); !ok {
		return
	}

	if err := sc.API.AdminDeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.actionError(w, r, sc, err, "delete user", "/admin/users")
		return
	}

	sc.Toasts.Success("User deleted")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func filterUsers(users []model.UserSummary, search string) []model.UserSummary {
	if search == "" {
		return users
	}
	q := strings.ToLower(search)
	var out []model.UserSummary
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}
