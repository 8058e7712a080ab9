package handler

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/model"
)

// sellerDashboardPage は出品者ダッシュボードの描画データ。
type sellerDashboardPage struct {
	Stats  model.SellerStats
	Recent []model.AdminProduct
}

// sellerProductsPage は出品者の商品一覧の描画データ。
type sellerProductsPage struct {
	Search   string
	Products []model.AdminProduct
	Pager    Pager
	Return   string
}

// sellerProductForm は商品作成・編集フォームの描画データ。
type sellerProductForm struct {
	ID     string
	Name   string
	Desc   string
	Price  string
	Stock  string
	Cat    string
	Image  string
	Errors []string
}

// Action はフォームの送信先を返す。
func (f sellerProductForm) Action() string {
	if f.ID == "" {
		return "/seller/products"
	}
	return "/seller/products/" + f.ID
}

var sellerRoles = []model.Role{model.RoleSeller, model.RoleAdmin}

// SellerDashboard は出品者の集計と最近の商品を描画する。
// GET /seller
func (h *Handler) SellerDashboard(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}

	var page sellerDashboardPage
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		stats, err := sc.API.SellerStats(ctx)
		page.Stats = stats
		return err
	})
	g.Go(func() error {
		products, err := sc.API.SellerListProducts(ctx)
		page.Recent = products[:min(len(products), dashboardPreviewSize)]
		return err
	})
	if err := g.Wait(); err != nil {
		h.pageError(w, r, sc, err, "dashboard")
		return
	}

	h.render(w, r, http.StatusOK, "seller_dashboard", "Seller Dashboard", page)
}

// SellerProducts は出品者自身の商品一覧を描画する。
// GET /seller/products?q=&page=
func (h *Handler) SellerProducts(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}
	query := r.URL.Query()

	products, err := sc.API.SellerListProducts(r.Context())
	if err != nil {
		h.pageError(w, r, sc, err, "products")
		return
	}

	filter := catalog.AdminFilter{
		Search:   strings.TrimSpace(query.Get("q")),
		Approval: model.ApprovalAll,
	}
	state := sc.SellerProducts.Apply(products, filter, pageParam(query))

	query.Del("page")
	h.render(w, r, http.StatusOK, "seller_products", "My Products", sellerProductsPage{
		Search:   filter.Search,
		Products: state.Items,
		Pager:    newPager(state, "/seller/products", query),
		Return:   r.URL.RequestURI(),
	})
}

// SellerNewProductForm は商品作成フォームを描画する。
// GET /seller/products/new
func (h *Handler) SellerNewProductForm(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}

	h.render(w, r, http.StatusOK, "seller_product_form", "New Product", sellerProductForm{
		Stock: "0",
		Cat:   model.Categories[0],
	})
}

// SellerCreateProduct は商品を作成する。作成された商品は承認待ちになる。
// POST /seller/products
func (h *Handler) SellerCreateProduct(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}

	form, input := parseProductForm(r)
	if len(form.Errors) > 0 {
		h.render(w, r, http.StatusUnprocessableEntity, "seller_product_form", "New Product", form)
		return
	}

	if _, err := sc.API.SellerCreateProduct(r.Context(), input); err != nil {
		h.actionError(w, r, sc, err, "create product", "/seller/products/new")
		return
	}

	sc.Toasts.Success("Product created and awaiting approval")
	http.Redirect(w, r, "/seller/products", http.StatusSeeOther)
}

// SellerEditProductForm は商品編集フォームを描画する。
// 単一商品の取得APIがないため、自分の商品一覧から探す。
// GET /seller/products/{id}/edit
func (h *Handler) SellerEditProductForm(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}
	productID := chi.URLParam(r, "id")

	products, err := sc.API.SellerListProducts(r.Context())
	if err != nil {
		h.pageError(w, r, sc, err, "Product")
		return
	}
	i := slices.IndexFunc(products, func(p model.AdminProduct) bool { return p.ID == productID })
	if i < 0 {
		h.renderError(w, r, http.StatusNotFound, model.NewNotFoundError("Product"))
		return
	}

	p := products[i]
	h.render(w, r, http.StatusOK, "seller_product_form", "Edit Product", sellerProductForm{
		ID:    p.ID,
		Name:  p.Name,
		Desc:  p.Description,
		Price: strconv.FormatFloat(p.Price, 'f', 2, 64),
		Stock: strconv.Itoa(p.Stock),
		Cat:   p.Category,
		Image: p.Image,
	})
}

// SellerUpdateProduct は商品を更新する。
// POST /seller/products/{id}
func (h *Handler) SellerUpdateProduct(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}
	productID := chi.URLParam(r, "id")

	form, input := parseProductForm(r)
	form.ID = productID
	if len(form.Errors) > 0 {
		h.render(w, r, http.StatusUnprocessableEntity, "seller_product_form", "Edit Product", form)
		return
	}

	if _, err := sc.API.SellerUpdateProduct(r.Context(), productID, input); err != nil {
		h.actionError(w, r, sc, err, "update product", "/seller/products/"+productID+"/edit")
		return
	}

	sc.Toasts.Success("Product updated")
	http.Redirect(w, r, "/seller/products", http.StatusSeeOther)
}

// SellerDeleteProduct は商品を削除する。
// POST /seller/products/{id}/delete
func (h *Handler) SellerDeleteProduct(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, sc, sellerRoles...); !ok {
		return
	}
	back := returnTarget(r, "/seller/products")

	if err := sc.API.SellerDeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.actionError(w, r, sc, err, "delete product", back)
		return
	}

	sc.Toasts.Success("Product deleted")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// parseProductForm はフォームの値を検証し、再描画用のフォームとAPIの入力を返す。
// 未知のカテゴリは"Other"として扱う。
func parseProductForm(r *http.Request) (sellerProductForm, model.ProductInput) {
	form := sellerProductForm{
		Name:  strings.TrimSpace(r.PostFormValue("name")),
		Desc:  strings.TrimSpace(r.PostFormValue("description")),
		Price: strings.TrimSpace(r.PostFormValue("price")),
		Stock: strings.TrimSpace(r.PostFormValue("stock")),
		Cat:   r.PostFormValue("category"),
		Image: strings.TrimSpace(r.PostFormValue("image")),
	}
	if !slices.Contains(model.Categories, form.Cat) {
		form.Cat = "Other"
	}
	input := model.ProductInput{
		Name:        form.Name,
		Description: form.Desc,
		Category:    form.Cat,
		Image:       form.Image,
	}

	if form.Name == "" {
		form.Errors = append(form.Errors, "Name is required")
	}
	if form.Desc == "" {
		form.Errors = append(form.Errors, "Description is required")
	}
	price, err := strconv.ParseFloat(form.Price, 64)
	if err != nil || price < 0 {
		form.Errors = append(form.Errors, "Price must be a number of 0 or more")
	}
	stock, err := strconv.Atoi(form.Stock)
	if err != nil || stock < 0 {
		form.Errors = append(form.Errors, "Stock must be a whole number of 0 or more")
	}
	input.Price = price
	input.Stock = stock
	return form, input
}
