package handler

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/model"
)

// catalogPage はカタログ画面の描画データ。
type catalogPage struct {
	Filter      catalog.Filter
	PriceLabel  string
	PriceRanges []catalog.PriceRange
	Products    []model.Product
	Pager       Pager
}

// productPage は商品詳細画面の描画データ。
type productPage struct {
	Product     model.Product
	Image       string
	Description template.HTML
}

// shopPage は出品者ストア画面の描画データ。
type shopPage struct {
	SellerID string
	Products []model.Product
}

// Home はカタログ（トップページ）を描画する。
// GET /?q=&category=&price=&inStock=&page=
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	// 1. 絞り込み条件の解析
	filter := catalog.ParseFilter(query)

	// 2. サーバー側で絞り込んだ一覧を取得
	products, err := sc.API.ListProducts(r.Context(), filter.Query())
	if err != nil {
		h.pageError(w, r, sc, err, "products")
		return
	}

	// 3. 訪問者の一覧状態に反映（条件が変わった場合はページが1に戻る）
	state := sc.Catalog.Apply(products, filter, pageParam(query))

	query.Del("page")
	h.render(w, r, http.StatusOK, "catalog", "Products", catalogPage{
		Filter:      filter,
		PriceLabel:  filter.PriceLabel(),
		PriceRanges: catalog.PriceRanges,
		Products:    state.Items,
		Pager:       newPager(state, "/", query),
	})
}

// Product は商品詳細を描画する。説明文は許可リストでサニタイズする。
// GET /products/{id}
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	product, err := sc.API.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pageError(w, r, sc, err, "Product")
		return
	}

	h.render(w, r, http.StatusOK, "product", product.Name, productPage{
		Product:     *product,
		Image:       h.sanitizer.SafeImageURL(product.Image),
		Description: template.HTML(h.sanitizer.Sanitize(product.Description)),
	})
}

// Shop は出品者ごとのストアを描画する。
// GET /shops/{sellerId}
func (h *Handler) Shop(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	sellerID := chi.URLParam(r, "sellerId")

	products, err := sc.API.ListSellerStorefront(r.Context(), sellerID)
	if err != nil {
		h.pageError(w, r, sc, err, "Shop")
		return
	}

	h.render(w, r, http.StatusOK, "shop", "Shop", shopPage{
		SellerID: sellerID,
		Products: products,
	})
}
