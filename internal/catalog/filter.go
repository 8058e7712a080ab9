// Package catalog は商品一覧のクライアント側フィルタとページングを提供する。
package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/model"
)

// unboundedMaxPrice は上限なしの価格帯をサーバーに送る際の上限値。
const unboundedMaxPrice = 999999

// PriceRange は価格帯のプリセット。Maxが0以下の場合は上限なし。
type PriceRange struct {
	Label string
	Min   float64
	Max   float64
}

// PriceRanges はカタログ画面で選択できる価格帯の一覧。
var PriceRanges = []PriceRange{
	{Label: "Under $50", Min: 0, Max: 50},
	{Label: "$50 - $100", Min: 50, Max: 100},
	{Label: "$100 - $500", Min: 100, Max: 500},
	{Label: "Over $500", Min: 500, Max: 0},
}

// FindPriceRange はラベル（大文字小文字を区別しない）から価格帯を探す。
func FindPriceRange(label string) (PriceRange, bool) {
	for _, r := range PriceRanges {
		if strings.EqualFold(r.Label, label) {
			return r, true
		}
	}
	return PriceRange{}, false
}

// Filter はカタログ画面の絞り込み条件。値として比較できる。
type Filter struct {
	Search      string
	Category    string
	InStockOnly bool
	MinPrice    float64
	MaxPrice    float64
}

// hasPrice は価格帯の指定があるかを返す。
func (f Filter) hasPrice() bool {
	return f.MinPrice > 0 || f.MaxPrice > 0
}

// Matches は商品が条件をすべて満たすかを返す。
//   - Search: 商品名の部分一致（大文字小文字を区別しない）
//   - Category: 完全一致（大文字小文字を区別しない）、空はすべて
//   - InStockOnly: 在庫1以上
//   - MinPrice/MaxPrice: 両端を含む。0以下は制限なし
func (f Filter) Matches(p model.Product) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.InStockOnly && !p.InStock() {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	return true
}

// Apply は条件に一致する商品を取得順のまま返す。
func (f Filter) Apply(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Query はサーバー側フィルタ用のクエリパラメータを組み立てる。
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.InStockOnly {
		q.Set("inStock", "true")
	}
	if f.hasPrice() {
		q.Set("minPrice", formatPrice(f.MinPrice))
		if f.MaxPrice > 0 {
			q.Set("maxPrice", formatPrice(f.MaxPrice))
		} else {
			q.Set("maxPrice", strconv.Itoa(unboundedMaxPrice))
		}
	}
	return q
}

// PriceLabel は現在の価格条件に一致するプリセットのラベルを返す。なければ空文字列。
func (f Filter) PriceLabel() string {
	if !f.hasPrice() {
		return ""
	}
	for _, r := range PriceRanges {
		if r.Min == f.MinPrice && r.Max == f.MaxPrice {
			return r.Label
		}
	}
	return ""
}

// ParseFilter は画面のクエリパラメータ（q, category, price, inStock）からFilterを組み立てる。
// categoryの"all"と未知の価格帯ラベルは指定なしとして扱う。
func ParseFilter(values url.Values) Filter {
	f := Filter{
		Search:      strings.TrimSpace(values.Get("q")),
		InStockOnly: values.Get("inStock") == "true" || values.Get("inStock") == "on",
	}
	if c := values.Get("category"); c != "" && !strings.EqualFold(c, "all") {
		f.Category = c
	}
	if r, ok := FindPriceRange(values.Get("price")); ok {
		f.MinPrice = r.Min
		f.MaxPrice = r.Max
	}
	return f
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AdminFilter は管理・出品者の商品一覧の絞り込み条件。
type AdminFilter struct {
	Search   string
	Approval model.ApprovalFilter
}

// MatchAdminProduct は商品名または出品者名の部分一致と承認状態で判定する。
func MatchAdminProduct(f AdminFilter, p model.AdminProduct) bool {
	switch f.Approval {
	case model.ApprovalPending:
		if p.Approved {
			return false
		}
	case model.ApprovalApproved:
		if !p.Approved {
			return false
		}
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Seller.Name), q)
}

// MatchProduct はFilter.MatchesをViewの判定関数として使うためのアダプタ。
func MatchProduct(f Filter, p model.Product) bool {
	return f.Matches(p)
}
