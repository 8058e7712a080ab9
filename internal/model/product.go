package model

// Product はカタログに表示される商品を表す。
// クライアントからは不変として扱う。
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	SellerID    string  `json:"sellerId"`
}

// InStock は在庫があるかどうかを返す。
func (p Product) InStock() bool {
	return p.Stock > 0
}

// SellerRef は商品に付随する出品者情報。
type SellerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdminProduct は管理・出品者画面で扱う承認状態付きの商品を表す。
type AdminProduct struct {
	Product
	Approved bool      `json:"approved"`
	Seller   SellerRef `json:"seller"`
}

// ProductInput は出品者による商品作成・更新のリクエストボディ。
type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

// Categories は商品カテゴリの一覧。
var Categories = []string{"Electronics", "Clothing", "Books", "Home", "Sports", "Other"}

// ApprovalFilter は管理画面の商品一覧で使う承認状態フィルタ。
type ApprovalFilter string

const (
	// ApprovalAll はすべての商品を対象にする。
	ApprovalAll ApprovalFilter = "all"
	// ApprovalPending は未承認の商品のみを対象にする。
	ApprovalPending ApprovalFilter = "pending"
	// ApprovalApproved は承認済みの商品のみを対象にする。
	ApprovalApproved ApprovalFilter = "approved"
)

// ParseApprovalFilter は文字列をApprovalFilterに変換する。
// 未知の値はApprovalAllとして扱う。
func ParseApprovalFilter(s string) ApprovalFilter {
	switch ApprovalFilter(s) {
	case ApprovalPending:
		return ApprovalPending
	case ApprovalApproved:
		return ApprovalApproved
	default:
		return ApprovalAll
	}
}
