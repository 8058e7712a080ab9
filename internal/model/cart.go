package model

// CartItem はカートの1行を表す。
type CartItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image"`
}

// Subtotal は行小計を返す。表示専用で、合計にはサーバーのTotalを使う。
func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Cart はサーバー側カートの写し。
// Totalは常にサーバーが返した値であり、クライアントで再計算しない。
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// Empty はカートが空かどうかを返す。
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// CartItemRequest はカートへの追加・数量変更のリクエストボディ。
type CartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
