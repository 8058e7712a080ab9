package model

import "time"

// ShippingAddress はチェックアウト時の配送先。
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CheckoutRequest はチェックアウトのリクエストボディ。
// PaymentInfoは決済代行サービス導入までは常に空で送信する。
type CheckoutRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentInfo     struct{}        `json:"paymentInfo"`
}

// Order は注文を表す。
type Order struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AdminStats は管理ダッシュボードの集計スナップショット。
type AdminStats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalProducts    int `json:"totalProducts"`
	PendingApprovals int `json:"pendingApprovals"`
}

// SellerStats は出品者ダッシュボードの集計スナップショット。
type SellerStats struct {
	TotalProducts    int `json:"totalProducts"`
	ApprovedProducts int `json:"approvedProducts"`
	PendingProducts  int `json:"pendingProducts"`
}
