package handler

import (
	"net/http"
	"slices"

	"github.com/hitoshi/storefront/internal/model"
)

// ordersPage は注文履歴画面の描画データ。
type ordersPage struct {
	Orders []model.Order
}

// Orders はログインユーザーの注文履歴を新しい順に描画する。
// GET /orders
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if sc.Session.User() == nil {
		h.redirectToLogin(w, r, sc)
		return
	}

	orders, err := sc.API.ListOrders(r.Context())
	if err != nil {
		h.pageError(w, r, sc, err, "orders")
		return
	}
	slices.SortStableFunc(orders, func(a, b model.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	h.render(w, r, http.StatusOK, "orders", "Orders", ordersPage{Orders: orders})
}
