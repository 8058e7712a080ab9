package handler

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/storefront/internal/model"
)

func TestOrders_ListsPlacedOrdersNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, aliceToken)
	address := url.Values{"fullName": {"Alice"}, "email": {"alice@example.com"}, "address": {"1 Main St"}}

	env.api.setCart(model.CartItem{ProductID: "p1", ProductName: "Laptop", Price: 10, Quantity: 1})
	assertRedirect(t, b.post("/checkout", address), "/")
	env.api.setCart(model.CartItem{ProductID: "p2", ProductName: "T-Shirt", Price: 2, Quantity: 3})
	assertRedirect(t, b.post("/checkout", address), "/")

	w := b.get("/orders")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	body := w.Body.String()
	first, second := strings.Index(body, "Order o2"), strings.Index(body, "Order o1")
	if first < 0 || second < 0 || first > second {
		t.Errorf("注文は新しい順に表示されるべき: %s", body)
	}
	if !strings.Contains(body, "T-Shirt &times; 3") || !strings.Contains(body, "Total: $6.00") {
		t.Error("注文の明細と合計が表示されるべき")
	}
}

func TestOrders_Empty(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, aliceToken)

	w := b.get("/orders")

	if !strings.Contains(w.Body.String(), "You have not placed any orders yet.") {
		t.Error("注文がない場合の案内が表示されるべき")
	}
}

func TestOrders_AnonymousIsSentToLogin(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	assertRedirect(t, b.get("/orders"), "/login?redirect=%2Forders")
}
