package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storefront"
)

// cartPage はカート画面の描画データ。
type cartPage struct {
	Cart model.Cart
}

// checkoutPage はチェックアウト画面の描画データ。
type checkoutPage struct {
	Cart    model.Cart
	Address model.ShippingAddress
	Error   string
}

// Cart はカートを再取得して描画する。
// GET /cart
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	if err := sc.Cart.Fetch(r.Context()); err != nil {
		h.pageError(w, r, sc, err, "cart")
		return
	}

	h.render(w, r, http.StatusOK, "cart", "Cart", cartPage{Cart: sc.Cart.Snapshot()})
}

// CartItemsRedirect はログイン後に戻ってきたGETをカート画面へ送る。
// GET /cart/items
func (h *Handler) CartItemsRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// AddCartItem はカートに商品を追加する。mode=setの場合は既存行の数量を変更する。
// POST /cart/items (productId, quantity, mode, return)
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	back := returnTarget(r, "/cart")

	// 1. 入力の解析（数値でない数量は0として検証に任せる）
	productID := strings.TrimSpace(r.PostFormValue("productId"))
	if productID == "" {
		sc.Toasts.Error(model.NewValidationError("Product is required.").Message)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	quantity := 1
	if raw := strings.TrimSpace(r.PostFormValue("quantity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			n = 0
		}
		quantity = n
	}

	// 2. 追加または数量変更
	var err error
	success := "Added to cart"
	if r.PostFormValue("mode") == "set" {
		err = sc.Cart.SetQuantity(r.Context(), productID, quantity)
		success = "Cart updated"
	} else {
		err = sc.Cart.AddOrUpdateItem(r.Context(), productID, quantity)
	}
	if err != nil {
		h.cartError(w, r, sc, err, productID, quantity, "update cart", back)
		return
	}

	sc.Toasts.Success(success)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// RemoveCartItem はカートから商品を削除する。
// POST /cart/items/{id}/remove
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "id")
	back := returnTarget(r, "/cart")

	if err := sc.Cart.RemoveItem(r.Context(), productID); err != nil {
		h.cartError(w, r, sc, err, productID, 0, "remove item", back)
		return
	}

	sc.Toasts.Success("Item removed from cart")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// ClearCart はカートを空にする。
// POST /cart/clear
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	if err := sc.Cart.Clear(r.Context()); err != nil {
		h.cartError(w, r, sc, err, "", 0, "clear cart", "/cart")
		return
	}

	sc.Toasts.Info("Cart cleared")
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// cartError はカート操作のエラーをトーストに変換する。
func (h *Handler) cartError(w http.ResponseWriter, r *http.Request, sc *storefront.Context, err error, productID string, quantity int, op, back string) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		sc.Toasts.Error(model.NewInvalidQuantityError(quantity).Message)
	case errors.Is(err, cart.ErrMutationInProgress):
		sc.Toasts.Warning(model.NewCartBusyError(productID).Message)
	default:
		h.actionError(w, r, sc, err, op, back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// CheckoutForm はチェックアウト画面を描画する。カートが空の場合はカート画面へ戻す。
// GET /checkout
func (h *Handler) CheckoutForm(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	if err := sc.Cart.Fetch(r.Context()); err != nil {
		h.pageError(w, r, sc, err, "cart")
		return
	}
	snapshot := sc.Cart.Snapshot()
	if snapshot.Empty() {
		sc.Toasts.Info("Your cart is empty")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	address := model.ShippingAddress{}
	if u := sc.Session.User(); u != nil {
		address.FullName = u.Name
		address.Email = u.Email
	}
	h.render(w, r, http.StatusOK, "checkout", "Checkout", checkoutPage{Cart: snapshot, Address: address})
}

// Checkout は注文を確定する。支払い情報は送信しない。
// POST /checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	// 1. 配送先の解析と必須項目の検証
	address := model.ShippingAddress{
		FullName:   strings.TrimSpace(r.PostFormValue("fullName")),
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		Phone:      strings.TrimSpace(r.PostFormValue("phone")),
		Address:    strings.TrimSpace(r.PostFormValue("address")),
		City:       strings.TrimSpace(r.PostFormValue("city")),
		PostalCode: strings.TrimSpace(r.PostFormValue("postalCode")),
		Country:    strings.TrimSpace(r.PostFormValue("country")),
	}
	if address.FullName == "" || address.Email == "" || address.Address == "" {
		h.render(w, r, http.StatusUnprocessableEntity, "checkout", "Checkout", checkoutPage{
			Cart:    sc.Cart.Snapshot(),
			Address: address,
			Error:   "Please fill in all required fields",
		})
		return
	}

	// 2. 注文の確定
	if _, err := sc.API.Checkout(r.Context(), address); err != nil {
		if sessionExpired(err) {
			h.redirectToLogin(w, r, sc)
			return
		}
		h.render(w, r, http.StatusBadGateway, "checkout", "Checkout", checkoutPage{
			Cart:    sc.Cart.Snapshot(),
			Address: address,
			Error:   uiErrorFor(err, "place order").Message,
		})
		return
	}

	// 3. サーバー側で空になったカートを取り直す
	if err := sc.Cart.Fetch(r.Context()); err != nil {
		sc.Cart.Reset()
	}

	sc.Toasts.Success("Order placed successfully!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
