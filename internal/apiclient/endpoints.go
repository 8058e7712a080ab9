package apiclient

import (
	"context"
	"net/url"

	"github.com/hitoshi/storefront/internal/model"
)

// ack は本文を使わない応答の受け皿。
type ack struct{}

// --- 認証 ---

// loginRequest はログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest は会員登録のリクエストボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Me はセッション確認を行い、現在のユーザーを返す。
// GET /auth/me
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	return Get[*model.User](ctx, c, "/auth/me")
}

// Login はログインし、サーバーが返したユーザーを返す。
// POST /auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	return Post[*model.User](ctx, c, "/auth/login", loginRequest{Email: email, Password: password})
}

// Register は会員登録し、サーバーが返したユーザーを返す。
// POST /auth/register
func (c *Client) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	return Post[*model.User](ctx, c, "/auth/register", registerRequest{Name: name, Email: email, Password: password})
}

// Logout はサーバー側のセッションを破棄する。
// POST /auth/logout
func (c *Client) Logout(ctx context.Context) error {
	_, err := Post[ack](ctx, c, "/auth/logout", nil)
	return err
}

// --- カート ---

// GetCart はサーバー側のカートを返す。
// GET /cart
func (c *Client) GetCart(ctx context.Context) (model.Cart, error) {
	return Get[model.Cart](ctx, c, "/cart")
}

// AddToCart は商品をカートに追加する。既存行の場合は数量を置き換える。
// POST /cart/add
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	_, err := Post[ack](ctx, c, "/cart/add", model.CartItemRequest{ProductID: productID, Quantity: quantity})
	return err
}

// UpdateCartItem はカート行の数量を変更する。
// PUT /cart/update
func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	_, err := Put[ack](ctx, c, "/cart/update", model.CartItemRequest{ProductID: productID, Quantity: quantity})
	return err
}

// RemoveFromCart はカート行を削除する。
// DELETE /cart/remove/{productId}
func (c *Client) RemoveFromCart(ctx context.Context, productID string) error {
	_, err := Delete[ack](ctx, c, "/cart/remove/"+url.PathEscape(productID))
	return err
}

// ClearCart はカートを空にする。
// DELETE /cart/clear
func (c *Client) ClearCart(ctx context.Context) error {
	_, err := Delete[ack](ctx, c, "/cart/clear")
	return err
}

// --- カタログ ---

// ListProducts は公開商品一覧を返す。queryはサーバー側フィルタ。
// GET /public/products?search=&category=&inStock=&minPrice=&maxPrice=
func (c *Client) ListProducts(ctx context.Context, query url.Values) ([]model.Product, error) {
	endpoint := "/public/products"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return Get[[]model.Product](ctx, c, endpoint)
}

// GetProduct は商品詳細を返す。
// GET /public/products/{id}
func (c *Client) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return Get[*model.Product](ctx, c, "/public/products/"+url.PathEscape(productID))
}

// ListSellerStorefront は指定出品者の公開商品一覧を返す。
// GET /public/products?sellerId=
func (c *Client) ListSellerStorefront(ctx context.Context, sellerID string) ([]model.Product, error) {
	return c.ListProducts(ctx, url.Values{"sellerId": {sellerID}})
}

// --- 注文 ---

// Checkout はカートの内容で注文を確定する。
// 決済情報は送信しない。
// POST /orders/checkout
func (c *Client) Checkout(ctx context.Context, addr model.ShippingAddress) (*model.Order, error) {
	return Post[*model.Order](ctx, c, "/orders/checkout", model.CheckoutRequest{ShippingAddress: addr})
}

// ListOrders はログインユーザーの注文一覧を返す。
// GET /orders
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	return Get[[]model.Order](ctx, c, "/orders")
}

// --- 管理者 ---

// roleRequest はロール変更のリクエストボディ。
type roleRequest struct {
	Role model.Role `json:"role"`
}

// AdminStats は管理ダッシュボードの集計を返す。
// GET /admin/stats
func (c *Client) AdminStats(ctx context.Context) (model.AdminStats, error) {
	return Get[model.AdminStats](ctx, c, "/admin/stats")
}

// AdminListUsers はユーザー一覧を返す。
// GET /admin/users
func (c *Client) AdminListUsers(ctx context.Context) ([]model.UserSummary, error) {
	return Get[[]model.UserSummary](ctx, c, "/admin/users")
}

// AdminGetUser はユーザー詳細を返す。
// GET /admin/users/{id}
func (c *Client) AdminGetUser(ctx context.Context, userID string) (*model.UserDetail, error) {
	return Get[*model.UserDetail](ctx, c, "/admin/users/"+url.PathEscape(userID))
}

// AdminDeleteUser はユーザーを削除する。
// DELETE /admin/users/{id}
func (c *Client) AdminDeleteUser(ctx context.Context, userID string) error {
	_, err := Delete[ack](ctx, c, "/admin/users/"+url.PathEscape(userID))
	return err
}

// AdminUpdateUserRole はユーザーのロールを変更する。
// PATCH /admin/users/{id}/role
func (c *Client) AdminUpdateUserRole(ctx context.Context, userID string, role model.Role) error {
	_, err := Patch[ack](ctx, c, "/admin/users/"+url.PathEscape(userID)+"/role", roleRequest{Role: role})
	return err
}

// AdminListProducts は承認状態で絞り込んだ商品一覧を返す。
// GET /admin/products?approved=true|false
func (c *Client) AdminListProducts(ctx context.Context, filter model.ApprovalFilter) ([]model.AdminProduct, error) {
	endpoint := "/admin/products"
	switch filter {
	case model.ApprovalPending:
		endpoint += "?approved=false"
	case model.ApprovalApproved:
		endpoint += "?approved=true"
	}
	return Get[[]model.AdminProduct](ctx, c, endpoint)
}

// AdminApproveProduct は商品を承認する。
// PATCH /admin/products/{id}/approve
func (c *Client) AdminApproveProduct(ctx context.Context, productID string) error {
	_, err := Patch[ack](ctx, c, "/admin/products/"+url.PathEscape(productID)+"/approve", struct{}{})
	return err
}

// AdminDeleteProduct は商品を削除する。
// DELETE /admin/products/{id}
func (c *Client) AdminDeleteProduct(ctx context.Context, productID string) error {
	_, err := Delete[ack](ctx, c, "/admin/products/"+url.PathEscape(productID))
	return err
}

// --- 出品者 ---

// SellerStats は出品者ダッシュボードの集計を返す。
// GET /seller/stats
func (c *Client) SellerStats(ctx context.Context) (model.SellerStats, error) {
	return Get[model.SellerStats](ctx, c, "/seller/stats")
}

// SellerListProducts はログイン中の出品者の商品一覧を返す。
// GET /seller/products
func (c *Client) SellerListProducts(ctx context.Context) ([]model.AdminProduct, error) {
	return Get[[]model.AdminProduct](ctx, c, "/seller/products")
}

// SellerCreateProduct は商品を出品する。
// POST /seller/products
func (c *Client) SellerCreateProduct(ctx context.Context, in model.ProductInput) (*model.AdminProduct, error) {
	return Post[*model.AdminProduct](ctx, c, "/seller/products", in)
}

// SellerUpdateProduct は出品中の商品を更新する。
// PUT /seller/products/{id}
func (c *Client) SellerUpdateProduct(ctx context.Context, productID string, in model.ProductInput) (*model.AdminProduct, error) {
	return Put[*model.AdminProduct](ctx, c, "/seller/products/"+url.PathEscape(productID), in)
}

// SellerDeleteProduct は出品中の商品を削除する。
// DELETE /seller/products/{id}
func (c *Client) SellerDeleteProduct(ctx context.Context, productID string) error {
	_, err := Delete[ack](ctx, c, "/seller/products/"+url.PathEscape(productID))
	return err
}
