package handler

import (
	"net/http"
	"strings"
	"testing"
)

func TestHome_ForwardsFilterToServer(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	w := b.get("/?q=lap&category=Electronics&price=Over+%24500&inStock=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Laptop") {
		t.Error("一覧に商品が表示されるべき")
	}

	env.api.mu.Lock()
	q := env.api.lastProductQuery
	env.api.mu.Unlock()
	want := map[string]string{
		"search":   "lap",
		"category": "Electronics",
		"inStock":  "true",
		"minPrice": "500",
		"maxPrice": "999999",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestHome_AllCategoryIsNotSent(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	b.get("/?category=all")

	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	if env.api.lastProductQuery.Has("category") {
		t.Error("category=all はサーバーに送信しないべき")
	}
}

func TestHome_LocalFilterHidesNonMatching(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	// テスト用APIは検索語を無視するため、ローカルの絞り込みが効くことを確認できる
	w := b.get("/?q=shirt")

	if strings.Contains(w.Body.String(), "Laptop") {
		t.Error("検索語に一致しない商品は表示しないべき")
	}
	if !strings.Contains(w.Body.String(), "No products found") {
		t.Error("該当なしの案内が表示されるべき")
	}
}

func TestProduct_SanitizesContent(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	w := b.get("/products/p1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<p>Fast</p>") {
		t.Error("許可されたタグは残るべき")
	}
	if strings.Contains(body, "<script>") {
		t.Error("scriptタグは除去されるべき")
	}
	if strings.Contains(body, "javascript:") {
		t.Error("javascript:の画像URLは出力しないべき")
	}
}

func TestProduct_NotFound(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	w := b.get("/products/missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Product not found.") {
		t.Errorf("未検出メッセージが表示されるべき: %s", w.Body.String())
	}
}

func TestShop_RequestsSellerProducts(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	w := b.get("/shops/s1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env.api.mu.Lock()
	defer env.api.mu.Unlock()
	if got := env.api.lastProductQuery.Get("sellerId"); got != "s1" {
		t.Errorf("sellerId = %q, want s1", got)
	}
}

func TestNotFoundPage(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t, "")

	w := b.get("/no/such/page")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Error("404はHTMLで返すべき")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := (&browser{t: t, env: env, cookies: map[string]string{}}).get("/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
		t.Errorf("body = %s", w.Body.String())
	}
	if env.registry.Len() != 0 {
		t.Error("/health は訪問者を生成しないべき")
	}
}
