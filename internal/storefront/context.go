// Package storefront は訪問者ごとの状態（セッション・カート・トースト・一覧表示）をまとめた
// コンテキストと、それらを訪問者IDで管理するレジストリを提供する。
package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
	"github.com/hitoshi/storefront/internal/toast"
)

const (
	// TokenCookie はAPIサーバーが発行する認証Cookieの名前。
	TokenCookie = "token"
	// VisitorCookie は訪問者を識別するCookieの名前。
	VisitorCookie = "sf_visitor"

	// CatalogPageSize はカタログ画面の1ページあたりの件数。
	CatalogPageSize = 12
	// ManagementPageSize は管理・出品者画面の1ページあたりの件数。
	ManagementPageSize = 10
)

// Options はContextの生成に必要な設定。
type Options struct {
	BaseURL        string
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	HydrationDelay time.Duration
	// Transport はAPI呼び出しに使うRoundTripper。nilの場合はhttp.DefaultTransport。
	Transport http.RoundTripper
}

// Context は1訪問者分の状態をまとめたもの。
// New で生成し、Start で初回のセッション確認を開始し、Close で破棄する。
// 各状態は自身のメソッド経由でのみ変更される。
type Context struct {
	VisitorID string

	API            *apiclient.Client
	Session        *session.Store
	Cart           *cart.ViewModel
	Toasts         *toast.Store
	Catalog        *catalog.View[model.Product, catalog.Filter]
	AdminProducts  *catalog.View[model.AdminProduct, catalog.AdminFilter]
	SellerProducts *catalog.View[model.AdminProduct, catalog.AdminFilter]

	logger   *slog.Logger
	lastSeen atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// New は新しいContextを生成する。訪問者ごとに独立したCookieJarを持つ。
func New(visitorID string, opts Options) (*Context, error) {
	jar, err := apiclient.NewCookieJar()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	logger := opts.Logger.With(slog.String("visitor_id", visitorID))
	httpClient := &http.Client{
		Jar:       jar,
		Transport: opts.Transport,
	}
	api, err := apiclient.NewClient(httpClient, opts.BaseURL, logger, opts.Metrics)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		VisitorID:      visitorID,
		API:            api,
		Session:        session.NewStore(api, logger, opts.HydrationDelay),
		Cart:           cart.NewViewModel(api, logger),
		Toasts:         toast.NewStore(opts.Metrics),
		Catalog:        catalog.NewView(CatalogPageSize, catalog.MatchProduct),
		AdminProducts:  catalog.NewView(ManagementPageSize, catalog.MatchAdminProduct),
		SellerProducts: catalog.NewView(ManagementPageSize, catalog.MatchAdminProduct),
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
	c.Touch()
	return c, nil
}

// Start は初回のセッション確認をバックグラウンドで開始する。2回目以降は何もしない。
func (c *Context) Start() {
	c.startOnce.Do(func() {
		go c.Session.Start(c.ctx)
	})
}

// Close は進行中の初回確認を中止し、トーストのタイマーを停止する。
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.Toasts.Close()
	})
}

// Touch は最終アクセス時刻を現在時刻に更新する。
func (c *Context) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen は最終アクセス時刻を返す。
func (c *Context) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// SyncToken はブラウザから受け取った認証Cookieを訪問者のCookieJarに反映する。
// ブラウザ側でCookieが消えていればセッションを無効化し、別のトークンに変わっていれば再確認する。
func (c *Context) SyncToken(ctx context.Context, token string) {
	current := c.API.CookieValue(TokenCookie)
	switch {
	case token == current:
		return
	case token == "":
		c.API.ClearCookie(TokenCookie)
		c.Session.Invalidate()
		c.Cart.Reset()
	default:
		c.API.SetCookie(TokenCookie, token)
		select {
		case <-c.Session.Ready():
			c.Session.Refresh(ctx)
		default:
			// 初回確認がまだであれば、その確認が新しいトークンを使う
		}
	}
}

// Token はCookieJarに保持している認証トークンを返す。
func (c *Context) Token() string {
	return c.API.CookieValue(TokenCookie)
}

// SignOut はログアウトし、ローカルのカートと認証Cookieを破棄する。
func (c *Context) SignOut(ctx context.Context) error {
	err := c.Session.Logout(ctx)
	c.API.ClearCookie(TokenCookie)
	c.Cart.Reset()
	return err
}

// Invalidate はページ側で401を受け取った際に認証状態を破棄する。
func (c *Context) Invalidate() {
	c.Session.Invalidate()
	c.API.ClearCookie(TokenCookie)
	c.Cart.Reset()
}
