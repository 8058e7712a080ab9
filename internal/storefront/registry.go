package storefront

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/metrics"
)

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	IdleTTL         time.Duration // 最終アクセスからこの時間を超えたContextを破棄する
	CleanupInterval time.Duration // 破棄判定の間隔
}

// DefaultRegistryConfig はデフォルトの設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL:         30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Registry は訪問者IDごとのContextを管理する。
// 未知の訪問者に対してはContextを生成し、一定時間アクセスのないものを破棄する。
type Registry struct {
	config  RegistryConfig
	opts    Options
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu       sync.Mutex
	visitors map[string]*Context

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry は新しいRegistryを生成する。
// バックグラウンドで期限切れContextのクリーンアップを開始する。
func NewRegistry(config RegistryConfig, opts Options) *Registry {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	r := &Registry{
		config:   config,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		visitors: make(map[string]*Context),
		stopCh:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Acquire は訪問者IDに対応するContextを返す。存在しなければ生成して開始する。
// 新規生成時はtokenをCookieJarに設定してから初回のセッション確認を始める。
// createdは新規に生成したかどうか。
func (r *Registry) Acquire(visitorID, token string) (sc *Context, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sc, ok := r.visitors[visitorID]; ok {
		sc.Touch()
		return sc, false, nil
	}

	sc, err = New(visitorID, r.opts)
	if err != nil {
		return nil, false, err
	}
	if token != "" {
		sc.API.SetCookie(TokenCookie, token)
	}
	sc.Start()
	r.visitors[visitorID] = sc
	r.metrics.SetActiveVisitors(len(r.visitors))

	r.logger.Debug("訪問者コンテキストを生成しました", slog.String("visitor_id", visitorID))
	return sc, true, nil
}

// Get は訪問者IDに対応するContextを返す。生成はしない。
func (r *Registry) Get(visitorID string) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.visitors[visitorID]
	if ok {
		sc.Touch()
	}
	return sc, ok
}

// Len は保持中のContext数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Stop はクリーンアップを停止し、保持中のすべてのContextを破棄する。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		defer r.mu.Unlock()
		for id, sc := range r.visitors {
			sc.Close()
			delete(r.visitors, id)
		}
		r.metrics.SetActiveVisitors(0)
	})
}

// cleanupLoop はバックグラウンドで期限切れContextを定期的に破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTTLを超えたContextを破棄し、破棄した件数を返す。
func (r *Registry) evictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, sc := range r.visitors {
		if now.Sub(sc.LastSeen()) > r.config.IdleTTL {
			sc.Close()
			delete(r.visitors, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.metrics.SetActiveVisitors(len(r.visitors))
		r.logger.Info("アイドル状態の訪問者コンテキストを破棄しました",
			slog.Int("evicted", evicted),
			slog.Int("remaining", len(r.visitors)),
		)
	}
	return evicted
}
