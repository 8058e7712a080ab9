// Package cart はサーバー側カートをクライアント側で写すビューモデルを提供する。
package cart

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
)

var (
	// ErrInvalidQuantity は数量が1未満であることを表す。サーバーには送信しない。
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrMutationInProgress は同じ商品（またはカート全体）の更新が進行中であることを表す。
	ErrMutationInProgress = errors.New("cart update already in progress")
)

// API はカートビューモデルが利用するカートAPIのインターフェース。
type API interface {
	GetCart(ctx context.Context) (model.Cart, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}

// ViewModel は1訪問者分のカートの写しを保持する。
// 明細と合計はFetchでのみ置き換わる。例外は削除時の楽観的な行の除去だけ。
type ViewModel struct {
	api    API
	logger *slog.Logger

	mu       sync.Mutex
	items    []model.CartItem
	total    float64
	loaded   bool
	fetching int
	clearing bool
	inflight map[string]struct{}
	// version はFetchの反映ごとに進む。楽観的削除の巻き戻し可否の判定に使う。
	version uint64
	// fetchSeq はFetch開始ごとに採番する。appliedSeq より古い応答は反映しない。
	fetchSeq   uint64
	appliedSeq uint64
	// stale は削除成功後の再取得に失敗し、合計が明細と一致しない可能性を表す。
	stale bool
}

// NewViewModel は新しいViewModelを生成する。
func NewViewModel(api API, logger *slog.Logger) *ViewModel {
	return &ViewModel{
		api:      api,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Snapshot は現在のカートのコピーを返す。
func (v *ViewModel) Snapshot() model.Cart {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.Cart{
		Items: slices.Clone(v.items),
		Total: v.total,
	}
}

// Loaded は一度でもFetchが成功したかを返す。
func (v *ViewModel) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Loading はFetchが進行中かを返す。
func (v *ViewModel) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fetching > 0
}

// Stale は合計が明細に追いついていない可能性があるかを返す。
// 次にFetchが反映されるまで真のまま。
func (v *ViewModel) Stale() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stale
}

// Updating は指定商品の更新が進行中かを返す。
func (v *ViewModel) Updating(productID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.inflight[productID]
	return ok
}

// Fetch はサーバーのカートを取得し、明細と合計を置き換える。
// 失敗時はローカルの状態を変更しない。
// 後から開始したFetchが先に反映済みの場合、この応答は捨てる。
func (v *ViewModel) Fetch(ctx context.Context) error {
	v.mu.Lock()
	v.fetching++
	v.fetchSeq++
	seq := v.fetchSeq
	v.mu.Unlock()

	c, err := v.api.GetCart(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.fetching--
	if err != nil {
		v.logger.WarnContext(ctx, "カートの取得に失敗しました", slog.String("error", err.Error()))
		return err
	}
	if seq < v.appliedSeq {
		v.logger.DebugContext(ctx, "古いカート応答を破棄しました",
			slog.Uint64("seq", seq),
			slog.Uint64("applied_seq", v.appliedSeq),
		)
		return nil
	}
	v.appliedSeq = seq
	v.items = c.Items
	v.total = c.Total
	v.loaded = true
	v.stale = false
	v.version++
	return nil
}

// AddOrUpdateItem は商品をカートに追加し、数量を設定する。
// 成功後は必ずカートを再取得する。ローカルでのマージは行わない。
func (v *ViewModel) AddOrUpdateItem(ctx context.Context, productID string, quantity int) error {
	return v.mutateQuantity(ctx, "add", productID, quantity, v.api.AddToCart)
}

// SetQuantity は既存のカート行の数量を変更する。
// 検証・排他・再取得の扱いはAddOrUpdateItemと同じ。
func (v *ViewModel) SetQuantity(ctx context.Context, productID string, quantity int) error {
	return v.mutateQuantity(ctx, "update", productID, quantity, v.api.UpdateCartItem)
}

func (v *ViewModel) mutateQuantity(ctx context.Context, op, productID string, quantity int, call func(context.Context, string, int) error) error {
	// 1. 数量の検証（サーバーには送信しない）
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	// 2. 同一商品の排他
	if err := v.acquire(productID); err != nil {
		return err
	}
	defer v.release(productID)

	// 3. 更新APIの呼び出し
	if err := call(ctx, productID, quantity); err != nil {
		v.logger.WarnContext(ctx, "カートの更新に失敗しました",
			slog.String("operation", op),
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return err
	}

	// 4. サーバーの状態で置き換える
	return v.Fetch(ctx)
}

// RemoveItem は商品をカートから削除する。
// 行はローカルから即座に取り除き、削除APIの失敗時は元に戻す。
// 成功後は合計を合わせるために再取得する。再取得に失敗した場合、行は除去したまま
// 合計を古いものとして印を付ける。
func (v *ViewModel) RemoveItem(ctx context.Context, productID string) error {
	if err := v.acquire(productID); err != nil {
		return err
	}
	defer v.release(productID)

	// 1. 楽観的に行を除去
	v.mu.Lock()
	idx := slices.IndexFunc(v.items, func(it model.CartItem) bool { return it.ProductID == productID })
	var removed model.CartItem
	if idx >= 0 {
		removed = v.items[idx]
		v.items = slices.Delete(slices.Clone(v.items), idx, idx+1)
	}
	version := v.version
	v.mu.Unlock()

	// 2. 削除APIの呼び出し
	if err := v.api.RemoveFromCart(ctx, productID); err != nil {
		v.logger.WarnContext(ctx, "カートからの削除に失敗しました",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		v.mu.Lock()
		// 間にFetchが反映されていればサーバーの状態を優先する
		if idx >= 0 && v.version == version {
			at := min(idx, len(v.items))
			v.items = slices.Insert(v.items, at, removed)
		}
		v.mu.Unlock()
		return err
	}

	// 3. 合計を合わせるために再取得
	if err := v.Fetch(ctx); err != nil {
		v.mu.Lock()
		v.stale = true
		v.mu.Unlock()
		return err
	}
	return nil
}

// Clear はカートを空にする。いずれかの商品の更新が進行中の場合は拒否する。
func (v *ViewModel) Clear(ctx context.Context) error {
	v.mu.Lock()
	if v.clearing || len(v.inflight) > 0 {
		v.mu.Unlock()
		return ErrMutationInProgress
	}
	v.clearing = true
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.clearing = false
		v.mu.Unlock()
	}()

	if err := v.api.ClearCart(ctx); err != nil {
		v.logger.WarnContext(ctx, "カートのクリアに失敗しました", slog.String("error", err.Error()))
		return err
	}
	return v.Fetch(ctx)
}

// Reset はログアウト時にローカルの写しを破棄する。
func (v *ViewModel) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = nil
	v.total = 0
	v.loaded = false
	v.stale = false
	v.version++
	// 実行中のFetchの応答を反映させない
	v.appliedSeq = v.fetchSeq + 1
	v.fetchSeq = v.appliedSeq
}

func (v *ViewModel) acquire(productID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.clearing {
		return ErrMutationInProgress
	}
	if _, busy := v.inflight[productID]; busy {
		return ErrMutationInProgress
	}
	v.inflight[productID] = struct{}{}
	return nil
}

func (v *ViewModel) release(productID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inflight, productID)
}
