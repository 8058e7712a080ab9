// Package session は訪問者ごとのログイン状態を保持するセッションストアを提供する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/model"
)

const (
	loginFailedMessage    = "Login failed"
	registerFailedMessage = "Registration failed"
)

// ErrSuperseded は、呼び出し中にログアウトが行われたため結果を破棄したことを表す。
var ErrSuperseded = errors.New("session changed by logout while request was in flight")

// AuthAPI はセッションストアが利用する認証APIのインターフェース。
type AuthAPI interface {
	Me(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Logout(ctx context.Context) error
}

// AuthError はログイン・会員登録の失敗を表す。
// Messageは画面に表示する文言で、Errは元のエラー。
type AuthError struct {
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap は元のエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// State はセッションストアのある時点のスナップショット。
type State struct {
	User        *model.User
	Loading     bool
	Initialized bool
	Error       string
}

// IsAuthenticated はログイン済みかどうかを返す。Userから導出され、独立して保持されない。
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// Store は1訪問者分のセッション状態を保持する。
// 初回のセッション確認はStartで一度だけ行い、完了後はinitializedが真のまま変わらない。
type Store struct {
	api            AuthAPI
	logger         *slog.Logger
	hydrationDelay time.Duration

	mu          sync.RWMutex
	user        *model.User
	hydrating   bool
	inflight    int
	initialized bool
	errMsg      string
	// generation はログアウトと無効化のたびに進む。
	// 古い世代で開始したログイン・確認の結果は適用しない。
	generation uint64

	startOnce sync.Once
	readyOnce sync.Once
	ready     chan struct{}
}

// NewStore は新しいStoreを生成する。
// hydrationDelayは初回セッション確認前の待機時間。
func NewStore(api AuthAPI, logger *slog.Logger, hydrationDelay time.Duration) *Store {
	return &Store{
		api:            api,
		logger:         logger,
		hydrationDelay: hydrationDelay,
		hydrating:      true,
		ready:          make(chan struct{}),
	}
}

// Start は待機時間の経過後に初回のセッション確認を行う。
// 2回目以降の呼び出しは何もしない。呼び出しは確認の完了までブロックする。
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if s.hydrationDelay > 0 {
			timer := time.NewTimer(s.hydrationDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
		s.check(ctx)
	})
}

// Ready は初回のセッション確認が完了したときに閉じられるチャネルを返す。
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait は初回のセッション確認の完了かctxの終了まで待機する。
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh はセッション確認をやり直す。
func (s *Store) Refresh(ctx context.Context) {
	s.check(ctx)
}

// State は現在の状態のスナップショットを返す。
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		User:        s.user,
		Loading:     s.hydrating || s.inflight > 0,
		Initialized: s.initialized,
		Error:       s.errMsg,
	}
}

// User は現在のユーザーを返す。未ログインの場合はnil。
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated はログイン済みかどうかを返す。
func (s *Store) IsAuthenticated() bool {
	return s.User() != nil
}

// Login はログインし、成功時にユーザーを置き換える。
// 失敗時はエラーメッセージを設定してエラーを返し、既存のユーザーは変更しない。
func (s *Store) Login(ctx context.Context, email, password string) (*model.User, error) {
	return s.authenticate(ctx, "login", loginFailedMessage, func() (*model.User, error) {
		return s.api.Login(ctx, email, password)
	})
}

// Register は会員登録し、成功時にユーザーを置き換える。
func (s *Store) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	return s.authenticate(ctx, "register", registerFailedMessage, func() (*model.User, error) {
		return s.api.Register(ctx, name, email, password)
	})
}

func (s *Store) authenticate(ctx context.Context, op, failedMessage string, call func() (*model.User, error)) (*model.User, error) {
	s.mu.Lock()
	gen := s.generation
	s.errMsg = ""
	s.mu.Unlock()

	user, err := call()

	s.mu.Lock()
	defer s.mu.Unlock()

	// 呼び出し中にログアウトされた場合は結果を捨てる
	if s.generation != gen {
		s.logger.InfoContext(ctx, "ログアウトにより認証結果を破棄しました",
			slog.String("operation", op),
		)
		return nil, ErrSuperseded
	}

	if err != nil {
		msg := failedMessage
		if apiclient.IsTransport(err) {
			msg = err.Error()
		}
		s.errMsg = msg
		s.logger.WarnContext(ctx, "認証に失敗しました",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, &AuthError{Message: msg, Err: err}
	}

	s.user = user
	return user, nil
}

// Logout はサーバーのログアウトを呼び出し、結果に関わらずユーザーをクリアする。
// 呼び出し前に開始されたログイン・会員登録の結果は破棄される。
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()

	err := s.api.Logout(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "サーバーのログアウトに失敗しました",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.user = nil
	s.errMsg = ""
	s.mu.Unlock()
	return err
}

// Invalidate はページ側で401を受け取った際にユーザーをクリアする。
// Logoutと同様に世代を進め、実行中の確認・ログインの結果を破棄させる。
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.user = nil
}

// ClearError は表示済みのエラーメッセージを消去する。
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

// check はセッション確認を1回行う。
// 401の場合のみユーザーをクリアし、それ以外の失敗ではユーザーを維持する。
func (s *Store) check(ctx context.Context) {
	s.mu.Lock()
	s.inflight++
	gen := s.generation
	s.mu.Unlock()

	user, err := s.api.Me(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	s.hydrating = false
	s.initialized = true
	s.readyOnce.Do(func() { close(s.ready) })

	if s.generation != gen {
		return
	}

	switch {
	case err == nil:
		s.user = user
	case apiclient.StatusCode(err) == http.StatusUnauthorized:
		s.user = nil
	case apiclient.IsTransport(err):
		s.logger.WarnContext(ctx, "セッション確認中にサーバーへ接続できませんでした",
			slog.String("error", err.Error()),
		)
	default:
		s.logger.WarnContext(ctx, "セッション確認が失敗しました",
			slog.Int("http_status", apiclient.StatusCode(err)),
			slog.String("error", err.Error()),
		)
	}
}
