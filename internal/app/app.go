package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/logger"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/storefront"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	log = logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

// Server はワイヤリング済みのHTTPハンドラーと、停止が必要なバックグラウンド処理をまとめたもの。
type Server struct {
	Handler  http.Handler
	Registry *storefront.Registry

	rateLimiter *middleware.RateLimiter
}

// Close は訪問者コンテキストとレート制限のクリーンアップを停止する。
func (s *Server) Close() {
	s.Registry.Stop()
	s.rateLimiter.Stop()
}

// Build は設定から全依存関係をワイヤリングし、Serverを返す。
func Build(cfg *config.Config, log *slog.Logger) (*Server, error) {
	// 1. メトリクス
	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	// 2. 訪問者コンテキストのレジストリ
	registryCfg := storefront.DefaultRegistryConfig()
	registryCfg.IdleTTL = cfg.VisitorIdleTTL
	registry := storefront.NewRegistry(registryCfg, storefront.Options{
		BaseURL:        cfg.APIBaseURL,
		Logger:         log,
		Metrics:        collector,
		HydrationDelay: cfg.SessionHydrationDelay,
	})

	// 3. レート制限（configはreq/min単位なのでreq/secに変換する）
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rlCfg.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
		rlCfg.AuthBurst = cfg.RateLimitAuth
	}
	rateLimiter := middleware.NewRateLimiter(rlCfg)

	// 4. ページハンドラー
	pages, err := handler.NewHandler(handler.Config{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}, log)
	if err != nil {
		registry.Stop()
		rateLimiter.Stop()
		return nil, fmt.Errorf("failed to build handlers: %w", err)
	}

	// 5. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		Registry:       registry,
		RateLimiter:    rateLimiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(promReg),
		Cookie: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
		Handler: pages,
	})

	return &Server{
		Handler:     router,
		Registry:    registry,
		rateLimiter: rateLimiter,
	}, nil
}

// runServe はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	srv, err := Build(cfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront server starting",
			slog.String("addr", server.Addr),
			slog.String("api_base_url", cfg.APIBaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down storefront server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("storefront server stopped gracefully",
		slog.Int("active_visitors", srv.Registry.Len()),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
