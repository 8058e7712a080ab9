// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API呼び出し結果の分類。
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeDomainError  = "domain_error"
	OutcomeTransport    = "transport_error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアント、ルートガード、トーストストアから利用する。
type MetricsCollector interface {
	RecordAPIRequest(endpoint, outcome string, duration time.Duration)
	RecordGuardRedirect(reason string)
	RecordToast(toastType string)
	SetActiveVisitors(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests    *prometheus.CounterVec
	apiLatency     prometheus.Histogram
	guardRedirects *prometheus.CounterVec
	toasts         *prometheus.CounterVec
	activeVisitors prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "APIサーバー呼び出しの結果別合計数",
		}, []string{"endpoint", "outcome"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_api_latency_seconds",
			Help:    "APIサーバー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_guard_redirects_total",
			Help: "ルートガードによるリダイレクト数",
		}, []string{"reason"}),
		toasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_toasts_total",
			Help: "種別ごとの表示トースト数",
		}, []string{"type"}),
		activeVisitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_active_visitors",
			Help: "保持中の訪問者コンテキスト数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.guardRedirects,
		c.toasts,
		c.activeVisitors,
	)

	return c
}

// RecordAPIRequest はAPI呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordAPIRequest(endpoint, outcome string, duration time.Duration) {
	c.apiRequests.WithLabelValues(endpoint, outcome).Inc()
	c.apiLatency.Observe(duration.Seconds())
}

// RecordGuardRedirect はルートガードのリダイレクトを記録する。
func (c *Collector) RecordGuardRedirect(reason string) {
	c.guardRedirects.WithLabelValues(reason).Inc()
}

// RecordToast はトースト表示を記録する。
func (c *Collector) RecordToast(toastType string) {
	c.toasts.WithLabelValues(toastType).Inc()
}

// SetActiveVisitors は保持中の訪問者数を設定する。
func (c *Collector) SetActiveVisitors(count int) {
	c.activeVisitors.Set(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAPIRequest(string, string, time.Duration) {}
func (Nop) RecordGuardRedirect(string)                     {}
func (Nop) RecordToast(string)                             {}
func (Nop) SetActiveVisitors(int)                          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
