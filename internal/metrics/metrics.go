// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// SWAPIクライアント、お気に入りサービス、詳細セッションから利用する。
type MetricsCollector interface {
	RecordRemoteFetch(resource string, err error)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(resource string, duration time.Duration)
	RecordFavoriteOp(op string, err error)
	RecordSectionRetry(section string)
	SessionStarted()
	SessionClosed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	remoteFetch    *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	favoriteOps    *prometheus.CounterVec
	sectionRetry   *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theforce_remote_fetch_total",
			Help: "SWAPIリソース取得の合計数（結果別）",
		}, []string{"resource", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theforce_remote_http_status_total",
			Help: "SWAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "theforce_remote_fetch_latency_seconds",
			Help:    "SWAPIリソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		favoriteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theforce_favorite_ops_total",
			Help: "お気に入りストア操作の合計数（操作・結果別）",
		}, []string{"op", "result"}),
		sectionRetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theforce_section_retry_total",
			Help: "接続回復による詳細セクション再取得の合計数",
		}, []string{"section"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "theforce_detail_sessions_active",
			Help: "稼働中の詳細セッション数",
		}),
	}

	reg.MustRegister(
		c.remoteFetch,
		c.httpStatus,
		c.fetchLatency,
		c.favoriteOps,
		c.sectionRetry,
		c.activeSessions,
	)

	return c
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordRemoteFetch はSWAPIリソース取得の結果を記録する。
func (c *Collector) RecordRemoteFetch(resource string, err error) {
	c.remoteFetch.WithLabelValues(resource, resultLabel(err)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(resource string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordFavoriteOp はお気に入りストア操作の結果を記録する。
func (c *Collector) RecordFavoriteOp(op string, err error) {
	c.favoriteOps.WithLabelValues(op, resultLabel(err)).Inc()
}

// RecordSectionRetry はセクション再取得を記録する。
func (c *Collector) RecordSectionRetry(section string) {
	c.sectionRetry.WithLabelValues(section).Inc()
}

// SessionStarted は稼働中セッション数を1増やす。
func (c *Collector) SessionStarted() {
	c.activeSessions.Inc()
}

// SessionClosed は稼働中セッション数を1減らす。
func (c *Collector) SessionClosed() {
	c.activeSessions.Dec()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordRemoteFetch(string, error) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordFetchLatency(string, time.Duration) {}
func (Nop) RecordFavoriteOp(string, error) {}
func (Nop) RecordSectionRetry(string) {}
func (Nop) SessionStarted() {}
func (Nop) SessionClosed() {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
