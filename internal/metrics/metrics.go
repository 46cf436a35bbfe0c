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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordMatch()
	RecordExpired(count int64)
	RecordMatchFailure(reason string)
	RecordSweepLatency(duration time.Duration)
	RecordOfferSyncItem(result string)
	RecordReportGenerated(status string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	matchTotal    prometheus.Counter
	expiredTotal  prometheus.Counter
	matchFail     *prometheus.CounterVec
	sweepLatency  prometheus.Histogram
	offerSyncItem *prometheus.CounterVec
	reportTotal   *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		matchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ichiba_limit_match_total",
			Help: "約定した指値注文の合計数",
		}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ichiba_limit_expired_total",
			Help: "失効した指値注文の合計数",
		}),
		matchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_limit_match_fail_total",
			Help: "指値マッチング失敗の合計数",
		}, []string{"reason"}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ichiba_sweep_latency_seconds",
			Help:    "マッチングスイープ1サイクルのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		offerSyncItem: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_offer_sync_items_total",
			Help: "処理されたオファー同期アイテムの結果別合計数",
		}, []string{"result"}),
		reportTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_sales_reports_total",
			Help: "生成された売上レポートの状態別合計数",
		}, []string{"status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.matchTotal,
		c.expiredTotal,
		c.matchFail,
		c.sweepLatency,
		c.offerSyncItem,
		c.reportTotal,
		c.httpStatus,
	)

	return c
}

// RecordMatch は指値の約定を記録する。
func (c *Collector) RecordMatch() {
	c.matchTotal.Inc()
}

// RecordExpired は失効した指値の件数を記録する。
func (c *Collector) RecordExpired(count int64) {
	c.expiredTotal.Add(float64(count))
}

// RecordMatchFailure はマッチング失敗を理由別に記録する。
func (c *Collector) RecordMatchFailure(reason string) {
	c.matchFail.WithLabelValues(reason).Inc()
}

// RecordSweepLatency はスイープ1サイクルのレイテンシを記録する。
func (c *Collector) RecordSweepLatency(duration time.Duration) {
	c.sweepLatency.Observe(duration.Seconds())
}

// RecordOfferSyncItem はオファー同期アイテムの処理結果を記録する。
func (c *Collector) RecordOfferSyncItem(result string) {
	c.offerSyncItem.WithLabelValues(result).Inc()
}

// RecordReportGenerated は売上レポートの生成結果を記録する。
func (c *Collector) RecordReportGenerated(status string) {
	c.reportTotal.WithLabelValues(status).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
