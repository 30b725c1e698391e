// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はポーラー・時刻表クライアント・通知ディスパッチャが記録する
// Prometheusメトリクスの実装。各コンポーネントが要求する小さなインターフェース
// （PollMetrics、UpstreamMetrics、CacheMetrics、NotifyMetrics）をすべて満たす。
type Collector struct {
	pollCycles           prometheus.Counter
	pollDuration         prometheus.Histogram
	subscriptionsChecked prometheus.Counter
	notificationsSent    *prometheus.CounterVec
	upstreamRequests     prometheus.Counter
	upstreamErrors       prometheus.Counter
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	trainsNotFound       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_poll_cycles_total",
			Help: "実行されたポーリングパスの合計数",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railwatch_poll_duration_seconds",
			Help:    "ポーリングパス1回の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		subscriptionsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_subscriptions_checked_total",
			Help: "評価された購読の合計数",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "railwatch_notifications_sent_total",
			Help: "種別ごとの送信済み通知の合計数",
		}, []string{"type"}),
		upstreamRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_upstream_requests_total",
			Help: "上流時刻表APIへのリクエストの合計数",
		}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_upstream_errors_total",
			Help: "上流時刻表APIの呼び出し失敗の合計数",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_timetable_cache_hits_total",
			Help: "時刻表キャッシュのヒット合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_timetable_cache_misses_total",
			Help: "時刻表キャッシュのミス合計数",
		}),
		trainsNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railwatch_trains_not_found_total",
			Help: "時刻表に該当列車が見つからなかった照会の合計数",
		}),
	}

	reg.MustRegister(
		c.pollCycles,
		c.pollDuration,
		c.subscriptionsChecked,
		c.notificationsSent,
		c.upstreamRequests,
		c.upstreamErrors,
		c.cacheHits,
		c.cacheMisses,
		c.trainsNotFound,
	)

	return c
}

// RecordPollCycle はポーリングパス1回の完了を記録する。
func (c *Collector) RecordPollCycle(duration time.Duration) {
	c.pollCycles.Inc()
	c.pollDuration.Observe(duration.Seconds())
}

// RecordSubscriptionsChecked は評価された購読数を記録する。
func (c *Collector) RecordSubscriptionsChecked(count int) {
	c.subscriptionsChecked.Add(float64(count))
}

// RecordNotificationSent は通知送信を種別付きで記録する。
func (c *Collector) RecordNotificationSent(notificationType string) {
	c.notificationsSent.WithLabelValues(notificationType).Inc()
}

// RecordUpstreamRequest は上流APIリクエストを記録する。
func (c *Collector) RecordUpstreamRequest() {
	c.upstreamRequests.Inc()
}

// RecordUpstreamError は上流API呼び出しの失敗を記録する。
func (c *Collector) RecordUpstreamError() {
	c.upstreamErrors.Inc()
}

// RecordCacheHit は時刻表キャッシュのヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss は時刻表キャッシュのミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordTrainNotFound は該当列車なしの照会結果を記録する。
func (c *Collector) RecordTrainNotFound() {
	c.trainsNotFound.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
