// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/platfeed/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フィードサービス、リアルタイムハブ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordPostCreated(platform model.Platform)
	RecordLikeToggled(platform model.Platform, liked bool)
	RecordCommentAdded(platform model.Platform)
	RecordEventPublished(event string, recipients int)
	RecordEventDropped(event string)
	SetRealtimeConnections(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

var _ MetricsCollector = (*Collector)(nil)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	postsCreated        *prometheus.CounterVec
	likesToggled        *prometheus.CounterVec
	commentsAdded       *prometheus.CounterVec
	eventsPublished     *prometheus.CounterVec
	eventsDelivered     *prometheus.CounterVec
	eventsDropped       *prometheus.CounterVec
	realtimeConnections prometheus.Gauge
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_posts_created_total",
			Help: "プラットフォーム別の投稿作成数",
		}, []string{"platform"}),
		likesToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_likes_toggled_total",
			Help: "プラットフォーム・操作別のいいね切り替え数",
		}, []string{"platform", "action"}),
		commentsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_comments_added_total",
			Help: "プラットフォーム別のコメント追加数",
		}, []string{"platform"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_realtime_events_published_total",
			Help: "イベント種別ごとの配信要求数",
		}, []string{"event"}),
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_realtime_events_delivered_total",
			Help: "イベント種別ごとに送信キューへ積んだ接続数の合計",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_realtime_events_dropped_total",
			Help: "送信キューが満杯で破棄したイベント数",
		}, []string{"event"}),
		realtimeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "platfeed_realtime_connections",
			Help: "現在のリアルタイム接続数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platfeed_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.likesToggled,
		c.commentsAdded,
		c.eventsPublished,
		c.eventsDelivered,
		c.eventsDropped,
		c.realtimeConnections,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated(platform model.Platform) {
	c.postsCreated.WithLabelValues(string(platform)).Inc()
}

// RecordLikeToggled はいいねの切り替えを記録する。likedがfalseの場合は取り消しとして数える。
func (c *Collector) RecordLikeToggled(platform model.Platform, liked bool) {
	action := "unlike"
	if liked {
		action = "like"
	}
	c.likesToggled.WithLabelValues(string(platform), action).Inc()
}

// RecordCommentAdded はコメント追加を記録する。
func (c *Collector) RecordCommentAdded(platform model.Platform) {
	c.commentsAdded.WithLabelValues(string(platform)).Inc()
}

// RecordEventPublished はイベント配信と、送信キューに積めた接続数を記録する。
func (c *Collector) RecordEventPublished(event string, recipients int) {
	c.eventsPublished.WithLabelValues(event).Inc()
	c.eventsDelivered.WithLabelValues(event).Add(float64(recipients))
}

// RecordEventDropped は送信キュー満杯によるイベント破棄を記録する。
func (c *Collector) RecordEventDropped(event string) {
	c.eventsDropped.WithLabelValues(event).Inc()
}

// SetRealtimeConnections は現在の接続数を設定する。
func (c *Collector) SetRealtimeConnections(count int) {
	c.realtimeConnections.Set(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
