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
// バックエンドクライアントやセッションストアから利用する。
type MetricsCollector interface {
	RecordBackendStatus(backend string, statusCode int)
	RecordBackendFailure(backend string, reason string)
	RecordBackendLatency(backend string, duration time.Duration)
	RecordSessionEvent(role string, event string)
	RecordSnapshotWrite(ok bool)
	RecordApplication(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendStatus  *prometheus.CounterVec
	backendFail    *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	sessionEvents  *prometheus.CounterVec
	snapshotWrites *prometheus.CounterVec
	applications   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobportal_backend_status_total",
			Help: "バックエンドAPIのHTTPステータスコード別レスポンス数",
		}, []string{"backend", "status_code"}),
		backendFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobportal_backend_fail_total",
			Help: "バックエンドAPI呼び出し失敗の合計数",
		}, []string{"backend", "reason"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobportal_backend_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobportal_session_events_total",
			Help: "ロール別のセッションイベント数（login, login_failed, logout, expired）",
		}, []string{"role", "event"}),
		snapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobportal_snapshot_writes_total",
			Help: "状態スナップショット書き込みの合計数",
		}, []string{"result"}),
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobportal_applications_total",
			Help: "求人応募の結果別件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.backendStatus,
		c.backendFail,
		c.backendLatency,
		c.sessionEvents,
		c.snapshotWrites,
		c.applications,
	)

	return c
}

// RecordBackendStatus はバックエンドのHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(backend string, statusCode int) {
	c.backendStatus.WithLabelValues(backend, strconv.Itoa(statusCode)).Inc()
}

// RecordBackendFailure はバックエンド呼び出しの失敗を記録する。
func (c *Collector) RecordBackendFailure(backend string, reason string) {
	c.backendFail.WithLabelValues(backend, reason).Inc()
}

// RecordBackendLatency はバックエンド呼び出しのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(backend string, duration time.Duration) {
	c.backendLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordSessionEvent はセッションイベントを記録する。
func (c *Collector) RecordSessionEvent(role string, event string) {
	c.sessionEvents.WithLabelValues(role, event).Inc()
}

// RecordSnapshotWrite はスナップショット書き込み結果を記録する。
func (c *Collector) RecordSnapshotWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.snapshotWrites.WithLabelValues(result).Inc()
}

// RecordApplication は応募結果（submitted, duplicate, failed）を記録する。
func (c *Collector) RecordApplication(result string) {
	c.applications.WithLabelValues(result).Inc()
}

// Nop は何も記録しないMetricsCollector。
// CLIモードとテストで使う。
type Nop struct{}

func (Nop) RecordBackendStatus(string, int)            {}
func (Nop) RecordBackendFailure(string, string)        {}
func (Nop) RecordBackendLatency(string, time.Duration) {}
func (Nop) RecordSessionEvent(string, string)          {}
func (Nop) RecordSnapshotWrite(bool)                   {}
func (Nop) RecordApplication(string)                   {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
