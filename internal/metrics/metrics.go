// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証方式のラベル値。
const (
	MethodPassword = "password"
	MethodGitHub   = "github"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordSignup(method string)
	RecordLogin(method string)
	RecordPostCreated()
	RecordApplicationCreated()
	RecordProfileSync(success bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups        *prometheus.CounterVec
	logins         *prometheus.CounterVec
	postsCreated   prometheus.Counter
	appsCreated    prometheus.Counter
	profileSync    *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teammate_signups_total",
			Help: "サインアップの合計数（認証方式別）",
		}, []string{"method"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teammate_logins_total",
			Help: "ログイン成功の合計数（認証方式別）",
		}, []string{"method"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teammate_posts_created_total",
			Help: "作成されたアイデア投稿の合計数",
		}),
		appsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teammate_applications_created_total",
			Help: "作成された応募の合計数",
		}),
		profileSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teammate_profile_sync_total",
			Help: "プロフィール同期の実行数（結果別）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teammate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "teammate_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.postsCreated,
		c.appsCreated,
		c.profileSync,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignup はサインアップを記録する。
func (c *Collector) RecordSignup(method string) {
	c.signups.WithLabelValues(method).Inc()
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(method string) {
	c.logins.WithLabelValues(method).Inc()
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordApplicationCreated は応募作成を記録する。
func (c *Collector) RecordApplicationCreated() {
	c.appsCreated.Inc()
}

// RecordProfileSync はプロフィール同期の結果を記録する。
func (c *Collector) RecordProfileSync(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.profileSync.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
