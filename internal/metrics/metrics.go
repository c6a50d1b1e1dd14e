// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やハンドラーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordLoginRateLimited()
	RecordSessionIssued()
	RecordSessionRevoked()
	RecordHTTPStatus(statusCode int)
	RecordFeedbackSubmitted(anonymous bool)
	RecordFormCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess     prometheus.Counter
	loginFail        prometheus.Counter
	loginRateLimited prometheus.Counter
	sessionsIssued   prometheus.Counter
	sessionsRevoked  prometheus.Counter
	httpStatus       *prometheus.CounterVec
	feedbacks        *prometheus.CounterVec
	formsCreated     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formman_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formman_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		loginRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formman_login_rate_limited_total",
			Help: "試行回数制限で拒否されたログインの合計数",
		}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formman_sessions_issued_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formman_sessions_revoked_total",
			Help: "失効されたセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		feedbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formman_feedbacks_submitted_total",
			Help: "投稿されたフィードバックの合計数",
		}, []string{"anonymous"}),
		formsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formman_forms_created_total",
			Help: "作成されたフォームの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.loginRateLimited,
		c.sessionsIssued,
		c.sessionsRevoked,
		c.httpStatus,
		c.feedbacks,
		c.formsCreated,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordLoginRateLimited は試行回数制限による拒否を記録する。
func (c *Collector) RecordLoginRateLimited() {
	c.loginRateLimited.Inc()
}

// RecordSessionIssued はセッション発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

// RecordSessionRevoked はセッション失効を記録する。
func (c *Collector) RecordSessionRevoked() {
	c.sessionsRevoked.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFeedbackSubmitted はフィードバック投稿を記録する。
func (c *Collector) RecordFeedbackSubmitted(anonymous bool) {
	c.feedbacks.WithLabelValues(strconv.FormatBool(anonymous)).Inc()
}

// RecordFormCreated はフォーム作成を記録する。
func (c *Collector) RecordFormCreated() {
	c.formsCreated.Inc()
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
