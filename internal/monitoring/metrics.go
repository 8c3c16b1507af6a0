package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 提交端点指标
	SubmissionsTotal *prometheus.CounterVec // outcome: accepted/validation/verification/rate_limited/origin
	ThreadsCreated   prometheus.Counter

	// 入站路由指标
	InboundTotal *prometheus.CounterVec // route: admin_reply/visitor_reply/new_thread/loop_dropped/empty_reply/dropped

	// 出站转发指标
	RelaysTotal *prometheus.CounterVec // channel: notify/transactional; status: ok/error

	// 限流指标
	RateLimitBlocks prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建并注册监控指标。
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailbridge_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailbridge_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailbridge_submissions_total",
			Help: "Contact form submissions by outcome",
		}, []string{"outcome"}),
		ThreadsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbridge_threads_created_total",
			Help: "Conversation threads created",
		}),
		InboundTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailbridge_inbound_messages_total",
			Help: "Inbound messages by routing decision",
		}, []string{"route"}),
		RelaysTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailbridge_relays_total",
			Help: "Outbound relays by channel and status",
		}, []string{"channel", "status"}),
		RateLimitBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbridge_rate_limit_blocks_total",
			Help: "Requests rejected by the rate limiter",
		}),
		PanicsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailbridge_panics_total",
			Help: "Recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求。
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSubmission 记录一次提交结果。
func (m *Metrics) RecordSubmission(outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordInbound 记录一次入站路由决策。
func (m *Metrics) RecordInbound(route string) {
	m.InboundTotal.WithLabelValues(route).Inc()
}

// RecordRelay 记录一次出站转发结果。
func (m *Metrics) RecordRelay(channel string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RelaysTotal.WithLabelValues(channel, status).Inc()
}

// Handler 返回 /metrics 的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
