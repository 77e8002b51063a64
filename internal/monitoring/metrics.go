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
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 站内信指标
	MessagesCreated   *prometheus.CounterVec
	MessagesRead      prometheus.Counter
	MessagesDeleted   prometheus.Counter
	RecipientFanout   prometheus.Histogram
	TemplateDispatch  *prometheus.CounterVec
	ThreadBuildTime   prometheus.Histogram
	NotifyDispatch    *prometheus.CounterVec
	ContactInquiries  *prometheus.CounterVec
	UnreadCacheLookup *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "communitymsg_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "communitymsg_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "communitymsg_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		MessagesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_messages_created_total",
				Help: "Total number of messages created, by message type",
			},
			[]string{"type"},
		),

		MessagesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "communitymsg_messages_read_total",
				Help: "Total number of message read transitions",
			},
		),

		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "communitymsg_messages_deleted_total",
				Help: "Total number of per-user message deletions",
			},
		),

		RecipientFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "communitymsg_recipient_fanout",
				Help:    "Number of recipient rows created per message",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		TemplateDispatch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_template_dispatch_total",
				Help: "Total number of template dispatches, by template id",
			},
			[]string{"template"},
		),

		ThreadBuildTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "communitymsg_thread_build_duration_seconds",
				Help:    "Time spent reconstructing inbox threads",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),

		NotifyDispatch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_notify_dispatch_total",
				Help: "Notification dispatch outcomes",
			},
			[]string{"outcome"},
		),

		ContactInquiries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_contact_inquiries_total",
				Help: "Contact form inquiries, by category",
			},
			[]string{"category"},
		),

		UnreadCacheLookup: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_unread_cache_lookups_total",
				Help: "Unread count cache lookups, by result",
			},
			[]string{"result"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "communitymsg_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "communitymsg_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求的指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordMessageCreated 记录消息创建
func (m *Metrics) RecordMessageCreated(messageType string, fanout int) {
	m.MessagesCreated.WithLabelValues(messageType).Inc()
	m.RecipientFanout.Observe(float64(fanout))
}

// RecordMessageRead 记录已读状态翻转
func (m *Metrics) RecordMessageRead() {
	m.MessagesRead.Inc()
}

// RecordMessageDeleted 记录消息删除
func (m *Metrics) RecordMessageDeleted() {
	m.MessagesDeleted.Inc()
}

// RecordTemplateDispatch 记录模板下发
func (m *Metrics) RecordTemplateDispatch(templateID string) {
	m.TemplateDispatch.WithLabelValues(templateID).Inc()
}

// RecordThreadBuild 记录会话树重建耗时
func (m *Metrics) RecordThreadBuild(duration time.Duration) {
	m.ThreadBuildTime.Observe(duration.Seconds())
}

// RecordNotifyDispatch 记录通知分发结果
func (m *Metrics) RecordNotifyDispatch(outcome string) {
	m.NotifyDispatch.WithLabelValues(outcome).Inc()
}

// RecordContactInquiry 记录联系表单来件
func (m *Metrics) RecordContactInquiry(category string) {
	m.ContactInquiries.WithLabelValues(category).Inc()
}

// RecordUnreadCacheLookup 记录未读计数缓存命中情况
func (m *Metrics) RecordUnreadCacheLookup(result string) {
	m.UnreadCacheLookup.WithLabelValues(result).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 /metrics 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
