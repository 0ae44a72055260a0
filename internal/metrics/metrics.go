// Package metrics Prometheus 指标导出
//
// 活跃追踪的错误吞掉策略（追踪失败不得阻断消息处理）要求为运维
// 保留可见性：每一次被吞掉的失败都会计数。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有活跃追踪指标
type Metrics struct {
	// 活跃事件指标
	ActivityEventsTotal *prometheus.CounterVec

	// 被吞掉的失败（按操作分类）
	SwallowedFailuresTotal *prometheus.CounterVec

	// 当前活跃会话数（get_all 时刷新）
	ActiveSessions prometheus.Gauge

	// 同步指标
	SyncRowsTotal *prometheus.CounterVec
	SyncDuration  *prometheus.HistogramVec

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New 创建指标实例
func New(namespace string) *Metrics {
	return &Metrics{
		ActivityEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_events_total",
				Help:      "Total recorded activity events",
			},
			[]string{"kind"}, // user | bot
		),
		SwallowedFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swallowed_failures_total",
				Help:      "Backend failures absorbed by the best-effort policy",
			},
			[]string{"operation"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Active sessions observed by the last enumeration",
			},
		),
		SyncRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_rows_total",
				Help:      "Rows processed during hydrate/flush",
			},
			[]string{"phase", "result"}, // hydrate|flush, ok|skipped|failed
		),
		SyncDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Hydrate/flush duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"phase"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path"},
		),
	}
}

// RecordEvent 记录一次活跃事件
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.ActivityEventsTotal.WithLabelValues(kind).Inc()
}

// RecordSwallowedFailure 记录一次被吞掉的失败
func (m *Metrics) RecordSwallowedFailure(operation string) {
	if m == nil {
		return
	}
	m.SwallowedFailuresTotal.WithLabelValues(operation).Inc()
}

// SetActiveSessions 刷新活跃会话数
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordSyncRow 记录一行 hydrate/flush 结果
func (m *Metrics) RecordSyncRow(phase, result string) {
	if m == nil {
		return
	}
	m.SyncRowsTotal.WithLabelValues(phase, result).Inc()
}

// RecordSyncDuration 记录一次 hydrate/flush 耗时
func (m *Metrics) RecordSyncDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Middleware 创建 HTTP 指标中间件
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将会话身份替换为占位符，避免高基数
func normalizePath(path string) string {
	const sessions = "/api/v1/activity/sessions/"
	if len(path) > len(sessions) && path[:len(sessions)] == sessions {
		return sessions + "{identity}"
	}
	return path
}

// Handler 返回 Prometheus HTTP Handler
func Handler() http.Handler {
	return promhttp.Handler()
}
