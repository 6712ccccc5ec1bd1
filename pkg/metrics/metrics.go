// Package metrics はPrometheus形式のメトリクスを収集・公開する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopapp"

// Metrics はアプリケーションのコレクター一式を保持する。
// サーバーごとにレジストリを分けることで、テストで並列にサーバーを生成できる。
type Metrics struct {
	registry     *prometheus.Registry
	inFlight     prometheus.Gauge
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	adminCalls   *prometheus.CounterVec
	webhookCalls *prometheus.CounterVec
}

// New はコレクターを登録した新しいMetricsを生成する。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		adminCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin_api",
			Name:      "calls_total",
			Help:      "Total number of outbound Admin API calls.",
		}, []string{"operation", "result"}),
		webhookCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "deliveries_total",
			Help:      "Total number of webhook deliveries received.",
		}, []string{"topic", "status"}),
	}

	m.registry.MustRegister(
		m.inFlight,
		m.requests,
		m.duration,
		m.adminCalls,
		m.webhookCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry はメトリクスのレジストリを返す。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は登録済みメトリクスを公開するHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware はHTTPリクエストのメトリクスを記録するGinミドルウェアを返す。
// ルートラベルにはGinのルートパターンを使い、未登録パスは "fallback" にまとめる。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "fallback"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveAdminCall はAdmin API呼び出しの結果を記録する。
func (m *Metrics) ObserveAdminCall(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.adminCalls.WithLabelValues(operation, result).Inc()
}

// ObserveWebhook はWebhook受信の結果をHTTPステータスで記録する。
func (m *Metrics) ObserveWebhook(topic string, status int) {
	if topic == "" {
		topic = "unknown"
	}
	m.webhookCalls.WithLabelValues(topic, strconv.Itoa(status)).Inc()
}
