package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标管理器，每个实例拥有独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 数据库指标
	dbQueryDuration *prometheus.HistogramVec
	dbErrorsTotal   *prometheus.CounterVec

	// 缓存指标
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	// 业务指标
	recordChanges    *prometheus.CounterVec
	notificationsOut *prometheus.CounterVec
	sseStreams       prometheus.Gauge
	sseDropped       prometheus.Counter
	businessGauge    *prometheus.GaugeVec
	loginsTotal      *prometheus.CounterVec
}

// NewMetrics 创建指标管理器
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		dbQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		dbErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_errors_total",
				Help: "Total number of failed database statements",
			},
			[]string{"operation", "table"},
		),

		cacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		recordChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citywatch_record_changes_total",
				Help: "Records created, updated or deleted per resource",
			},
			[]string{"resource", "action"},
		),
		notificationsOut: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citywatch_notifications_total",
				Help: "Notifications persisted for users",
			},
			[]string{"kind"},
		),
		sseStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "citywatch_sse_streams",
			Help: "Open server-sent-event streams",
		}),
		sseDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "citywatch_sse_dropped_total",
			Help: "Events dropped because a stream buffer was full",
		}),
		businessGauge: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "citywatch_business_metrics",
				Help: "Business metrics refreshed by the scheduler",
			},
			[]string{"metric", "category"},
		),
		loginsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citywatch_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
	}
}

// Registry 供其它组件注册自定义指标
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int64) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordDBQuery 记录数据库查询指标
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.dbErrorsTotal.WithLabelValues(operation, table).Inc()
	}
}

func (m *Metrics) RecordCacheHit(cache string)  { m.cacheHitsTotal.WithLabelValues(cache).Inc() }
func (m *Metrics) RecordCacheMiss(cache string) { m.cacheMissesTotal.WithLabelValues(cache).Inc() }

func (m *Metrics) RecordRecordChange(resource, action string) {
	m.recordChanges.WithLabelValues(resource, action).Inc()
}

func (m *Metrics) RecordNotification(kind string) { m.notificationsOut.WithLabelValues(kind).Inc() }

func (m *Metrics) RecordLogin(result string) { m.loginsTotal.WithLabelValues(result).Inc() }

func (m *Metrics) SSEStreamOpened() { m.sseStreams.Inc() }
func (m *Metrics) SSEStreamClosed() { m.sseStreams.Dec() }
func (m *Metrics) SSEDropped()      { m.sseDropped.Inc() }

// SetBusinessMetric 设置业务指标
func (m *Metrics) SetBusinessMetric(metric, category string, value float64) {
	m.businessGauge.WithLabelValues(metric, category).Set(value)
}
