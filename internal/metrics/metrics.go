package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Cascade API.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Rate limiting.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Auth and token metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec
	TokensIssuedTotal  *prometheus.CounterVec

	// Records removed by company and department deletion.
	CascadeDeletionsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cascade_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cascade_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_auth_failures_total",
			Help: "Total number of authentication failures by reason.",
		}, []string{"reason"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"kind"}),

		TokensIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_tokens_issued_total",
			Help: "Total number of issued tokens by kind.",
		}, []string{"kind"}),

		CascadeDeletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_deleted_records_total",
			Help: "Total number of records removed by cascading deletes, by entity.",
		}, []string{"entity"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cascade_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.RateLimitRejectionsTotal,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.TokensIssuedTotal,
		m.CascadeDeletionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PoolStatFunc reports connection counts of the database pool.
type PoolStatFunc func() (total, idle, acquired int32)

// RegisterDBPool exposes the pool's connection counts as gauges read at
// scrape time.
func (m *Metrics) RegisterDBPool(stat PoolStatFunc) {
	gauge := func(name, help string, pick func(total, idle, acquired int32) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(pick(stat()))
		})
	}
	m.registry.MustRegister(
		gauge("cascade_db_pool_total_conns", "Total number of connections in the DB pool.",
			func(total, _, _ int32) int32 { return total }),
		gauge("cascade_db_pool_idle_conns", "Number of idle connections in the DB pool.",
			func(_, idle, _ int32) int32 { return idle }),
		gauge("cascade_db_pool_acquired_conns", "Number of acquired connections in the DB pool.",
			func(_, _, acquired int32) int32 { return acquired }),
	)
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, pathPattern string, status int, duration time.Duration, bytes int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, pathPattern).Observe(float64(bytes))
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// IncAuthFailure increments the auth failure counter for the given reason.
func (m *Metrics) IncAuthFailure(reason string) {
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// IncAuthSuccess increments the auth success counter.
func (m *Metrics) IncAuthSuccess(kind string) {
	m.AuthSuccessesTotal.WithLabelValues(kind).Inc()
}

// IncTokenIssued counts an issued access or refresh token.
func (m *Metrics) IncTokenIssued(kind string) {
	m.TokensIssuedTotal.WithLabelValues(kind).Inc()
}

// ObserveCascadeDeletion adds n removed records of entity.
func (m *Metrics) ObserveCascadeDeletion(entity string, n int64) {
	if n <= 0 {
		return
	}
	m.CascadeDeletionsTotal.WithLabelValues(entity).Add(float64(n))
}
