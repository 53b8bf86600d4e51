package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Tenancy metrics
	TenantResolutionsTotal  *prometheus.CounterVec
	TenantSelectionRejected prometheus.Counter

	// Authorization metrics
	AccessDecisionsTotal *prometheus.CounterVec

	// Governed record metrics
	RecordOperationsTotal *prometheus.CounterVec

	// Integrity metrics. Nonzero values mean the database caught an
	// ownership bug the application missed.
	IntegrityViolationsTotal *prometheus.CounterVec

	// Membership metrics
	MembershipTransitionsTotal *prometheus.CounterVec
	ExpiredInvitationsTotal    prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinicore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinicore_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		TenantResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicore_tenant_resolutions_total",
				Help: "Total number of tenant context resolutions",
			},
			[]string{"tenant_type", "outcome"},
		),
		TenantSelectionRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clinicore_tenant_selection_rejected_total",
				Help: "Total number of rejected tenant selections",
			},
		),

		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicore_access_decisions_total",
				Help: "Total number of permission evaluations",
			},
			[]string{"action", "effect"},
		),

		RecordOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicore_record_operations_total",
				Help: "Total number of governed record operations",
			},
			[]string{"collection", "operation", "status"},
		),

		IntegrityViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicore_integrity_violations_total",
				Help: "Total number of database integrity violations on governed tables",
			},
			[]string{"table"},
		),

		MembershipTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicore_membership_transitions_total",
				Help: "Total number of membership state transitions",
			},
			[]string{"transition"},
		),
		ExpiredInvitationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clinicore_expired_invitations_total",
				Help: "Total number of invitations expired by the cleanup job",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinicore_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinicore_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.TenantResolutionsTotal,
		m.TenantSelectionRejected,
		m.AccessDecisionsTotal,
		m.RecordOperationsTotal,
		m.IntegrityViolationsTotal,
		m.MembershipTransitionsTotal,
		m.ExpiredInvitationsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// ObserveDBStats copies connection pool stats into the gauges
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
