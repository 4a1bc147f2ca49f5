package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus instruments the application records.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	AuthzDenials     *prometheus.CounterVec
	LoginsTotal      *prometheus.CounterVec
	TodosCreated     prometheus.Counter
	OrgsCreated      prometheus.Counter
	InvitationsSent  prometheus.Counter
	JanitorPurged    *prometheus.CounterVec
	RateLimitRejects prometheus.Counter
}

// NewMetrics creates the metric set on a private registry so tests can
// instantiate it repeatedly without duplicate-registration panics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "todod_http_requests_total",
			Help: "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todod_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthzDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "todod_authz_denials_total",
			Help: "Authorization denials by kind.",
		}, []string{"kind"}),
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "todod_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		TodosCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "todod_todos_created_total",
			Help: "Todos created.",
		}),
		OrgsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "todod_organizations_created_total",
			Help: "Organizations created.",
		}),
		InvitationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "todod_invitations_sent_total",
			Help: "Invitations created.",
		}),
		JanitorPurged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "todod_janitor_purged_total",
			Help: "Rows purged by the janitor, by kind.",
		}, []string{"kind"}),
		RateLimitRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "todod_ratelimit_rejects_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency. route should be the
// route template, not the raw path, to bound label cardinality.
func (m *Metrics) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &metricsRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter
	status int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
