package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "taskforge"

// Prom bundles the application's Prometheus collectors. A fresh
// instance registers against the registry it is given, which keeps
// parallel test routers from colliding on metric names.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	AuthFailuresTotal *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	httpLabels := []string{"method", "route", "status"}

	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed.",
		}, httpLabels),
		RequestsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, httpLabels),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		}, []string{"method", "route"}),
		DbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Latency of logical database operations.",
			Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
		}, []string{"op", "status"}),
		DbErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Database errors by logical op and error class.",
		}, []string{"op", "class"}),
		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Authentication failures by stage (credentials, token, inactive).",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.AuthFailuresTotal,
	)
	return p
}

// GinHandleMiddleware records per-request counters and latency keyed
// by the matched route template, so path parameters don't explode
// label cardinality.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		inFlight := p.InFlight.WithLabelValues(method, route)
		inFlight.Inc()
		start := time.Now()

		c.Next()

		inFlight.Dec()
		status := strconv.Itoa(c.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}
