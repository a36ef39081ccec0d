// Package metrics exposes Prometheus instruments for the HTTP boundary.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the instruments registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	// Transitions counts navigation attempts by result (accepted, rejected).
	Transitions *prometheus.CounterVec
	// Recommendations counts ranked candidates returned, by candidate id.
	Recommendations *prometheus.CounterVec
	// ChatRequests counts chat turns by result (ok, error, cancelled).
	ChatRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers every instrument on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "airway_sessions_active",
			Help: "Sessions currently held in memory",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "airway_sessions_created_total",
			Help: "Total sessions started",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "airway_transitions_total",
			Help: "Navigation attempts by result",
		}, []string{"result"}),
		Recommendations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "airway_recommendations_total",
			Help: "Ranked biologic candidates returned by candidate",
		}, []string{"candidate"}),
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "airway_chat_requests_total",
			Help: "Chat turns by result",
		}, []string{"result"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "airway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request durations labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
