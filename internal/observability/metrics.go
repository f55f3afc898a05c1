// Package observability owns the Prometheus registry and the HTTP and engine collectors.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"callos/internal/calls"
	"callos/internal/objections"
	"callos/internal/outcomes"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	transitions   *prometheus.CounterVec
	gateOverrides prometheus.Counter
	outcomes      *prometheus.CounterVec
	objections    *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callos_call_transitions_total",
			Help: "Call status transitions applied",
		}, []string{"from", "to"}),
		gateOverrides: f.NewCounter(prometheus.CounterOpts{
			Name: "callos_gate_overrides_total",
			Help: "Calls started with an overridden qualification gate",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callos_call_outcomes_total",
			Help: "Call outcomes recorded, by type",
		}, []string{"type"}),
		objections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "callos_objections_total",
			Help: "Objection responses recorded, by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// Middleware records request metrics. Routes are labelled with the matched template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.httpRequests.With(labels).Inc()
		m.httpDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) CallTransitioned(from, to calls.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) GateOverridden() { m.gateOverrides.Inc() }

func (m *Metrics) OutcomeRecorded(t outcomes.Type) {
	m.outcomes.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) ObjectionRecorded(t objections.Type, o objections.Outcome) {
	m.objections.WithLabelValues(string(t), string(o)).Inc()
}
