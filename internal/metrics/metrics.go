// Package metrics exposes Prometheus instrumentation for the API and relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one server.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	generations     *prometheus.CounterVec
	generationTime  *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	relayConns      prometheus.Gauge
	relayFrames     *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkcoach",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linkcoach",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkcoach",
			Name:      "generations_total",
			Help:      "Text generations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		generationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linkcoach",
			Name:      "generation_duration_seconds",
			Help:      "Text generation latency by kind.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "linkcoach",
			Name:      "chat_rate_limited_total",
			Help:      "Chat requests rejected by the rate limiter.",
		}),
		relayConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "linkcoach",
			Name:      "relay_connections",
			Help:      "Open frame relay connections.",
		}),
		relayFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkcoach",
			Name:      "relay_frames_total",
			Help:      "Relay frames by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.requests, m.requestDuration,
		m.generations, m.generationTime,
		m.rateLimited, m.relayConns, m.relayFrames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveGeneration records one generation call of kind ("report" or "chat").
func (m *Metrics) ObserveGeneration(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
	m.generationTime.WithLabelValues(kind).Observe(d.Seconds())
}

// RateLimited counts a rejected chat request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RelayConnected adjusts the open relay connection gauge by delta.
func (m *Metrics) RelayConnected(delta int) {
	if m == nil {
		return
	}
	m.relayConns.Add(float64(delta))
}

// RelayFrame counts a relayed frame by outcome ("forwarded", "dropped").
func (m *Metrics) RelayFrame(outcome string) {
	if m == nil {
		return
	}
	m.relayFrames.WithLabelValues(outcome).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
