// Package metrics exposes Prometheus collectors shared by the HTTP services.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds one service's collectors and the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	aiCalls      *prometheus.CounterVec
	aiDuration   *prometheus.HistogramVec
	mirrorWrites *prometheus.CounterVec
	artJobs      *prometheus.CounterVec
	dreams       prometheus.Counter
}

// New registers the collectors under the given subsystem, e.g. "aigateway".
func New(subsystem string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "http_inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"method", "route"}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "ai_calls_total",
			Help:      "Generative-AI calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "ai_call_duration_seconds",
			Help:      "Duration of generative-AI calls, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}, []string{"operation"}),
		mirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "mirror_writes_total",
			Help:      "Best-effort persistence writes by mirror, operation and result.",
		}, []string{"mirror", "op", "success"}),
		artJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "art_jobs_total",
			Help:      "Dream-art jobs by final status.",
		}, []string{"status"}),
		dreams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dreamdecode",
			Subsystem: subsystem,
			Name:      "dreams_recorded_total",
			Help:      "Dreams successfully recorded.",
		}),
	}
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.aiCalls,
		m.aiDuration,
		m.mirrorWrites,
		m.artJobs,
		m.dreams,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Instrument wraps next with request counting and timing.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAI records one generative-AI call. outcome is "ok" or an error class.
func (m *Metrics) ObserveAI(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiCalls.WithLabelValues(operation, outcome).Inc()
	m.aiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) ObserveMirror(mirror, op string, err error) {
	if m == nil {
		return
	}
	m.mirrorWrites.WithLabelValues(mirror, op, strconv.FormatBool(err == nil)).Inc()
}

func (m *Metrics) ObserveArtJob(status string) {
	if m == nil {
		return
	}
	m.artJobs.WithLabelValues(status).Inc()
}

func (m *Metrics) DreamRecorded() {
	if m == nil {
		return
	}
	m.dreams.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeLabel prefers the matched mux pattern so ids do not explode label
// cardinality.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return "unmatched"
}
