package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: cache lookups by task and result (hit | miss | error | bypass).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_cache_lookups_total",
			Help: "Cache lookups by task and result.",
		},
		[]string{"task", "result"},
	)

	// Counter: cache writes by result (ok | error).
	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_cache_writes_total",
			Help: "Cache writes by result.",
		},
		[]string{"task", "result"},
	)

	// Counter: finished relays by task and outcome.
	RelaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Relays by task and outcome (cached, completed, failed, aborted, rejected).",
		},
		[]string{"task", "outcome"},
	)

	// Counter: fragments forwarded downstream.
	RelayFragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fragments_total",
			Help: "Data fragments forwarded to clients.",
		},
		[]string{"task"},
	)

	// Counter: upstream records that failed to decode and were dropped.
	MalformedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_upstream_malformed_records_total",
			Help: "Upstream NDJSON records dropped because they did not decode.",
		},
	)

	// Histogram: whole relay duration in seconds.
	RelayDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_duration_seconds",
			Help:    "End-to-end relay duration in seconds.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"task", "outcome"},
	)

	// Histogram: time until the upstream answered with headers.
	UpstreamConnectSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_connect_seconds",
			Help:    "Time to establish the upstream generation stream.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 150},
		},
		[]string{"task"},
	)

	// Gauge: 1 when a health target answered its last probe.
	BackendUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_backend_up",
			Help: "Last health probe result per target (1 online, 0 offline).",
		},
		[]string{"target"},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"path", "method", "status_code"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call
// more than once (tests build several routers).
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheLookupsTotal,
			CacheWritesTotal,
			RelaysTotal,
			RelayFragmentsTotal,
			MalformedRecordsTotal,
			RelayDurationSeconds,
			UpstreamConnectSeconds,
			BackendUp,
			GatewayLatencySeconds,
		)
	})
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request. The path label
// uses the chi route pattern so query strings and ids do not explode
// cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		GatewayLatencySeconds.
			WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
