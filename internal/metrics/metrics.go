// Package metrics exposes Prometheus instrumentation for the server,
// the matcher and push delivery. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mela"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	matches       *prometheus.CounterVec
	notifications prometheus.Counter
	detection     *prometheus.HistogramVec
	pushes        *prometheus.CounterVec

	queueDepth prometheus.Gauge
	dropped    prometheus.Counter
}

// New creates and registers all collectors, including the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "matches_total",
			Help:      "Brand match runs by source and outcome.",
		}, []string{"source", "outcome"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "notifications_created_total",
			Help:      "Match notifications written.",
		}),
		detection: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "detection_duration_seconds",
			Help:      "Brand detection latency.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"result"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Push deliveries by result.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Match requests waiting for a worker.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "dropped_total",
			Help:      "Match requests dropped because the queue was full.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.matches, m.notifications, m.detection, m.pushes,
		m.queueDepth, m.dropped,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveMatch counts a match run. source is listing or wanted.
func (m *Metrics) ObserveMatch(source, outcome string, notified int) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(source, outcome).Inc()
	m.notifications.Add(float64(notified))
}

// ObserveDetection records how long a brand detection took.
func (m *Metrics) ObserveDetection(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.detection.WithLabelValues(result).Observe(d.Seconds())
}

// ObservePush counts push deliveries.
func (m *Metrics) ObservePush(sent int, err error) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues("sent").Add(float64(sent))
	if err != nil {
		m.pushes.WithLabelValues("failed").Inc()
	}
}

// SetQueueDepth reports the dispatcher backlog.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Dropped counts a request the dispatcher could not queue.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests by their ServeMux route pattern so
// path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
