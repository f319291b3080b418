package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)

	chatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdesk",
			Subsystem: "chat",
			Name:      "replies_total",
			Help:      "Chat replies by reply type.",
		},
		[]string{"type"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopdesk",
			Subsystem: "chat",
			Name:      "rate_limited_total",
			Help:      "Chat requests rejected by admission control.",
		},
	)

	topicLabels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdesk",
			Subsystem: "topic",
			Name:      "classifications_total",
			Help:      "Topic-switch classifications by label and source.",
		},
		[]string{"label", "source"},
	)

	backendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdesk",
			Subsystem: "backend",
			Name:      "failures_total",
			Help:      "Generative backend failures by operation.",
		},
		[]string{"operation"},
	)
)

func init() {
	Registry.MustRegister(
		httpDuration,
		chatReplies,
		rateLimited,
		topicLabels,
		backendFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordReply(replyType string) {
	chatReplies.WithLabelValues(replyType).Inc()
}

func RecordRateLimited() {
	rateLimited.Inc()
}

func RecordTopic(label, source string) {
	topicLabels.WithLabelValues(label, source).Inc()
}

func RecordBackendFailure(operation string) {
	backendFailures.WithLabelValues(operation).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Observe(time.Since(start).Seconds())
	})
}
