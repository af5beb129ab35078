package mediahttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the media routes.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	uploaded *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Use a fresh registry per
// Handler in tests; prometheus.DefaultRegisterer in a binary.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediakit",
			Name:      "http_requests_total",
			Help:      "Media API requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediakit",
			Name:      "http_request_duration_seconds",
			Help:      "Media API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediakit",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to blob storage by uploads, by owner type.",
		}, []string{"owner_type"}),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeUpload(ownerType string, size *int64) {
	if m == nil || size == nil {
		return
	}
	m.uploaded.WithLabelValues(ownerType).Add(float64(*size))
}
