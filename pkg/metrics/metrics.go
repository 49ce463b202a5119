package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invites"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	linksIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "issued_total",
			Help:      "Shareable links issued.",
		},
	)

	linkConsumptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "consumptions_total",
			Help:      "Shareable link consumption attempts by outcome.",
		},
		[]string{"result"},
	)

	linksSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "swept_total",
			Help:      "Stale shareable links removed by the sweeper.",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweeper runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	sweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "links",
			Name:      "sweep_failures_total",
			Help:      "Sweeper runs that failed.",
		},
	)

	rsvpsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rsvp",
			Name:      "recorded_total",
			Help:      "RSVP responses recorded by source and status.",
		},
		[]string{"source", "status"},
	)

	tokenResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "resolutions_total",
			Help:      "Token resolutions by kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	quotaLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "lookups_total",
			Help:      "Guest quota lookups by source.",
		},
		[]string{"source"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		linksIssued,
		linkConsumptions,
		linksSwept,
		sweepDuration,
		sweepFailures,
		rsvpsRecorded,
		tokenResolutions,
		quotaLookups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Routes are labelled with the chi pattern so tokens never become label values.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func LinkIssued() {
	linksIssued.Inc()
}

// LinkConsumption records the outcome of a consume attempt ("ok" or an error class).
func LinkConsumption(result string) {
	linkConsumptions.WithLabelValues(result).Inc()
}

func Sweep(deleted int64, duration time.Duration) {
	linksSwept.Add(float64(deleted))
	sweepDuration.Observe(duration.Seconds())
}

func SweepFailed() {
	sweepFailures.Inc()
}

func RSVPRecorded(source, status string) {
	rsvpsRecorded.WithLabelValues(source, status).Inc()
}

func TokenResolved(kind, result string) {
	tokenResolutions.WithLabelValues(kind, result).Inc()
}

func QuotaLookup(source string) {
	quotaLookups.WithLabelValues(source).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	return r.ResponseWriter.Write(b)
}
