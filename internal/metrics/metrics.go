package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "training_app",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "training_app",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "training_app",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	providerSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "training_app",
			Subsystem: "sync",
			Name:      "provider_syncs_total",
			Help:      "Total number of provider sync runs.",
		},
		[]string{"provider", "success"},
	)

	activitiesImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "training_app",
			Subsystem: "sync",
			Name:      "activities_imported_total",
			Help:      "Total number of activities imported from providers.",
		},
		[]string{"provider"},
	)

	workoutsMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "training_app",
			Subsystem: "sync",
			Name:      "workouts_matched_total",
			Help:      "Total number of activities matched to scheduled workouts.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		providerSyncs,
		activitiesImported,
		workoutsMatched,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route. The route
// template from gin keeps label cardinality bounded; unmatched paths all
// collapse into one bucket.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordProviderSync records the outcome of one provider sync run.
func RecordProviderSync(provider string, imported int, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	providerSyncs.WithLabelValues(provider, result).Inc()
	if imported > 0 {
		activitiesImported.WithLabelValues(provider).Add(float64(imported))
	}
}

// RecordWorkoutMatch counts an activity linked to a scheduled workout.
func RecordWorkoutMatch() {
	workoutsMatched.Inc()
}
