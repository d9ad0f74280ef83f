// Package metrics exposes Prometheus instrumentation for the HTTP
// surface and the scheduling business events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics

	RecommendationsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Total number of doctor/slot recommendations returned",
		},
	)

	ConflictsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduling_conflicts_detected_total",
			Help: "Total number of scheduling conflicts detected",
		},
	)

	ConflictsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduling_conflicts_resolved_total",
			Help: "Total number of scheduling conflicts resolved",
		},
	)

	AppointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total number of appointments booked",
		},
	)

	SmartBookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_bookings_total",
			Help: "Total number of composed smart-booking flows by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments every request with count, duration and
// in-flight gauges. The route template keeps label cardinality bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
