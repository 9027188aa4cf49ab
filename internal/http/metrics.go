package http

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the query API.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	InFlight         prometheus.Gauge
	RateLimitedTotal prometheus.Counter
}

// NewMetrics returns the process-wide API metrics, registering them with
// the default registry on first use. Repeated calls return the same set so
// several servers in one process (tests) do not collide on registration.
//
// Metrics:
//   - chatindex_http_requests_total{method,route,status}
//   - chatindex_http_request_duration_seconds{method,route}
//   - chatindex_http_requests_in_flight
//   - chatindex_http_search_rate_limited_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chatindex_http_requests_total",
					Help: "Total HTTP requests by method, route template and status code",
				},
				[]string{"method", "route", "status"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chatindex_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
				},
				[]string{"method", "route"},
			),
			InFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chatindex_http_requests_in_flight",
				Help: "HTTP requests currently being served",
			}),
			RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chatindex_http_search_rate_limited_total",
				Help: "Search requests rejected by the rate limiter",
			}),
		}
	})
	return globalMetrics
}

// observe records one finished request. route is the route template, not
// the raw path, so ids do not become label values.
func (m *Metrics) observe(method, route string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
