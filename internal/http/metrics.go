package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

func (r *Router) initMetrics() {
	r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	r.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	r.connectionSource = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "storefront",
		Subsystem: "database",
		Name:      "connection_source",
		Help:      "Where the database connection string was resolved from (1 for the active source)",
	}, []string{"source", "dialect"})

	r.registry.MustRegister(
		r.requestTotal,
		r.requestLatency,
		r.connectionSource,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// SetConnectionSource records the resolved connection source and dialect.
func (r *Router) SetConnectionSource(source, dialect string) {
	r.connectionSource.Reset()
	r.connectionSource.With(prometheus.Labels{"source": source, "dialect": dialect}).Set(1)
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}
