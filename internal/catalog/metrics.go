package catalog

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the catalog client.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// getMetrics returns the singleton catalog client metrics instance.
func getMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "catalog",
					Name:      "requests_total",
					Help:      "Total number of catalog requests by outcome",
				},
				[]string{"outcome"},
			),
			requestDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "dataaccess",
					Subsystem: "catalog",
					Name:      "request_duration_seconds",
					Help:      "Catalog request duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
			),
		}
	})
	return metricsInstance
}
