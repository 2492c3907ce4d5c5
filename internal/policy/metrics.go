package policy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the policy client.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// getMetrics returns the singleton policy client metrics instance.
func getMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			requestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "policy",
					Name:      "requests_total",
					Help:      "Total number of access-check requests by outcome",
				},
				[]string{"outcome"},
			),
			requestDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "dataaccess",
					Subsystem: "policy",
					Name:      "request_duration_seconds",
					Help:      "Access-check request duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
			),
		}
	})
	return metricsInstance
}
