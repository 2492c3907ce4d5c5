package routing

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// routingMetrics contains Prometheus metrics for route resolution.
type routingMetrics struct {
	resolutionsTotal prometheus.Counter
	noRouteTotal     prometheus.Counter
}

var (
	metricsInstance *routingMetrics
	metricsOnce     sync.Once
)

// getMetrics returns the singleton routing metrics instance.
func getMetrics() *routingMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &routingMetrics{
			resolutionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "routing",
					Name:      "resolutions_total",
					Help:      "Total number of successful route resolutions",
				},
			),
			noRouteTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "routing",
					Name:      "no_route_total",
					Help:      "Total number of resolutions that matched no rule",
				},
			),
		}
	})
	return metricsInstance
}
