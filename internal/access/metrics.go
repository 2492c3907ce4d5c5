package access

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for flow counters.
const (
	outcomeAllowed  = "allowed"
	outcomeDenied   = "denied"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
)

// Metrics contains Prometheus metrics for the access orchestrator.
type Metrics struct {
	flowsTotal   *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// getMetrics returns the singleton orchestrator metrics instance.
func getMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			flowsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "access",
					Name:      "flows_total",
					Help:      "Total number of access flows by flow and outcome",
				},
				[]string{"flow", "outcome"},
			),
			flowDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "dataaccess",
					Subsystem: "access",
					Name:      "flow_duration_seconds",
					Help:      "Access flow duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"flow"},
			),
		}
	})
	return metricsInstance
}
