package broker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the credential broker.
type Metrics struct {
	tokensIssuedTotal *prometheus.CounterVec
	mintFailuresTotal *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// getMetrics returns the singleton broker metrics instance.
func getMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			tokensIssuedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "broker",
					Name:      "tokens_issued_total",
					Help:      "Total number of access tokens issued by provider and scope",
				},
				[]string{"provider", "scope"},
			),
			mintFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dataaccess",
					Subsystem: "broker",
					Name:      "mint_failures_total",
					Help:      "Total number of failed token mint attempts by provider and scope",
				},
				[]string{"provider", "scope"},
			),
		}
	})
	return metricsInstance
}
