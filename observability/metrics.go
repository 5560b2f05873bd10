package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics aggregates the counters and histograms recorded by the swap
// router service.
type RouterMetrics struct {
	simulations *prometheus.CounterVec
	swaps       *prometheus.CounterVec
	hopLatency  prometheus.Histogram
	hopsPerSwap prometheus.Histogram
}

var (
	routerMetricsOnce sync.Once
	routerRegistry    *RouterMetrics
)

// Metrics returns the lazily-initialised router metrics registry.
func Metrics() *RouterMetrics {
	routerMetricsOnce.Do(func() {
		routerRegistry = &RouterMetrics{
			simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaprouter",
				Name:      "simulations_total",
				Help:      "Swap simulations served, labelled by estimation mode and outcome.",
			}, []string{"mode", "outcome"}),
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaprouter",
				Name:      "swaps_total",
				Help:      "Swap executions driven to completion or failure.",
			}, []string{"outcome"}),
			hopLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "swaprouter",
				Name:      "hop_settlement_seconds",
				Help:      "Time from order submission to settlement report per hop.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			}),
			hopsPerSwap: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "swaprouter",
				Name:      "hops_per_swap",
				Help:      "Number of hops executed per swap operation.",
				Buckets:   []float64{1, 2, 3, 4, 5, 6},
			}),
		}
		prometheus.MustRegister(
			routerRegistry.simulations,
			routerRegistry.swaps,
			routerRegistry.hopLatency,
			routerRegistry.hopsPerSwap,
		)
	})
	return routerRegistry
}

// RecordSimulation counts one served simulation.
func (m *RouterMetrics) RecordSimulation(mode string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.simulations.WithLabelValues(strings.ToLower(mode), outcome).Inc()
}

// RecordSwap counts one driven swap and its hop count.
func (m *RouterMetrics) RecordSwap(hops int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.swaps.WithLabelValues(outcome).Inc()
	if err == nil && hops > 0 {
		m.hopsPerSwap.Observe(float64(hops))
	}
}

// ObserveHopSettlement records the submission-to-settlement latency of one hop.
func (m *RouterMetrics) ObserveHopSettlement(d time.Duration) {
	if m == nil {
		return
	}
	m.hopLatency.Observe(d.Seconds())
}
