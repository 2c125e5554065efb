package navigation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query results used as the "result" label.
const (
	resultFound    = "found"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Metrics holds Prometheus collectors for path queries.
type Metrics struct {
	queries     *prometheus.CounterVec
	cost        prometheus.Histogram
	duration    prometheus.Histogram
	expanded    prometheus.Histogram
	walkability prometheus.Counter
	unitMoves   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridpath",
			Name:      "path_queries_total",
			Help:      "Path queries by result.",
		}, []string{"result"}),
		cost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridpath",
			Name:      "path_cost",
			Help:      "Cost of found paths.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridpath",
			Name:      "query_duration_seconds",
			Help:      "Path query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		expanded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridpath",
			Name:      "expanded_nodes",
			Help:      "Nodes expanded per path query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		walkability: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpath",
			Name:      "walkability_changes_total",
			Help:      "Runtime walkability changes.",
		}),
		unitMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridpath",
			Name:      "unit_moves_total",
			Help:      "Units moved between cells.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.queries, m.cost, m.duration, m.expanded, m.walkability, m.unitMoves)
	}
	return m
}

func (m *Metrics) observeQuery(result string, cost, expanded int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
	if result == resultError {
		return
	}
	m.expanded.Observe(float64(expanded))
	if result == resultFound {
		m.cost.Observe(float64(cost))
	}
}

func (m *Metrics) walkabilityChanged() {
	if m == nil {
		return
	}
	m.walkability.Inc()
}

func (m *Metrics) unitMoved() {
	if m == nil {
		return
	}
	m.unitMoves.Inc()
}
