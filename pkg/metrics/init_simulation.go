package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.GenerationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "agentgraph_generations_total",
			Help: "Graph generations built, one per appended event",
		},
	)

	r.SimulationTicksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "agentgraph_simulation_ticks_total",
			Help: "Force simulation steps applied",
		},
	)

	r.StaleTicksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "agentgraph_simulation_stale_ticks_total",
			Help: "Ticks discarded because a newer generation replaced their simulation",
		},
	)

	r.SimulationNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "agentgraph_simulation_nodes",
			Help: "Nodes in the current generation",
		},
	)

	r.SimulationSettleTicks = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentgraph_simulation_settle_ticks",
			Help:    "Ticks a generation ran before coming to rest",
			Buckets: []float64{10, 50, 100, 200, 300, 400, 600, 1000},
		},
	)

	r.DragsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "agentgraph_drags_total",
			Help: "Node drags started",
		},
	)
}
