package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initChannelMetrics() {
	r.EventsReceivedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgraph_events_received_total",
			Help: "Agent events delivered to the session, by source",
		},
		[]string{"source"},
	)

	r.EventsDroppedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgraph_events_dropped_total",
			Help: "Push-channel frames dropped before reaching the event log, by reason",
		},
		[]string{"reason"},
	)

	r.ChannelReconnectsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "agentgraph_channel_reconnects_total",
			Help: "Push-channel reconnect attempts",
		},
	)

	r.ChannelConnected = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "agentgraph_channel_connected",
			Help: "Whether the push channel is connected (1) or not (0)",
		},
	)

	r.EventLogLength = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "agentgraph_event_log_length",
			Help: "Number of events in the session's event log",
		},
	)
}
