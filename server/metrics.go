package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gstoney/mclimbo/packet"
)

const metricsNamespace = "mclimbo"

// Metrics are the server's Prometheus collectors.
type Metrics struct {
	OpenConnections    prometheus.Gauge
	ConnectionsByState *prometheus.GaugeVec
	PacketsDecoded     *prometheus.CounterVec
	UnknownPackets     prometheus.Counter
	MalformedPackets   prometheus.Counter
	KeepAlivesSent     prometheus.Counter
	Evictions          prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OpenConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "open_connections",
			Help:      "Connections currently registered.",
		}),
		ConnectionsByState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Registered connections by protocol state.",
		}, []string{"state"}),
		PacketsDecoded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_decoded_total",
			Help:      "Serverbound packets decoded and handled.",
		}, []string{"state"}),
		UnknownPackets: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_unknown_total",
			Help:      "Frames dropped because their id is not registered.",
		}),
		MalformedPackets: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_malformed_total",
			Help:      "Frames dropped because their body failed to decode.",
		}),
		KeepAlivesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "keep_alives_sent_total",
			Help:      "Keep-alive packets queued.",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "keep_alive_evictions_total",
			Help:      "Players disconnected for missing keep-alive responses.",
		}),
	}
}

func (m *Metrics) stateChanged(from, to packet.State) {
	m.ConnectionsByState.WithLabelValues(from.String()).Dec()
	m.ConnectionsByState.WithLabelValues(to.String()).Inc()
}
