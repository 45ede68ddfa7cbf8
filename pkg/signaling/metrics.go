package signaling

import "github.com/prometheus/client_golang/prometheus"

const namespace = "signaling"

type Metrics struct {
	sessions    prometheus.Gauge
	peers       prometheus.Gauge
	started     prometheus.Counter
	relayed     prometheus.Counter
	relayErrors prometheus.Counter
	rejected    prometheus.Counter
}

// NewMetrics creates relay metrics and registers them in reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions", Help: "Number of open sessions.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peers", Help: "Number of peers joined to sessions.",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_started_total", Help: "Start signals sent.",
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_relayed_total", Help: "Messages delivered to peers.",
		}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_errors_total", Help: "Failed message deliveries.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connections_rejected_total", Help: "Connections with a wrong path.",
		}),
	}
	reg.MustRegister(m.sessions, m.peers, m.started, m.relayed, m.relayErrors, m.rejected)
	return m
}
