package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/metric"
)

type clientMetrics struct {
	status          prometheus.Gauge
	received        *prometheus.CounterVec
	published       prometheus.Counter
	requestDuration prometheus.Histogram
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &clientMetrics{
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rospitch",
			Subsystem: "nats",
			Name:      "connection_status",
			Help:      "NATS connection status (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=closed)",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "nats",
			Name:      "messages_received_total",
			Help:      "Messages received per subscription subject",
		}, []string{"subject"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "nats",
			Name:      "messages_published_total",
			Help:      "Messages published",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rospitch",
			Subsystem: "nats",
			Name:      "request_duration_seconds",
			Help:      "Request/reply round trip duration",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	if err := registry.RegisterGauge("natsclient", "connection_status", m.status); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("natsclient", "messages_received", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("natsclient", "messages_published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("natsclient", "request_duration", m.requestDuration); err != nil {
		return nil, err
	}
	return m, nil
}
