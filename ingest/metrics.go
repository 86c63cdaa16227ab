package ingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/metric"
)

type ingestMetrics struct {
	received  *prometheus.CounterVec
	malformed *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

func newIngestMetrics(registry *metric.MetricsRegistry) (*ingestMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &ingestMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Canonical events produced per channel",
		}, []string{"channel"}),

		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "ingest",
			Name:      "malformed_total",
			Help:      "Payloads dropped as undecodable or malformed",
		}, []string{"channel"}),

		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "ingest",
			Name:      "rejected_total",
			Help:      "Events the bridge refused because it is shutting down",
		}, []string{"channel"}),
	}

	if err := registry.RegisterCounterVec("ingest", "events_total", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("ingest", "malformed_total", m.malformed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("ingest", "rejected_total", m.rejected); err != nil {
		return nil, err
	}
	return m, nil
}
