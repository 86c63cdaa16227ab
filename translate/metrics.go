package translate

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/metric"
)

type engineMetrics struct {
	translated *prometheus.CounterVec
	unbound    *prometheus.CounterVec
	failures   *prometheus.CounterVec
}

func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		translated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "translate",
			Name:      "events_total",
			Help:      "Events translated into federation updates",
		}, []string{"channel"}),

		unbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "translate",
			Name:      "unbound_total",
			Help:      "Events dropped because no binding exists for their channel",
		}, []string{"channel"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "translate",
			Name:      "errors_total",
			Help:      "Events dropped because a mapped field was missing or mistyped",
		}, []string{"channel"}),
	}

	if err := registry.RegisterCounterVec("translate", "events_total", m.translated); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("translate", "unbound_total", m.unbound); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("translate", "errors_total", m.failures); err != nil {
		return nil, err
	}

	return m, nil
}
