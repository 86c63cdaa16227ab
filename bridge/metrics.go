package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/metric"
)

type managerMetrics struct {
	core           *metric.Metrics
	prejoinDropped *prometheus.CounterVec
}

func newManagerMetrics(registry *metric.MetricsRegistry) (*managerMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &managerMetrics{
		core: registry.CoreMetrics(),
		prejoinDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "bridge",
			Name:      "prejoin_dropped_total",
			Help:      "Events evicted from the pre-join buffer before the federation was joined",
		}, []string{"channel"}),
	}

	if err := registry.RegisterCounterVec("bridge", "prejoin_dropped_total", m.prejoinDropped); err != nil {
		return nil, err
	}
	return m, nil
}
