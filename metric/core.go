package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the bridge-level metrics shared by all components
type Metrics struct {
	ConnectionState   prometheus.Gauge
	StateTransitions  *prometheus.CounterVec
	ConnectAttempts   *prometheus.CounterVec
	AmbassadorCalls   *prometheus.HistogramVec
	AmbassadorErrors  *prometheus.CounterVec
	UpdatesDispatched *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all bridge metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rospitch",
				Subsystem: "bridge",
				Name:      "connection_state",
				Help:      "Connection state (0=disconnected, 1=connecting, 2=connected, 3=joining, 4=joined, 5=resigning, 6=failed)",
			},
		),

		StateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rospitch",
				Subsystem: "bridge",
				Name:      "state_transitions_total",
				Help:      "Connection state machine transitions",
			},
			[]string{"from", "to"},
		),

		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rospitch",
				Subsystem: "bridge",
				Name:      "connect_attempts_total",
				Help:      "Federation connect attempts by outcome",
			},
			[]string{"outcome"},
		),

		AmbassadorCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rospitch",
				Subsystem: "ambassador",
				Name:      "call_duration_seconds",
				Help:      "Ambassador call duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),

		AmbassadorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rospitch",
				Subsystem: "ambassador",
				Name:      "errors_total",
				Help:      "Ambassador call failures by operation and class",
			},
			[]string{"operation", "class"},
		),

		UpdatesDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rospitch",
				Subsystem: "bridge",
				Name:      "updates_dispatched_total",
				Help:      "Federation updates issued per source channel",
			},
			[]string{"channel", "kind"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rospitch",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of absorbed errors",
			},
			[]string{"component", "class"},
		),
	}
}

func (c *Metrics) register(reg *prometheus.Registry) {
	reg.MustRegister(
		c.ConnectionState,
		c.StateTransitions,
		c.ConnectAttempts,
		c.AmbassadorCalls,
		c.AmbassadorErrors,
		c.UpdatesDispatched,
		c.ErrorsTotal,
	)
}

// RecordState updates the connection state gauge and transition counter
func (c *Metrics) RecordState(from, to string, value int) {
	c.ConnectionState.Set(float64(value))
	c.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordConnectAttempt increments the connect attempt counter
func (c *Metrics) RecordConnectAttempt(outcome string) {
	c.ConnectAttempts.WithLabelValues(outcome).Inc()
}

// RecordAmbassadorCall records the duration of an ambassador call
func (c *Metrics) RecordAmbassadorCall(operation string, duration time.Duration) {
	c.AmbassadorCalls.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAmbassadorError increments the ambassador error counter
func (c *Metrics) RecordAmbassadorError(operation, class string) {
	c.AmbassadorErrors.WithLabelValues(operation, class).Inc()
}

// RecordDispatched increments the dispatched update counter
func (c *Metrics) RecordDispatched(channel, kind string) {
	c.UpdatesDispatched.WithLabelValues(channel, kind).Inc()
}

// RecordError increments the absorbed error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}
