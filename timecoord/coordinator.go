// Package timecoord reconciles real-time event arrival with federation
// logical time.
//
// In receive-order mode updates go out without a timestamp and no time
// management is used. In time-stepped mode every event first requests a time
// advance to its own timestamp and is sent tagged with the granted time plus
// the lookahead. Requested advances never go backwards: a timestamp older than
// the last request or grant is clamped to that floor and counted.
//
// A Coordinator is owned by the bridge consumer goroutine; only the clamp
// counter is safe to read from other goroutines.
package timecoord

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/metric"
)

// Mode selects the delivery discipline.
type Mode string

// Supported modes
const (
	ModeReceiveOrder Mode = "receive_order"
	ModeTimeStepped  Mode = "time_stepped"
)

// ParseMode validates a mode name. The empty string selects receive order.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeReceiveOrder:
		return ModeReceiveOrder, nil
	case ModeTimeStepped:
		return ModeTimeStepped, nil
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: unknown time mode %q", errors.ErrInvalidConfig, s),
			"timecoord", "ParseMode", "parse mode")
	}
}

// Decision tells the caller how to deliver one event.
type Decision struct {
	// Advance is set when a time advance to Target must be requested first.
	Advance bool
	Target  canonical.Time
	// Clamped is set when the event timestamp was older than the floor.
	Clamped bool
}

// Coordinator tracks requested and granted logical time.
type Coordinator struct {
	mode      Mode
	lookahead canonical.Time
	logger    *slog.Logger

	started       bool
	lastRequested canonical.Time
	lastGranted   canonical.Time

	clamped atomic.Int64
	metrics *coordinatorMetrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for clamp diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a coordinator. Lookahead is only meaningful in time-stepped mode.
func New(mode Mode, lookahead time.Duration, registry *metric.MetricsRegistry, opts ...Option) (*Coordinator, error) {
	if mode != ModeReceiveOrder && mode != ModeTimeStepped {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown time mode %q", errors.ErrInvalidConfig, mode),
			"timecoord", "New", "validate mode")
	}
	if lookahead < 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: negative lookahead %s", errors.ErrInvalidConfig, lookahead),
			"timecoord", "New", "validate lookahead")
	}

	m, err := newCoordinatorMetrics(registry)
	if err != nil {
		return nil, errors.WrapTransient(err, "timecoord", "New", "metrics registration")
	}

	c := &Coordinator{
		mode:      mode,
		lookahead: canonical.Time(lookahead.Microseconds()),
		logger:    slog.Default(),
		metrics:   m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mode returns the configured delivery mode.
func (c *Coordinator) Mode() Mode { return c.mode }

// TimeManaged reports whether the federate must enable time regulation.
func (c *Coordinator) TimeManaged() bool { return c.mode == ModeTimeStepped }

// Lookahead returns the configured lookahead.
func (c *Coordinator) Lookahead() canonical.Time { return c.lookahead }

// Reset starts a new session at the initial granted time.
func (c *Coordinator) Reset(initial canonical.Time) {
	c.started = false
	c.lastRequested = initial
	c.lastGranted = initial
	if c.metrics != nil {
		c.metrics.granted.Set(float64(initial))
	}
}

// Decide returns how to deliver an event stamped ts.
func (c *Coordinator) Decide(ts canonical.Time) Decision {
	if c.mode == ModeReceiveOrder {
		return Decision{}
	}

	floor := max(c.lastRequested, c.lastGranted)
	d := Decision{Advance: true, Target: ts}
	if ts < floor {
		d.Target = floor
		d.Clamped = true
		c.clamped.Add(1)
		if c.metrics != nil {
			c.metrics.clamped.Inc()
		}
		c.logger.Debug("Clamped retrograde timestamp", "timestamp", int64(ts), "floor", int64(floor))
	}

	c.started = true
	c.lastRequested = d.Target
	return d
}

// Granted records a time grant and returns the timestamp to send with.
func (c *Coordinator) Granted(t canonical.Time) canonical.Time {
	if t > c.lastGranted {
		c.lastGranted = t
		if c.metrics != nil {
			c.metrics.granted.Set(float64(t))
		}
	}
	return c.lastGranted + c.lookahead
}

// LastGranted returns the most recent granted time.
func (c *Coordinator) LastGranted() canonical.Time { return c.lastGranted }

// LastRequested returns the most recent requested time, or false before the first request.
func (c *Coordinator) LastRequested() (canonical.Time, bool) { return c.lastRequested, c.started }

// Clamped returns the number of clamped timestamps. Safe for concurrent use.
func (c *Coordinator) Clamped() int64 { return c.clamped.Load() }

type coordinatorMetrics struct {
	clamped prometheus.Counter
	granted prometheus.Gauge
}

func newCoordinatorMetrics(registry *metric.MetricsRegistry) (*coordinatorMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &coordinatorMetrics{
		clamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "time",
			Name:      "clamped_total",
			Help:      "Event timestamps older than the last requested or granted time",
		}),
		granted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rospitch",
			Subsystem: "time",
			Name:      "granted_microseconds",
			Help:      "Last granted federation logical time",
		}),
	}

	if err := registry.RegisterCounter("timecoord", "clamped_total", m.clamped); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("timecoord", "granted", m.granted); err != nil {
		return nil, err
	}
	return m, nil
}
