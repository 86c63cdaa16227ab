package translate

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/gamma-programme/rospitch/binding"
	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/hla"
	"github.com/gamma-programme/rospitch/metric"
)

// Engine converts canonical events into federation updates.
type Engine struct {
	table    *binding.Table
	logger   *slog.Logger
	metrics  *engineMetrics
	registry *metric.MetricsRegistry
	diag     *rate.Limiter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for unbound-channel diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// NewEngine creates an engine over a validated binding table.
func NewEngine(table *binding.Table, opts ...Option) (*Engine, error) {
	if table == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Engine", "NewEngine", "binding table required")
	}

	e := &Engine{
		table:  table,
		logger: slog.Default(),
		diag:   rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(e)
	}

	m, err := newEngineMetrics(e.registry)
	if err != nil {
		return nil, errors.WrapTransient(err, "Engine", "NewEngine", "metrics registration")
	}
	e.metrics = m

	return e, nil
}

// Table returns the binding table the engine translates against.
func (e *Engine) Table() *binding.Table {
	return e.table
}

// Translate maps ev onto a federation update. It returns nil, nil for
// channels without a binding.
func (e *Engine) Translate(ev canonical.Event) (*Update, error) {
	b, ok := e.table.Lookup(ev.Channel())
	if !ok {
		if e.metrics != nil {
			e.metrics.unbound.WithLabelValues(ev.Channel()).Inc()
		}
		if e.diag.Allow() {
			e.logger.Debug("No binding for channel, dropping event", "channel", ev.Channel())
		}
		return nil, nil
	}

	u := &Update{
		Kind:     b.Kind,
		Class:    b.Class,
		Instance: b.Instance,
		Channel:  ev.Channel(),
		Time:     ev.Time(),
		Values:   make([]AttributeValue, 0, len(b.Fields)),
	}

	for _, fm := range b.Fields {
		av, err := mapField(ev, fm)
		if err != nil {
			if e.metrics != nil {
				e.metrics.failures.WithLabelValues(ev.Channel()).Inc()
			}
			return nil, err
		}
		u.Values = append(u.Values, av)
	}

	if e.metrics != nil {
		e.metrics.translated.WithLabelValues(ev.Channel()).Inc()
	}
	return u, nil
}

func mapField(ev canonical.Event, fm binding.FieldMapping) (AttributeValue, error) {
	v, ok := ev.Field(fm.Source)
	if !ok {
		return AttributeValue{}, newError(ev.Channel(), fm.Source,
			fmt.Errorf("%w: %q not in event", errors.ErrFieldMissing, fm.Source))
	}

	if !fm.Encoding.Accepts(v.Kind()) {
		return AttributeValue{}, newError(ev.Channel(), fm.Source,
			fmt.Errorf("%w: %s value for %s attribute %s", errors.ErrTypeMismatch, v.Kind(), fm.Encoding, fm.Target))
	}

	encoded, err := hla.Encode(fm.Encoding, v)
	if err != nil {
		return AttributeValue{}, newError(ev.Channel(), fm.Source, err)
	}

	return AttributeValue{
		Name:     fm.Target,
		Source:   fm.Source,
		Value:    v,
		Encoding: fm.Encoding,
		Encoded:  encoded,
	}, nil
}
