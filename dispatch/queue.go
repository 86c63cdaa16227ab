// Package dispatch implements the single-consumer work queue that serializes
// every outbound federation operation onto the bridge goroutine.
//
// The queue has two lanes. The data lane is a bounded circular buffer of
// canonical events; when it is full the oldest event is evicted and counted.
// The control lane carries directives (connect, resign, shutdown, fault) and
// is never evicted. Next always prefers a pending Shutdown, then other
// directives in FIFO order, then data.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/federation"
	"github.com/gamma-programme/rospitch/metric"
	"github.com/gamma-programme/rospitch/pkg/buffer"
)

// DefaultCapacity is the data lane size used when none is configured.
const DefaultCapacity = 1024

// DirectiveKind identifies a control-plane request.
type DirectiveKind int

// Directive kinds
const (
	DirectiveConnect DirectiveKind = iota + 1
	DirectiveResign
	DirectiveShutdown
	DirectiveFault
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveConnect:
		return "connect"
	case DirectiveResign:
		return "resign"
	case DirectiveShutdown:
		return "shutdown"
	case DirectiveFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Directive is a control-plane request for the consumer.
type Directive struct {
	Kind DirectiveKind
	// Endpoint is set on Connect directives issued by the public API.
	// Retry-scheduled connects leave it empty and reuse the last endpoint.
	Endpoint *federation.Endpoint
	// Attempt tags retry-scheduled connects so stale timers can be ignored.
	Attempt int
	// Err carries the cause of a Fault.
	Err error
}

// Work is one queue entry. Exactly one of Event or Directive is set.
type Work struct {
	Event     canonical.Event
	Directive *Directive
}

// IsDirective reports whether the entry is a control directive.
func (w Work) IsDirective() bool { return w.Directive != nil }

// Queue is a multi-producer, single-consumer work queue.
type Queue struct {
	mu         sync.Mutex
	data       buffer.Buffer[canonical.Event]
	control    []Directive
	shutdown   *Directive
	dataClosed bool

	notify  chan struct{}
	dropped atomic.Int64
	logger  *slog.Logger
	metrics *queueMetrics
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New creates a queue whose data lane holds at most capacity events.
func New(capacity int, registry *metric.MetricsRegistry, opts ...Option) (*Queue, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	q := &Queue{
		notify: make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}

	m, err := newQueueMetrics(registry)
	if err != nil {
		return nil, errors.WrapTransient(err, "Queue", "New", "metrics registration")
	}
	q.metrics = m

	data, err := buffer.NewCircularBuffer(capacity,
		buffer.WithOverflowPolicy[canonical.Event](buffer.DropOldest),
		buffer.WithDropCallback(q.onDrop),
		buffer.WithMetrics[canonical.Event](registry, "dispatch"),
	)
	if err != nil {
		return nil, err
	}
	q.data = data

	return q, nil
}

func (q *Queue) onDrop(ev canonical.Event) {
	q.dropped.Add(1)
	if q.metrics != nil {
		q.metrics.dropped.WithLabelValues(ev.Channel()).Inc()
	}
}

// Submit enqueues a data event without blocking. After CloseData it fails
// with errors.ErrShuttingDown.
func (q *Queue) Submit(ev canonical.Event) error {
	q.mu.Lock()
	closed := q.dataClosed
	q.mu.Unlock()

	if closed {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Queue", "Submit", "data lane closed")
	}
	if err := q.data.Write(ev); err != nil {
		return err
	}
	q.wake()
	return nil
}

// Control enqueues a directive. Control directives are never dropped.
func (q *Queue) Control(d Directive) {
	q.mu.Lock()
	if d.Kind == DirectiveShutdown {
		if q.shutdown == nil {
			q.shutdown = &d
		}
	} else {
		q.control = append(q.control, d)
	}
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryNext returns the next entry without blocking.
func (q *Queue) TryNext() (Work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown != nil {
		d := q.shutdown
		q.shutdown = nil
		return Work{Directive: d}, true
	}
	if len(q.control) > 0 {
		d := q.control[0]
		q.control = q.control[1:]
		return Work{Directive: &d}, true
	}
	if ev, ok := q.data.Read(); ok {
		return Work{Event: ev}, true
	}
	return Work{}, false
}

// Next blocks until an entry is available or ctx is done.
func (q *Queue) Next(ctx context.Context) (Work, error) {
	for {
		if w, ok := q.TryNext(); ok {
			return w, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Work{}, ctx.Err()
		}
	}
}

// NextData pops the oldest data event, ignoring the control lane.
func (q *Queue) NextData() (canonical.Event, bool) {
	return q.data.Read()
}

// ShutdownPending reports whether a Shutdown directive is waiting.
func (q *Queue) ShutdownPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdown != nil
}

// CloseData rejects further data submissions. Queued events remain readable.
func (q *Queue) CloseData() {
	q.mu.Lock()
	q.dataClosed = true
	q.mu.Unlock()
	_ = q.data.Close()
}

// DataLen returns the number of queued data events.
func (q *Queue) DataLen() int { return q.data.Size() }

// ControlLen returns the number of queued directives, including a pending Shutdown.
func (q *Queue) ControlLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.control)
	if q.shutdown != nil {
		n++
	}
	return n
}

// Dropped returns how many data events were evicted on overflow.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

type queueMetrics struct {
	dropped *prometheus.CounterVec
}

func newQueueMetrics(registry *metric.MetricsRegistry) (*queueMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &queueMetrics{
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Data events evicted from the dispatch queue on overflow",
		}, []string{"channel"}),
	}

	if err := registry.RegisterCounterVec("dispatch", "dropped_total", m.dropped); err != nil {
		return nil, err
	}
	return m, nil
}
