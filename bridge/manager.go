package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/gamma-programme/rospitch/binding"
	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/dispatch"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/federation"
	"github.com/gamma-programme/rospitch/health"
	"github.com/gamma-programme/rospitch/metric"
	"github.com/gamma-programme/rospitch/pkg/buffer"
	"github.com/gamma-programme/rospitch/timecoord"
	"github.com/gamma-programme/rospitch/translate"
)

// Manager owns the federation connection. All ambassador calls, the session
// and state transitions happen on the goroutine running Run; the public
// methods only enqueue work.
type Manager struct {
	cfg     Config
	amb     federation.Ambassador
	engine  *translate.Engine
	coord   *timecoord.Coordinator
	queue   *dispatch.Queue
	prejoin buffer.Buffer[canonical.Event]
	logger  *slog.Logger
	metrics *managerMetrics
	diag    *rate.Limiter

	registry *metric.MetricsRegistry

	state          atomic.Int32
	lastErr        atomic.Value // string
	attemptGauge   atomic.Int32
	prejoinDropped atomic.Uint64
	startedAt      time.Time
	running        atomic.Bool
	done           chan struct{}

	// Owned by the Run goroutine
	endpoint *federation.Endpoint
	attempt  int
	session  *federation.Session

	timerMu    sync.Mutex
	retryTimer *time.Timer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Manager) {
		m.registry = registry
	}
}

// New creates a connection manager. The manager is idle until Run is started
// and Connect is called.
func New(cfg Config, amb federation.Ambassador, engine *translate.Engine,
	coord *timecoord.Coordinator, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if amb == nil || engine == nil || coord == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Manager", "New",
			"ambassador, translation engine and time coordinator required")
	}

	m := &Manager{
		cfg:       cfg,
		amb:       amb,
		engine:    engine,
		coord:     coord,
		logger:    slog.Default(),
		diag:      rate.NewLimiter(rate.Every(time.Second), 5),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastErr.Store("")

	mm, err := newManagerMetrics(m.registry)
	if err != nil {
		return nil, errors.WrapTransient(err, "Manager", "New", "metrics registration")
	}
	m.metrics = mm

	q, err := dispatch.New(cfg.QueueCapacity, m.registry, dispatch.WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.queue = q

	prejoinCap := cfg.PreJoinCapacity
	if prejoinCap == 0 {
		prejoinCap = 1
	}
	pj, err := buffer.NewCircularBuffer(prejoinCap,
		buffer.WithOverflowPolicy[canonical.Event](buffer.DropOldest),
		buffer.WithDropCallback(m.onPrejoinDrop),
		buffer.WithMetrics[canonical.Event](m.registry, "prejoin"),
	)
	if err != nil {
		return nil, err
	}
	m.prejoin = pj

	if fn, ok := amb.(federation.FaultNotifier); ok {
		fn.OnFault(func(err error) {
			m.queue.Control(dispatch.Directive{Kind: dispatch.DirectiveFault, Err: err})
		})
	}

	return m, nil
}

func (m *Manager) onPrejoinDrop(ev canonical.Event) {
	m.prejoinDropped.Add(1)
	if m.metrics != nil {
		m.metrics.prejoinDropped.WithLabelValues(ev.Channel()).Inc()
	}
}

// Connect asks the manager to connect to uri and join the federation.
// It returns once the request is queued; only endpoint syntax errors are
// reported here.
func (m *Manager) Connect(uri string, creds federation.Credentials) error {
	ep, err := federation.ParseEndpoint(uri, creds)
	if err != nil {
		return err
	}
	m.queue.Control(dispatch.Directive{Kind: dispatch.DirectiveConnect, Endpoint: &ep})
	return nil
}

// Resign asks the manager to drain, resign and disconnect.
func (m *Manager) Resign() {
	m.queue.Control(dispatch.Directive{Kind: dispatch.DirectiveResign})
}

// Shutdown asks Run to resign if joined and return. It does not wait; use Done.
func (m *Manager) Shutdown() {
	m.queue.Control(dispatch.Directive{Kind: dispatch.DirectiveShutdown})
}

// Submit enqueues an event without blocking.
func (m *Manager) Submit(ev canonical.Event) error {
	return m.queue.Submit(ev)
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// State returns the current connection state. Safe for concurrent use.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// LastError returns the last recorded connection error message.
func (m *Manager) LastError() string {
	s, _ := m.lastErr.Load().(string)
	return s
}

// Health reports bridge health from the connection state.
func (m *Manager) Health() health.Status {
	state := m.State()
	return health.FromConnectionState("bridge", state.String(), m.LastError()).WithMetrics(&health.Metrics{
		Uptime:         time.Since(m.startedAt),
		State:          state.String(),
		ConnectAttempt: int(m.attemptGauge.Load()),
		QueueDepth:     m.queue.DataLen() + m.prejoin.Size(),
		Dropped:        uint64(m.queue.Dropped()) + m.prejoinDropped.Load(),
	})
}

func (m *Manager) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.logger.Info("Connection state changed", "from", from.String(), "to", to.String())
	if m.metrics != nil {
		m.metrics.core.RecordState(from.String(), to.String(), int(to))
	}
}

func (m *Manager) recordErr(err error) {
	m.lastErr.Store(err.Error())
}

func (m *Manager) observe(op federation.Op, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.core.RecordAmbassadorCall(string(op), time.Since(start))
	if err != nil {
		m.metrics.core.RecordAmbassadorError(string(op), errors.Classify(err).String())
	}
}

// Run processes the queue until Shutdown, ctx cancellation or a fatal error.
// It returns nil on an orderly stop and the fatal error otherwise.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Manager", "Run", "start consumer")
	}
	defer close(m.done)

	for {
		w, err := m.queue.Next(ctx)
		if err != nil {
			m.logger.Info("Context cancelled, shutting down bridge")
			m.shutdown(context.WithoutCancel(ctx))
			return nil
		}

		if !w.IsDirective() {
			if err := m.handleEvent(ctx, w.Event); err != nil {
				return m.fail(ctx, err)
			}
			continue
		}

		d := w.Directive
		switch d.Kind {
		case dispatch.DirectiveConnect:
			err = m.handleConnect(ctx, d)
		case dispatch.DirectiveResign:
			err = m.handleResign(ctx)
		case dispatch.DirectiveFault:
			err = m.handleFault(d.Err)
		case dispatch.DirectiveShutdown:
			m.shutdown(ctx)
			return nil
		}
		if err != nil {
			return m.fail(ctx, err)
		}
	}
}

// fail tears down after a fatal error and returns it.
func (m *Manager) fail(ctx context.Context, err error) error {
	m.recordErr(err)
	m.logger.Error("Fatal federation error, stopping bridge", "error", err)
	m.cancelRetry()
	m.queue.CloseData()

	if m.State().connectedToRTI() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ConnectTimeout)
		_ = m.amb.Disconnect(cctx)
		cancel()
	}
	m.dropSession()
	m.setState(StateFailed)
	return err
}

func (m *Manager) handleConnect(ctx context.Context, d *dispatch.Directive) error {
	state := m.State()

	if d.Endpoint != nil {
		if state != StateDisconnected && state != StateFailed {
			m.logger.Info("Connect ignored, session already active", "state", state.String())
			return nil
		}
		m.cancelRetry()
		m.endpoint = d.Endpoint
		m.attempt = 0
	} else if state != StateFailed || d.Attempt != m.attempt || m.endpoint == nil {
		return nil // stale retry
	}

	m.attemptGauge.Store(int32(m.attempt + 1))
	err := m.establish(ctx)
	if err == nil {
		m.attempt = 0
		m.attemptGauge.Store(0)
		if m.metrics != nil {
			m.metrics.core.RecordConnectAttempt("success")
		}
		return m.flushPrejoin(ctx)
	}
	if ctx.Err() != nil {
		return nil // shutting down; Next reports the cancellation
	}

	if m.metrics != nil {
		m.metrics.core.RecordConnectAttempt("failure")
	}
	return m.scheduleRetry(err)
}

// establish runs Connecting → Connected → Joining → Joined.
func (m *Manager) establish(ctx context.Context) error {
	ep := *m.endpoint
	m.setState(StateConnecting)
	m.logger.Info("Connecting to federation", "endpoint", ep.String(),
		"federate", m.cfg.FederateName, "attempt", m.attempt+1)

	cctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	err := m.amb.Connect(cctx, ep, m.cfg.FederateName)
	m.observe(federation.OpConnect, start, err)
	if err != nil {
		return err
	}
	m.setState(StateConnected)

	m.setState(StateJoining)
	start = time.Now()
	handle, err := m.amb.Join(cctx, m.cfg.FederationName)
	m.observe(federation.OpJoin, start, err)
	if err != nil {
		m.abandon(ctx)
		return err
	}

	session := federation.NewSession(handle)
	if err := m.declare(cctx, session); err != nil {
		m.abandon(ctx)
		return err
	}

	initial := canonical.Time(0)
	if m.coord.TimeManaged() {
		start = time.Now()
		initial, err = m.amb.EnableTimeManagement(cctx, m.coord.Lookahead())
		m.observe(federation.OpEnableTime, start, err)
		if err != nil {
			m.abandon(ctx)
			return err
		}
	}
	m.coord.Reset(initial)

	m.session = session
	m.setState(StateJoined)
	m.logger.Info("Joined federation", "federation", m.cfg.FederationName,
		"federate_handle", uint64(handle), "instances", session.Instances(),
		"time_mode", string(m.coord.Mode()))
	return nil
}

// declare publishes every bound class and registers every bound instance.
func (m *Manager) declare(ctx context.Context, session *federation.Session) error {
	table := m.engine.Table()

	for _, oc := range table.ObjectClasses() {
		start := time.Now()
		err := m.amb.PublishObjectClass(ctx, oc.Name, oc.Attributes)
		m.observe(federation.OpPublishObject, start, err)
		if err != nil {
			return err
		}
	}
	for _, ic := range table.InteractionClasses() {
		start := time.Now()
		err := m.amb.PublishInteractionClass(ctx, ic.Name, ic.Parameters)
		m.observe(federation.OpPublishInteract, start, err)
		if err != nil {
			return err
		}
	}
	for _, inst := range table.Instances() {
		if err := m.register(ctx, session, inst); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) register(ctx context.Context, session *federation.Session, inst binding.Instance) error {
	start := time.Now()
	h, err := m.amb.RegisterObjectInstance(ctx, inst.Class, inst.Name)
	m.observe(federation.OpRegister, start, err)
	if err != nil {
		return err
	}
	session.Bind(inst.Name, h)
	return nil
}

// abandon drops a half-established connection.
func (m *Manager) abandon(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ConnectTimeout)
	defer cancel()
	if err := m.amb.Disconnect(cctx); err != nil {
		m.logger.Debug("Disconnect after failed join", "error", err)
	}
}

// scheduleRetry records a connection failure and arms the retry timer.
// Fatal classes and an exhausted policy are returned as fatal errors.
func (m *Manager) scheduleRetry(cause error) error {
	m.recordErr(cause)
	m.setState(StateFailed)

	if errors.IsFatal(cause) {
		return cause
	}

	m.attempt++
	if m.cfg.Retry.Exhausted(m.attempt) {
		return errors.WrapFatal(
			fmt.Errorf("%w: %d connect attempts: %v", errors.ErrMaxRetriesExceeded, m.attempt, cause),
			"Manager", "Connect", "connect to federation")
	}

	delay := m.cfg.Retry.Delay(m.attempt)
	attempt := m.attempt
	m.logger.Warn("Federation connection failed, retrying",
		"error", cause, "attempt", attempt, "retry_in", delay)

	m.timerMu.Lock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = time.AfterFunc(delay, func() {
		m.queue.Control(dispatch.Directive{Kind: dispatch.DirectiveConnect, Attempt: attempt})
	})
	m.timerMu.Unlock()
	return nil
}

func (m *Manager) cancelRetry() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *Manager) dropSession() {
	if m.session != nil {
		m.session.Invalidate()
		m.session = nil
	}
}

// handleFault reacts to connection loss reported outside of a call.
func (m *Manager) handleFault(cause error) error {
	if !m.State().connectedToRTI() {
		return nil // already down
	}
	if cause == nil {
		cause = errors.ErrConnectionLost
	}
	m.logger.Warn("Federation connection lost", "error", cause)
	m.dropSession()
	m.attempt = 0
	return m.scheduleRetry(cause)
}

func (m *Manager) handleEvent(ctx context.Context, ev canonical.Event) error {
	if m.State() != StateJoined {
		_ = m.prejoin.Write(ev)
		return nil
	}
	return m.deliver(ctx, ev)
}

// flushPrejoin delivers buffered events in arrival order. It stops early if
// a delivery failure leaves the Joined state.
func (m *Manager) flushPrejoin(ctx context.Context) error {
	n := 0
	for m.State() == StateJoined {
		ev, ok := m.prejoin.Read()
		if !ok {
			break
		}
		if err := m.deliver(ctx, ev); err != nil {
			return err
		}
		n++
	}
	if n > 0 {
		m.logger.Info("Flushed pre-join buffer", "events", n)
	}
	return nil
}

// deliver translates one event and issues the federation update. Invalid
// events are dropped; connection loss moves to Failed and schedules a retry;
// fatal errors are returned.
func (m *Manager) deliver(ctx context.Context, ev canonical.Event) error {
	u, err := m.engine.Translate(ev)
	if err != nil {
		m.absorb("translate", ev, err)
		return nil
	}
	if u == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()

	var ts *federation.LogicalTime
	if d := m.coord.Decide(ev.Time()); d.Advance {
		start := time.Now()
		granted, err := m.amb.AdvanceTime(cctx, d.Target)
		m.observe(federation.OpAdvance, start, err)
		if err != nil {
			return m.callFailed(ctx, ev, err)
		}
		t := m.coord.Granted(granted)
		ts = &t
	}

	var op federation.Op
	start := time.Now()
	switch u.Kind {
	case binding.KindObject:
		op = federation.OpUpdate
		handle, ok := m.session.Instance(u.Instance)
		if !ok {
			m.absorb("bridge", ev, errors.WrapInvalid(
				fmt.Errorf("%w: instance %q not registered", errors.ErrInvalidData, u.Instance),
				"Manager", "deliver", "resolve instance"))
			return nil
		}
		err = m.amb.UpdateAttributes(cctx, handle, u.Encoded(), ts)
	default:
		op = federation.OpInteraction
		err = m.amb.SendInteraction(cctx, u.Class, u.Encoded(), ts)
	}
	m.observe(op, start, err)
	if err != nil {
		return m.callFailed(ctx, ev, err)
	}

	if m.metrics != nil {
		m.metrics.core.RecordDispatched(ev.Channel(), string(u.Kind))
	}
	return nil
}

func (m *Manager) absorb(component string, ev canonical.Event, err error) {
	if m.metrics != nil {
		m.metrics.core.RecordError(component, errors.Classify(err).String())
	}
	if m.diag.Allow() {
		m.logger.Warn("Dropping event", "channel", ev.Channel(), "error", err)
	}
}

func (m *Manager) callFailed(ctx context.Context, ev canonical.Event, err error) error {
	switch {
	case errors.IsFatal(err):
		return err
	case errors.IsInvalid(err):
		m.absorb("ambassador", ev, err)
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		m.logger.Warn("Federation call failed, reconnecting", "channel", ev.Channel(), "error", err)
		if m.State().connectedToRTI() {
			m.abandon(ctx)
		}
		m.dropSession()
		m.attempt = 0
		return m.scheduleRetry(err)
	}
}

func (m *Manager) handleResign(ctx context.Context) error {
	switch m.State() {
	case StateJoined:
		m.resign(ctx)
	case StateFailed:
		m.cancelRetry()
		m.endpoint = nil
		m.setState(StateDisconnected)
	default:
		m.logger.Info("Resign ignored, not joined", "state", m.State().String())
	}
	return nil
}

// resign drains queued data within the drain timeout, resigns and disconnects.
func (m *Manager) resign(ctx context.Context) {
	m.setState(StateResigning)

	drainCtx, cancel := context.WithTimeout(ctx, m.cfg.DrainTimeout)
	drained := 0
	for drainCtx.Err() == nil {
		ev, ok := m.queue.NextData()
		if !ok {
			break
		}
		if err := m.deliver(drainCtx, ev); err != nil {
			m.logger.Error("Drain stopped by fatal error", "error", err)
			break
		}
		if m.State() != StateResigning {
			break
		}
		drained++
	}
	cancel()
	discarded := 0
	for {
		if _, ok := m.queue.NextData(); !ok {
			break
		}
		discarded++
	}
	if discarded > 0 {
		m.logger.Warn("Drain timeout reached, discarding queued events", "discarded", discarded)
	}

	if m.State() == StateResigning {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ConnectTimeout)
		start := time.Now()
		err := m.amb.Resign(cctx)
		m.observe(federation.OpResign, start, err)
		if err != nil {
			m.logger.Warn("Resign failed", "error", err)
		}
		start = time.Now()
		err = m.amb.Disconnect(cctx)
		m.observe(federation.OpDisconnect, start, err)
		if err != nil {
			m.logger.Warn("Disconnect failed", "error", err)
		}
		cancel()
	}

	m.cancelRetry()
	m.dropSession()
	m.endpoint = nil
	m.setState(StateDisconnected)
	m.logger.Info("Resigned from federation", "drained", drained)
}

func (m *Manager) shutdown(ctx context.Context) {
	m.queue.CloseData()
	m.cancelRetry()

	switch state := m.State(); {
	case state == StateJoined:
		m.resign(ctx)
	case state.connectedToRTI():
		m.abandon(ctx)
	}

	if n := m.prejoin.Size(); n > 0 {
		m.logger.Warn("Discarding events buffered before join", "events", n)
		m.prejoin.Clear()
	}
	m.dropSession()
	m.setState(StateDisconnected)
	m.logger.Info("Bridge stopped")
}
