package federation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gamma-programme/rospitch/errors"
)

// Op names an ambassador operation for scripting and metrics.
type Op string

// Ambassador operations
const (
	OpConnect         Op = "connect"
	OpJoin            Op = "join"
	OpPublishObject   Op = "publish_object"
	OpPublishInteract Op = "publish_interaction"
	OpRegister        Op = "register_instance"
	OpEnableTime      Op = "enable_time"
	OpUpdate          Op = "update_attributes"
	OpInteraction     Op = "send_interaction"
	OpAdvance         Op = "advance_time"
	OpResign          Op = "resign"
	OpDisconnect      Op = "disconnect"
)

// RecordedUpdate is an attribute update captured by MemoryAmbassador.
type RecordedUpdate struct {
	Handle   ObjectInstanceHandle
	Instance string
	Class    string
	Values   AttributeValues
	Time     *LogicalTime
}

// RecordedInteraction is an interaction captured by MemoryAmbassador.
type RecordedInteraction struct {
	Class  string
	Params ParameterValues
	Time   *LogicalTime
}

var (
	_ Ambassador    = (*MemoryAmbassador)(nil)
	_ FaultNotifier = (*MemoryAmbassador)(nil)
)

type memoryInstance struct {
	name  string
	class string
}

// MemoryAmbassador is an in-process Ambassador that records every call.
// It enforces call ordering (connect before join, join before updates) and
// refuses retrograde time advances the way an RTI would.
type MemoryAmbassador struct {
	mu     sync.Mutex
	logger *slog.Logger

	failures map[Op][]error
	latency  map[Op]time.Duration
	calls    []Op
	onFault  func(error)

	connected    bool
	joined       bool
	endpoint     Endpoint
	federateName string
	federation   string
	nextHandle   uint64
	granted      LogicalTime
	timeManaged  bool

	objects      map[string][]string
	interactions map[string][]string
	instances    map[ObjectInstanceHandle]memoryInstance

	updates      []RecordedUpdate
	sent         []RecordedInteraction
	advances     []LogicalTime
	connectCalls int
}

// NewMemoryAmbassador creates a recorder. A nil logger discards call logs.
func NewMemoryAmbassador(logger *slog.Logger) *MemoryAmbassador {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemoryAmbassador{
		logger:       logger,
		failures:     make(map[Op][]error),
		latency:      make(map[Op]time.Duration),
		objects:      make(map[string][]string),
		interactions: make(map[string][]string),
		instances:    make(map[ObjectInstanceHandle]memoryInstance),
	}
}

// FailNext queues errors returned by the next calls of op, in order.
func (m *MemoryAmbassador) FailNext(op Op, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
}

// SetLatency makes every call of op take at least d.
func (m *MemoryAmbassador) SetLatency(op Op, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[op] = d
}

// OnFault implements FaultNotifier.
func (m *MemoryAmbassador) OnFault(handler func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFault = handler
}

// InjectFault simulates an asynchronous connection loss.
func (m *MemoryAmbassador) InjectFault(err error) {
	m.mu.Lock()
	m.connected = false
	m.joined = false
	handler := m.onFault
	m.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}

// begin records the call, applies latency and pops a scripted failure.
// It is called without the lock held and returns with the lock held.
func (m *MemoryAmbassador) begin(ctx context.Context, op Op) error {
	m.mu.Lock()
	m.calls = append(m.calls, op)
	d := m.latency[op]
	m.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			m.mu.Lock()
			return errors.WrapTransient(ctx.Err(), "MemoryAmbassador", string(op), "wait for call")
		}
	}

	m.mu.Lock()
	if queued := m.failures[op]; len(queued) > 0 {
		m.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (m *MemoryAmbassador) requireJoined(op Op) error {
	if !m.joined {
		return errors.WrapTransient(errors.ErrNotJoined, "MemoryAmbassador", string(op), "check federation membership")
	}
	return nil
}

// Connect implements Ambassador.
func (m *MemoryAmbassador) Connect(ctx context.Context, endpoint Endpoint, federateName string) error {
	err := m.begin(ctx, OpConnect)
	defer m.mu.Unlock()
	m.connectCalls++
	if err != nil {
		return err
	}
	if m.connected {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "MemoryAmbassador", "Connect", "connect twice")
	}
	m.connected = true
	m.endpoint = endpoint
	m.federateName = federateName
	m.logger.Info("Connected to RTI", "endpoint", endpoint.CRCAddress(), "federate", federateName)
	return nil
}

// Join implements Ambassador.
func (m *MemoryAmbassador) Join(ctx context.Context, federationName string) (FederateHandle, error) {
	err := m.begin(ctx, OpJoin)
	defer m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if !m.connected {
		return 0, errors.WrapTransient(errors.ErrNoConnection, "MemoryAmbassador", "Join", "check connection")
	}
	m.joined = true
	m.federation = federationName
	m.nextHandle++
	m.logger.Info("Joined federation", "federation", federationName, "federate", m.federateName)
	return FederateHandle(m.nextHandle), nil
}

// PublishObjectClass implements Ambassador.
func (m *MemoryAmbassador) PublishObjectClass(ctx context.Context, class string, attributes []string) error {
	err := m.begin(ctx, OpPublishObject)
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireJoined(OpPublishObject); err != nil {
		return err
	}
	m.objects[class] = append([]string(nil), attributes...)
	return nil
}

// PublishInteractionClass implements Ambassador.
func (m *MemoryAmbassador) PublishInteractionClass(ctx context.Context, class string, parameters []string) error {
	err := m.begin(ctx, OpPublishInteract)
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireJoined(OpPublishInteract); err != nil {
		return err
	}
	m.interactions[class] = append([]string(nil), parameters...)
	return nil
}

// RegisterObjectInstance implements Ambassador.
func (m *MemoryAmbassador) RegisterObjectInstance(ctx context.Context, class, name string) (ObjectInstanceHandle, error) {
	err := m.begin(ctx, OpRegister)
	defer m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if err := m.requireJoined(OpRegister); err != nil {
		return 0, err
	}
	if _, ok := m.objects[class]; !ok {
		return 0, errors.WrapInvalid(
			fmt.Errorf("object class %s not published", class), "MemoryAmbassador", "RegisterObjectInstance", "check class")
	}
	m.nextHandle++
	h := ObjectInstanceHandle(m.nextHandle)
	m.instances[h] = memoryInstance{name: name, class: class}
	return h, nil
}

// EnableTimeManagement implements Ambassador.
func (m *MemoryAmbassador) EnableTimeManagement(ctx context.Context, lookahead LogicalTime) (LogicalTime, error) {
	err := m.begin(ctx, OpEnableTime)
	defer m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if err := m.requireJoined(OpEnableTime); err != nil {
		return 0, err
	}
	m.timeManaged = true
	return m.granted, nil
}

// UpdateAttributes implements Ambassador.
func (m *MemoryAmbassador) UpdateAttributes(
	ctx context.Context, handle ObjectInstanceHandle, values AttributeValues, ts *LogicalTime,
) error {
	err := m.begin(ctx, OpUpdate)
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireJoined(OpUpdate); err != nil {
		return err
	}
	inst, ok := m.instances[handle]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("unknown object instance handle %d", handle), "MemoryAmbassador", "UpdateAttributes", "resolve handle")
	}
	m.updates = append(m.updates, RecordedUpdate{
		Handle:   handle,
		Instance: inst.name,
		Class:    inst.class,
		Values:   copyValues(values),
		Time:     copyTime(ts),
	})
	m.logger.Debug("Attribute update", "instance", inst.name, "class", inst.class, "attributes", len(values))
	return nil
}

// SendInteraction implements Ambassador.
func (m *MemoryAmbassador) SendInteraction(
	ctx context.Context, class string, params ParameterValues, ts *LogicalTime,
) error {
	err := m.begin(ctx, OpInteraction)
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireJoined(OpInteraction); err != nil {
		return err
	}
	if _, ok := m.interactions[class]; !ok {
		return errors.WrapInvalid(
			fmt.Errorf("interaction class %s not published", class), "MemoryAmbassador", "SendInteraction", "check class")
	}
	m.sent = append(m.sent, RecordedInteraction{Class: class, Params: ParameterValues(copyValues(params)), Time: copyTime(ts)})
	m.logger.Debug("Interaction sent", "class", class, "parameters", len(params))
	return nil
}

// AdvanceTime implements Ambassador. Grants are immediate.
func (m *MemoryAmbassador) AdvanceTime(ctx context.Context, target LogicalTime) (LogicalTime, error) {
	err := m.begin(ctx, OpAdvance)
	defer m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if err := m.requireJoined(OpAdvance); err != nil {
		return 0, err
	}
	if target < m.granted {
		return 0, errors.WrapInvalid(
			fmt.Errorf("retrograde advance to %d below granted %d", target, m.granted),
			"MemoryAmbassador", "AdvanceTime", "check time")
	}
	m.advances = append(m.advances, target)
	m.granted = target
	return target, nil
}

// Resign implements Ambassador.
func (m *MemoryAmbassador) Resign(ctx context.Context) error {
	err := m.begin(ctx, OpResign)
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.requireJoined(OpResign); err != nil {
		return err
	}
	m.joined = false
	m.instances = make(map[ObjectInstanceHandle]memoryInstance)
	m.logger.Info("Resigned from federation", "federation", m.federation)
	return nil
}

// Disconnect implements Ambassador.
func (m *MemoryAmbassador) Disconnect(ctx context.Context) error {
	err := m.begin(ctx, OpDisconnect)
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.connected = false
	m.joined = false
	return nil
}

// Calls returns every operation invoked, in order.
func (m *MemoryAmbassador) Calls() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.calls...)
}

// ConnectCalls returns how many times Connect was invoked.
func (m *MemoryAmbassador) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

// Updates returns recorded attribute updates.
func (m *MemoryAmbassador) Updates() []RecordedUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedUpdate(nil), m.updates...)
}

// Interactions returns recorded interactions.
func (m *MemoryAmbassador) Interactions() []RecordedInteraction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedInteraction(nil), m.sent...)
}

// Advances returns requested time advances.
func (m *MemoryAmbassador) Advances() []LogicalTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogicalTime(nil), m.advances...)
}

// Published returns the published object classes and their attributes.
func (m *MemoryAmbassador) Published() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.objects))
	for k, v := range m.objects {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// PublishedInteractions returns the published interaction classes.
func (m *MemoryAmbassador) PublishedInteractions() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.interactions))
	for k, v := range m.interactions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Joined reports whether the recorder is currently joined.
func (m *MemoryAmbassador) Joined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined
}

// Connected reports whether the recorder is currently connected.
func (m *MemoryAmbassador) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// TimeManaged reports whether time management was enabled.
func (m *MemoryAmbassador) TimeManaged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeManaged
}

// LastEndpoint returns the endpoint and federate name of the last successful connect.
func (m *MemoryAmbassador) LastEndpoint() (Endpoint, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint, m.federateName
}

func copyValues(in map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func copyTime(ts *LogicalTime) *LogicalTime {
	if ts == nil {
		return nil
	}
	t := *ts
	return &t
}
