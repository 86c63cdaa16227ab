package natsrti

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/federation"
)

// Transport is the subset of natsclient.Client the ambassador needs.
type Transport interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Publish(ctx context.Context, subject string, data []byte) error
}

type instance struct {
	class string
	name  string
}

// Ambassador speaks to an RTI gateway over NATS.
type Ambassador struct {
	transport Transport
	prefix    string
	logger    *slog.Logger
	enc       cbor.EncMode

	mu        sync.Mutex
	connected bool
	federate  federation.FederateHandle
	instances map[federation.ObjectInstanceHandle]instance
	onFault   func(error)
}

// New creates an ambassador publishing under prefix (default "rti").
func New(transport Transport, prefix string, logger *slog.Logger) (*Ambassador, error) {
	if transport == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Ambassador", "New", "transport required")
	}
	if prefix == "" {
		prefix = "rti"
	}
	if logger == nil {
		logger = slog.Default()
	}

	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, errors.WrapFatal(err, "Ambassador", "New", "build CBOR encoder")
	}

	return &Ambassador{
		transport: transport,
		prefix:    prefix,
		logger:    logger,
		enc:       enc,
		instances: make(map[federation.ObjectInstanceHandle]instance),
	}, nil
}

// OnFault registers the connection-loss handler.
func (a *Ambassador) OnFault(handler func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFault = handler
}

// HandleDisconnect is meant for natsclient.WithDisconnectCallback. It reports
// a fault only while a federation connection is believed open.
func (a *Ambassador) HandleDisconnect(err error) {
	a.mu.Lock()
	wasConnected := a.connected
	a.connected = false
	handler := a.onFault
	a.mu.Unlock()

	if !wasConnected || handler == nil {
		return
	}
	if err == nil {
		err = errors.ErrConnectionLost
	}
	handler(errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
		"Ambassador", "HandleDisconnect", "gateway transport"))
}

func (a *Ambassador) subject(parts ...string) string {
	s := a.prefix
	for _, p := range parts {
		s += "." + p
	}
	return s
}

func (a *Ambassador) call(ctx context.Context, op, subject string, req Request) (Response, error) {
	req.ID = uuid.NewString()
	data, err := a.enc.Marshal(req)
	if err != nil {
		return Response{}, errors.WrapInvalid(err, "Ambassador", op, "encode request")
	}

	raw, err := a.transport.Request(ctx, a.subject(subject), data)
	if err != nil {
		return Response{}, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
			"Ambassador", op, "gateway request")
	}

	var resp Response
	if err := cbor.Unmarshal(raw, &resp); err != nil {
		return Response{}, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err),
			"Ambassador", op, "decode response")
	}
	if resp.ID != req.ID {
		return Response{}, errors.WrapTransient(
			fmt.Errorf("%w: reply %s for request %s", errors.ErrMalformedPayload, resp.ID, req.ID),
			"Ambassador", op, "correlate response")
	}
	if !resp.OK {
		return resp, codeError(op, resp.Code, resp.Message)
	}
	return resp, nil
}

// Connect asks the gateway to connect its RTI ambassador to the CRC.
func (a *Ambassador) Connect(ctx context.Context, endpoint federation.Endpoint, federateName string) error {
	_, err := a.call(ctx, "Connect", SubjectConnect, Request{
		Version:  ProtocolVersion,
		Federate: federateName,
		Endpoint: endpoint.CRCAddress(),
		Username: endpoint.Credentials.Username,
		Password: endpoint.Credentials.Password,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()

	a.logger.Debug("Gateway connected", "endpoint", endpoint.String(), "federate", federateName)
	return nil
}

// Join joins the federation execution.
func (a *Ambassador) Join(ctx context.Context, federationName string) (federation.FederateHandle, error) {
	resp, err := a.call(ctx, "Join", SubjectJoin, Request{Federation: federationName})
	if err != nil {
		return 0, err
	}

	h := federation.FederateHandle(resp.Handle)
	a.mu.Lock()
	a.federate = h
	a.mu.Unlock()
	return h, nil
}

// PublishObjectClass declares the federate publishes attributes of class.
func (a *Ambassador) PublishObjectClass(ctx context.Context, class string, attributes []string) error {
	_, err := a.call(ctx, "PublishObjectClass", SubjectPublish, Request{Kind: "object", Class: class, Names: attributes})
	return err
}

// PublishInteractionClass declares the federate sends interactions of class.
func (a *Ambassador) PublishInteractionClass(ctx context.Context, class string, parameters []string) error {
	_, err := a.call(ctx, "PublishInteractionClass", SubjectPublish,
		Request{Kind: "interaction", Class: class, Names: parameters})
	return err
}

// RegisterObjectInstance registers a named instance of class.
func (a *Ambassador) RegisterObjectInstance(ctx context.Context, class, name string) (federation.ObjectInstanceHandle, error) {
	resp, err := a.call(ctx, "RegisterObjectInstance", SubjectRegister, Request{Class: class, Instance: name})
	if err != nil {
		return 0, err
	}

	h := federation.ObjectInstanceHandle(resp.Handle)
	a.mu.Lock()
	a.instances[h] = instance{class: class, name: name}
	a.mu.Unlock()
	return h, nil
}

// EnableTimeManagement enables regulation and constraint.
func (a *Ambassador) EnableTimeManagement(ctx context.Context, lookahead federation.LogicalTime) (federation.LogicalTime, error) {
	resp, err := a.call(ctx, "EnableTimeManagement", SubjectTimeEnable, Request{Lookahead: int64(lookahead)})
	if err != nil {
		return 0, err
	}
	return federation.LogicalTime(resp.Time), nil
}

// AdvanceTime requests an advance and waits for the grant.
func (a *Ambassador) AdvanceTime(ctx context.Context, target federation.LogicalTime) (federation.LogicalTime, error) {
	resp, err := a.call(ctx, "AdvanceTime", SubjectTimeAdvance, Request{Target: int64(target)})
	if err != nil {
		return 0, err
	}
	return federation.LogicalTime(resp.Time), nil
}

func (a *Ambassador) publish(ctx context.Context, op, subject string, u Update) error {
	data, err := a.enc.Marshal(u)
	if err != nil {
		return errors.WrapInvalid(err, "Ambassador", op, "encode update")
	}
	if err := a.transport.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, err), "Ambassador", op, "publish")
	}
	return nil
}

func toWire(ts *federation.LogicalTime) *int64 {
	if ts == nil {
		return nil
	}
	v := int64(*ts)
	return &v
}

// UpdateAttributes publishes attribute values for a registered instance.
func (a *Ambassador) UpdateAttributes(ctx context.Context, handle federation.ObjectInstanceHandle,
	values federation.AttributeValues, ts *federation.LogicalTime) error {
	a.mu.Lock()
	inst, ok := a.instances[handle]
	federate := a.federate
	a.mu.Unlock()
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: unknown object instance handle %d", errors.ErrInvalidData, handle),
			"Ambassador", "UpdateAttributes", "resolve handle")
	}

	return a.publish(ctx, "UpdateAttributes", a.subject("object", token(inst.class), token(inst.name)), Update{
		Federate: uint64(federate),
		Handle:   uint64(handle),
		Class:    inst.class,
		Instance: inst.name,
		Values:   values,
		Time:     toWire(ts),
	})
}

// SendInteraction publishes an interaction.
func (a *Ambassador) SendInteraction(ctx context.Context, class string, params federation.ParameterValues,
	ts *federation.LogicalTime) error {
	a.mu.Lock()
	federate := a.federate
	a.mu.Unlock()

	return a.publish(ctx, "SendInteraction", a.subject("interaction", token(class)), Update{
		Federate: uint64(federate),
		Class:    class,
		Values:   params,
		Time:     toWire(ts),
	})
}

// Resign resigns from the federation execution.
func (a *Ambassador) Resign(ctx context.Context) error {
	_, err := a.call(ctx, "Resign", SubjectResign, Request{})
	a.mu.Lock()
	a.instances = make(map[federation.ObjectInstanceHandle]instance)
	a.federate = 0
	a.mu.Unlock()
	return err
}

// Disconnect closes the gateway's RTI connection.
func (a *Ambassador) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()

	_, err := a.call(ctx, "Disconnect", SubjectDisconnect, Request{})
	return err
}

var (
	_ federation.Ambassador    = (*Ambassador)(nil)
	_ federation.FaultNotifier = (*Ambassador)(nil)
)
