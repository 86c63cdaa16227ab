package natsrti

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/federation"
)

type published struct {
	subject string
	update  Update
}

// fakeGateway answers requests in-process.
type fakeGateway struct {
	mu        sync.Mutex
	requests  map[string][]Request
	published []published
	failCode  map[string]string
	badID     bool
	transport error
	nextTime  int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{requests: map[string][]Request{}, failCode: map[string]string{}}
}

func (g *fakeGateway) Request(_ context.Context, subject string, data []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.transport != nil {
		return nil, g.transport
	}

	var req Request
	if err := cbor.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	op := strings.TrimPrefix(subject, "rti.")
	g.requests[op] = append(g.requests[op], req)

	resp := Response{ID: req.ID, OK: true}
	if g.badID {
		resp.ID = "other"
	}
	if code, ok := g.failCode[op]; ok {
		resp.OK = false
		resp.Code = code
		resp.Message = "scripted"
	}

	switch op {
	case SubjectJoin:
		resp.Handle = 7
	case SubjectRegister:
		resp.Handle = uint64(100 + len(g.requests[op]))
	case SubjectTimeEnable:
		resp.Time = 0
	case SubjectTimeAdvance:
		g.nextTime = req.Target
		resp.Time = g.nextTime
	}
	return cbor.Marshal(resp)
}

func (g *fakeGateway) Publish(_ context.Context, subject string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transport != nil {
		return g.transport
	}
	var u Update
	if err := cbor.Unmarshal(data, &u); err != nil {
		return err
	}
	g.published = append(g.published, published{subject: subject, update: u})
	return nil
}

func newTestAmbassador(t *testing.T) (*Ambassador, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	amb, err := New(gw, "", nil)
	require.NoError(t, err)
	return amb, gw
}

func TestAmbassador_Lifecycle(t *testing.T) {
	amb, gw := newTestAmbassador(t)
	ctx := context.Background()

	endpoint, err := federation.ParseEndpoint("10.0.0.5", federation.Credentials{Username: "robot", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, amb.Connect(ctx, endpoint, "rospitch_node_ab12"))
	handle, err := amb.Join(ctx, "RobotFederation")
	require.NoError(t, err)
	assert.Equal(t, federation.FederateHandle(7), handle)

	require.NoError(t, amb.PublishObjectClass(ctx, "HLAobjectRoot.Platform", []string{"Latitude", "Longitude"}))
	require.NoError(t, amb.PublishInteractionClass(ctx, "HLAinteractionRoot.Waypoint", []string{"Index"}))

	inst, err := amb.RegisterObjectInstance(ctx, "HLAobjectRoot.Platform", "platform 1")
	require.NoError(t, err)

	granted, err := amb.AdvanceTime(ctx, 5_000)
	require.NoError(t, err)
	assert.Equal(t, federation.LogicalTime(5_000), granted)

	ts := federation.LogicalTime(5_100)
	require.NoError(t, amb.UpdateAttributes(ctx, inst, federation.AttributeValues{"Latitude": {1, 2}}, &ts))
	require.NoError(t, amb.SendInteraction(ctx, "HLAinteractionRoot.Waypoint", federation.ParameterValues{"Index": {0}}, nil))

	require.NoError(t, amb.Resign(ctx))
	require.NoError(t, amb.Disconnect(ctx))

	connect := gw.requests[SubjectConnect][0]
	assert.Equal(t, ProtocolVersion, connect.Version)
	assert.Equal(t, "crcAddress=10.0.0.5:8989", connect.Endpoint)
	assert.Equal(t, "rospitch_node_ab12", connect.Federate)
	assert.Equal(t, "robot", connect.Username)
	assert.NotEmpty(t, connect.ID)

	require.Len(t, gw.requests[SubjectPublish], 2)
	assert.Equal(t, "object", gw.requests[SubjectPublish][0].Kind)
	assert.Equal(t, "interaction", gw.requests[SubjectPublish][1].Kind)

	require.Len(t, gw.published, 2)
	assert.Equal(t, "rti.object.HLAobjectRoot.Platform.platform_1", gw.published[0].subject)
	assert.Equal(t, uint64(7), gw.published[0].update.Federate)
	require.NotNil(t, gw.published[0].update.Time)
	assert.Equal(t, int64(5_100), *gw.published[0].update.Time)
	assert.Equal(t, []byte{1, 2}, gw.published[0].update.Values["Latitude"])

	assert.Equal(t, "rti.interaction.HLAinteractionRoot.Waypoint", gw.published[1].subject)
	assert.Nil(t, gw.published[1].update.Time, "receive order carries no timestamp")
}

func TestAmbassador_ErrorCodes(t *testing.T) {
	cases := []struct {
		code  string
		class errors.ErrorClass
		is    error
	}{
		{CodeVersionMismatch, errors.ErrorFatal, errors.ErrVersionMismatch},
		{CodeAuthRejected, errors.ErrorTransient, errors.ErrAuthRejected},
		{CodeNotConnected, errors.ErrorTransient, errors.ErrNoConnection},
		{CodeNotJoined, errors.ErrorTransient, errors.ErrNotJoined},
		{CodeFederationGone, errors.ErrorTransient, errors.ErrFederationGone},
		{CodeUnavailable, errors.ErrorTransient, errors.ErrConnectionLost},
		{CodeInvalid, errors.ErrorInvalid, errors.ErrInvalidData},
		{"something_new", errors.ErrorTransient, errors.ErrConnectionLost},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			amb, gw := newTestAmbassador(t)
			gw.failCode[SubjectConnect] = tc.code

			err := amb.Connect(context.Background(), federation.Endpoint{URI: "h:1"}, "f")
			require.Error(t, err)
			assert.Equal(t, tc.class, errors.Classify(err))
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestAmbassador_TransportFailures(t *testing.T) {
	amb, gw := newTestAmbassador(t)
	gw.transport = stderrors.New("nats: no responders available for request")

	err := amb.Connect(context.Background(), federation.Endpoint{URI: "h:1"}, "f")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrConnectionLost)

	err = amb.SendInteraction(context.Background(), "C", nil, nil)
	assert.True(t, errors.IsTransient(err))
}

func TestAmbassador_MismatchedReplyID(t *testing.T) {
	amb, gw := newTestAmbassador(t)
	gw.badID = true

	_, err := amb.Join(context.Background(), "F")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedPayload)
}

func TestAmbassador_UnknownHandle(t *testing.T) {
	amb, _ := newTestAmbassador(t)
	err := amb.UpdateAttributes(context.Background(), 999, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestAmbassador_FaultOnlyWhileConnected(t *testing.T) {
	amb, _ := newTestAmbassador(t)

	var faults []error
	amb.OnFault(func(err error) { faults = append(faults, err) })

	amb.HandleDisconnect(stderrors.New("eof"))
	assert.Empty(t, faults, "no fault before connect")

	require.NoError(t, amb.Connect(context.Background(), federation.Endpoint{URI: "h:1"}, "f"))
	amb.HandleDisconnect(stderrors.New("eof"))
	amb.HandleDisconnect(stderrors.New("eof"))

	require.Len(t, faults, 1)
	assert.True(t, errors.IsTransient(faults[0]))
	assert.ErrorIs(t, faults[0], errors.ErrConnectionLost)
}

func TestNew_RequiresTransport(t *testing.T) {
	_, err := New(nil, "rti", nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
