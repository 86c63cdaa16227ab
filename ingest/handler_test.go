package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/metric"
)

type recordingSink struct {
	mu     sync.Mutex
	events []canonical.Event
	err    error
}

func (s *recordingSink) Submit(ev canonical.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Events() []canonical.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]canonical.Event(nil), s.events...)
}

func TestHandler_JSONFix(t *testing.T) {
	sink := &recordingSink{}
	h := NewHandler[NavSatFix](canonical.ChannelFix, JSON{}, FixAdapter{Clock: fixedClock}, sink, nil)

	n := h.Handle(context.Background(), []byte(`{
		"header": {"seq": 1, "stamp": {"secs": 0, "nsecs": 0}, "frame_id": "gps"},
		"status": {"status": 0, "service": 1},
		"latitude": 45.0, "longitude": -93.0, "altitude": 250.0
	}`))

	assert.Equal(t, 1, n)
	require.Len(t, sink.Events(), 1)
	assert.Equal(t, 45.0, floatField(t, sink.Events()[0], "latitude"))
	assert.Equal(t, canonical.ChannelFix, h.Channel())
}

func TestHandler_CBORMission(t *testing.T) {
	codec, err := NewCBOR()
	require.NoError(t, err)

	data, err := cbor.Marshal(WaypointList{Waypoints: []Waypoint{
		waypointAt(1, 2, 0), waypointAt(3, 4, 0), waypointAt(5, 6, 0),
	}})
	require.NoError(t, err)

	sink := &recordingSink{}
	h := NewHandler[WaypointList](canonical.ChannelMission, codec, MissionAdapter{Clock: fixedClock}, sink, nil)
	assert.Equal(t, 3, h.Handle(context.Background(), data))
	assert.Len(t, sink.Events(), 3)
}

func TestHandler_MalformedCounted(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	diag, err := NewDiagnostics(nil, registry)
	require.NoError(t, err)

	sink := &recordingSink{}
	handlers := Handlers(JSON{}, sink, diag, fixedClock)
	require.Len(t, handlers, 3)

	ctx := context.Background()
	handlers[canonical.ChannelFix](ctx, []byte(`not json`))
	handlers[canonical.ChannelFix](ctx, []byte(`{"latitude": 95, "longitude": 0}`))
	handlers[canonical.ChannelOrientation](ctx, []byte(`{"orientation": {"x":0,"y":0,"z":0,"w":0}}`))
	handlers[canonical.ChannelOrientation](ctx, []byte(`{"orientation": {"x":0,"y":0,"z":0,"w":1}}`))

	handlers[canonical.ChannelFix](ctx, []byte(`{"latitude": null, "longitude": null, "altitude": null}`))
	handlers[canonical.ChannelFix](ctx, []byte(`{}`))
	handlers[canonical.ChannelMission](ctx, []byte(`{"waypoints": [{}, {}]}`))

	assert.Len(t, sink.Events(), 1)
	assert.Equal(t, 4.0, testutil.ToFloat64(diag.metrics.malformed.WithLabelValues(canonical.ChannelFix)))
	assert.Equal(t, 1.0, testutil.ToFloat64(diag.metrics.malformed.WithLabelValues(canonical.ChannelMission)))
	assert.Equal(t, 1.0, testutil.ToFloat64(diag.metrics.malformed.WithLabelValues(canonical.ChannelOrientation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(diag.metrics.received.WithLabelValues(canonical.ChannelOrientation)))
}

func TestHandler_SinkRejects(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	diag, err := NewDiagnostics(nil, registry)
	require.NoError(t, err)

	sink := &recordingSink{err: errors.WrapInvalid(errors.ErrShuttingDown, "test", "Submit", "closed")}
	h := NewHandler[Imu](canonical.ChannelOrientation, JSON{}, OrientationAdapter{}, sink, diag)

	assert.Equal(t, 0, h.Handle(context.Background(), []byte(`{"orientation": {"w": 1}}`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(diag.metrics.rejected.WithLabelValues(canonical.ChannelOrientation)))
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecJSON, c.Name())

	c, err = ParseCodec("cbor")
	require.NoError(t, err)
	assert.Equal(t, CodecCBOR, c.Name())

	_, err = ParseCodec("protobuf")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
