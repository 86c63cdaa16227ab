package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/errors"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(ChannelFix, 1_000_000,
		F("latitude", FloatValue(45.0)),
		F("longitude", FloatValue(-93.0)),
		F("status", IntValue(2)),
	)
	require.NoError(t, err)

	assert.Equal(t, ChannelFix, ev.Channel())
	assert.Equal(t, Time(1_000_000), ev.Time())
	assert.Equal(t, 3, ev.Len())

	lat, ok := ev.Field("latitude")
	require.True(t, ok)
	f, ok := lat.Float()
	require.True(t, ok)
	assert.Equal(t, 45.0, f)

	_, ok = ev.Field("heading")
	assert.False(t, ok)

	names := make([]string, 0, ev.Len())
	for _, field := range ev.Fields() {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"latitude", "longitude", "status"}, names)
}

func TestNewEvent_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		fields  []Field
	}{
		{"empty channel", "", nil},
		{"unnamed field", ChannelFix, []Field{F("", FloatValue(1))}},
		{"invalid value", ChannelFix, []Field{F("x", Value{})}},
		{"duplicate field", ChannelFix, []Field{F("x", IntValue(1)), F("x", IntValue(2))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(tt.channel, 0, tt.fields...)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrInvalidData)
		})
	}
}

func TestEvent_Immutable(t *testing.T) {
	in := []Field{F("qx", FloatValue(0)), F("qw", FloatValue(1))}
	ev, err := NewEvent(ChannelOrientation, 0, in...)
	require.NoError(t, err)

	in[0] = F("mutated", BoolValue(true))
	out := ev.Fields()
	out[1] = F("mutated", BoolValue(true))

	fields := ev.Fields()
	assert.Equal(t, "qx", fields[0].Name)
	assert.Equal(t, "qw", fields[1].Name)
}

func TestFromWall(t *testing.T) {
	wall := time.Date(2024, 5, 1, 12, 0, 0, 1500, time.UTC)
	ts := FromWall(wall)

	assert.Equal(t, Time(wall.UnixMicro()), ts)
	assert.Equal(t, wall.Truncate(time.Microsecond), ts.Wall())
}

func TestValue(t *testing.T) {
	tests := []struct {
		in   any
		kind Kind
		str  string
	}{
		{1.5, KindFloat, "1.5"},
		{int64(7), KindInt, "7"},
		{3, KindInt, "3"},
		{"hi", KindString, `"hi"`},
		{true, KindBool, "true"},
	}

	for _, tt := range tests {
		v, err := ValueOf(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.kind, v.Kind())
		assert.Equal(t, tt.str, v.String())
		assert.True(t, v.Equal(v))
	}

	_, err := ValueOf([]int{1})
	assert.Error(t, err)

	assert.False(t, FloatValue(1).Equal(IntValue(1)))
	assert.Nil(t, Value{}.Any())
}

func TestEvent_String(t *testing.T) {
	ev, err := NewEvent(ChannelMission, 5, F("index", IntValue(0)), F("is_current", BoolValue(true)))
	require.NoError(t, err)
	assert.Equal(t, "mission@5{index=0, is_current=true}", ev.String())
}
