package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func floatField(t *testing.T, ev canonical.Event, name string) float64 {
	t.Helper()
	v, ok := ev.Field(name)
	require.True(t, ok, "field %s", name)
	f, ok := v.Float()
	require.True(t, ok, "field %s is %s", name, v.Kind())
	return f
}

func fixAt(lat, lon, alt float64) NavSatFix {
	return NavSatFix{Latitude: Coord(lat), Longitude: Coord(lon), Altitude: Coord(alt)}
}

func waypointAt(lat, lon, alt float64) Waypoint {
	return Waypoint{XLat: Coord(lat), YLong: Coord(lon), ZAlt: Coord(alt)}
}

func TestFixAdapter(t *testing.T) {
	a := FixAdapter{Clock: fixedClock}

	events, err := a.Adapt(fixAt(45, -93, 250))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, canonical.ChannelFix, ev.Channel())
	assert.Equal(t, canonical.FromWall(fixedNow), ev.Time(), "missing stamp falls back to wall clock")
	assert.Equal(t, 45.0, floatField(t, ev, "latitude"))
	assert.Equal(t, -93.0, floatField(t, ev, "longitude"))
	assert.Equal(t, 250.0, floatField(t, ev, "altitude"))
	_, ok := ev.Field("status")
	assert.False(t, ok)
}

func TestFixAdapter_HeaderStampAndStatus(t *testing.T) {
	a := FixAdapter{Clock: fixedClock}
	msg := fixAt(1, 2, 0)
	msg.Header = Header{Stamp: Stamp{Secs: 100, Nsecs: 500_000}}
	msg.Status = &NavSatStatus{Status: 2}

	events, err := a.Adapt(msg)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, canonical.Time(100_000_500), events[0].Time())

	v, ok := events[0].Field("status")
	require.True(t, ok)
	status, _ := v.Int()
	assert.Equal(t, int64(2), status)
}

func TestFixAdapter_Malformed(t *testing.T) {
	cases := map[string]NavSatFix{
		"nan latitude":       fixAt(math.NaN(), 0, 0),
		"infinite longitude": fixAt(0, math.Inf(1), 0),
		"nan altitude":       fixAt(0, 0, math.NaN()),
		"latitude range":     fixAt(91, 0, 0),
		"longitude range":    fixAt(0, -180.5, 0),
		"empty":              {},
		"missing altitude":   {Latitude: Coord(1), Longitude: Coord(2)},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			events, err := FixAdapter{}.Adapt(msg)
			require.Error(t, err)
			assert.Empty(t, events)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrMalformedPayload)
		})
	}
}

func TestOrientationAdapter_Normalizes(t *testing.T) {
	events, err := OrientationAdapter{Clock: fixedClock}.Adapt(Imu{
		Orientation: Quaternion{X: 0, Y: 0, Z: 0, W: 1.05},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, canonical.ChannelOrientation, ev.Channel())
	assert.InDelta(t, 1.0, floatField(t, ev, "qw"), 1e-12)
	assert.Equal(t, 0.0, floatField(t, ev, "qx"))
}

func TestOrientationAdapter_Malformed(t *testing.T) {
	cases := map[string]Quaternion{
		"zero norm":  {},
		"nan":        {X: math.NaN(), W: 1},
		"not unit":   {W: 2},
		"far below":  {W: 0.5},
		"infinite w": {W: math.Inf(-1)},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			events, err := OrientationAdapter{}.Adapt(Imu{Orientation: q})
			require.Error(t, err)
			assert.Empty(t, events)
			assert.ErrorIs(t, err, errors.ErrMalformedPayload)
		})
	}
}

func TestMissionAdapter_ThreeWaypoints(t *testing.T) {
	msg := WaypointList{Waypoints: []Waypoint{
		waypointAt(10, 20, 30),
		waypointAt(11, 21, 31),
		waypointAt(12, 22, 32),
	}}
	msg.Waypoints[0].Command, msg.Waypoints[0].IsCurrent = 16, true
	msg.Waypoints[1].Command = 16
	msg.Waypoints[2].Command = 21

	events, err := MissionAdapter{Clock: fixedClock}.Adapt(msg)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, ev := range events {
		assert.Equal(t, canonical.ChannelMission, ev.Channel())
		v, ok := ev.Field("index")
		require.True(t, ok)
		idx, _ := v.Int()
		assert.Equal(t, int64(i), idx, "events must keep input order")
		assert.Equal(t, float64(10+i), floatField(t, ev, "latitude"))
	}

	current, _ := events[0].Field("is_current")
	b, _ := current.Bool()
	assert.True(t, b)
}

func TestMissionAdapter_EmptyAndMalformed(t *testing.T) {
	events, err := MissionAdapter{}.Adapt(WaypointList{})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = MissionAdapter{}.Adapt(WaypointList{Waypoints: []Waypoint{
		waypointAt(10, 20, 0),
		waypointAt(math.NaN(), 20, 0),
	}})
	require.Error(t, err)
	assert.Empty(t, events, "one bad waypoint rejects the list")
	assert.Contains(t, err.Error(), "waypoint 1")

	events, err = MissionAdapter{}.Adapt(WaypointList{Waypoints: []Waypoint{waypointAt(1, 2, 3), {}}})
	require.Error(t, err)
	assert.Empty(t, events)
	assert.ErrorIs(t, err, errors.ErrMalformedPayload)
	assert.Contains(t, err.Error(), "waypoint 1: missing coordinate")
}

func TestMissionAdapter_IndexProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("n waypoints yield n events indexed 0..n-1", prop.ForAll(
		func(lats []float64) bool {
			msg := WaypointList{}
			for _, lat := range lats {
				msg.Waypoints = append(msg.Waypoints, waypointAt(lat, lat, 0))
			}
			events, err := MissionAdapter{Clock: fixedClock}.Adapt(msg)
			if err != nil || len(events) != len(lats) {
				return false
			}
			for i, ev := range events {
				v, _ := ev.Field("index")
				idx, _ := v.Int()
				got, _ := ev.Field("latitude")
				lat, _ := got.Float()
				if idx != int64(i) || lat != lats[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-90, 90)),
	))

	properties.TestingRun(t)
}
