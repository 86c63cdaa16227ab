package ingest

import (
	"fmt"
	"math"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
)

// Adapter converts one source payload into canonical events.
type Adapter[P any] interface {
	Adapt(payload P) ([]canonical.Event, error)
}

// QuaternionTolerance is how far from unit length an orientation may be
// before it is rejected instead of normalized.
const QuaternionTolerance = 0.1

func malformed(channel, format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrMalformedPayload, fmt.Sprintf(format, args...)),
		"ingest", "Adapt", channel)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type position struct{ lat, lon, alt float64 }

// validPosition rejects absent, non-finite and out-of-range coordinates.
func validPosition(lat, lon, alt *float64) (position, error) {
	if lat == nil || lon == nil || alt == nil {
		return position{}, fmt.Errorf("missing coordinate (latitude %s, longitude %s, altitude %s)",
			present(lat), present(lon), present(alt))
	}
	p := position{*lat, *lon, *alt}
	return p, p.check()
}

func present(v *float64) string {
	if v == nil {
		return "absent"
	}
	return "set"
}

func (p position) check() error {
	lat, lon, alt := p.lat, p.lon, p.alt
	if !finite(lat, lon, alt) {
		return fmt.Errorf("non-finite coordinate (%v, %v, %v)", lat, lon, alt)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}

// FixAdapter extracts latitude, longitude and altitude from a NavSatFix.
type FixAdapter struct {
	Clock Clock
}

// Adapt produces one fix event.
func (a FixAdapter) Adapt(msg NavSatFix) ([]canonical.Event, error) {
	pos, err := validPosition(msg.Latitude, msg.Longitude, msg.Altitude)
	if err != nil {
		return nil, malformed(canonical.ChannelFix, "%v", err)
	}

	fields := []canonical.Field{
		canonical.F("latitude", canonical.FloatValue(pos.lat)),
		canonical.F("longitude", canonical.FloatValue(pos.lon)),
		canonical.F("altitude", canonical.FloatValue(pos.alt)),
	}
	if msg.Status != nil {
		fields = append(fields, canonical.F("status", canonical.IntValue(int64(msg.Status.Status))))
	}

	ev, err := canonical.NewEvent(canonical.ChannelFix, a.Clock.stamp(msg.Header), fields...)
	if err != nil {
		return nil, err
	}
	return []canonical.Event{ev}, nil
}

// OrientationAdapter extracts a unit quaternion from an Imu message.
type OrientationAdapter struct {
	Clock Clock
}

// Adapt produces one orientation event with a normalized quaternion.
func (a OrientationAdapter) Adapt(msg Imu) ([]canonical.Event, error) {
	q := msg.Orientation
	if !finite(q.X, q.Y, q.Z, q.W) {
		return nil, malformed(canonical.ChannelOrientation, "non-finite quaternion")
	}

	norm := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if norm == 0 {
		return nil, malformed(canonical.ChannelOrientation, "zero-norm quaternion")
	}
	if math.Abs(norm-1) > QuaternionTolerance {
		return nil, malformed(canonical.ChannelOrientation, "quaternion norm %.3f not unit", norm)
	}

	ev, err := canonical.NewEvent(canonical.ChannelOrientation, a.Clock.stamp(msg.Header),
		canonical.F("qx", canonical.FloatValue(q.X/norm)),
		canonical.F("qy", canonical.FloatValue(q.Y/norm)),
		canonical.F("qz", canonical.FloatValue(q.Z/norm)),
		canonical.F("qw", canonical.FloatValue(q.W/norm)),
	)
	if err != nil {
		return nil, err
	}
	return []canonical.Event{ev}, nil
}

// MissionAdapter expands a waypoint list into one event per waypoint.
type MissionAdapter struct {
	Clock Clock
}

// Adapt emits waypoint events in input order, tagged with index 0..n-1.
// One malformed waypoint rejects the whole list. WaypointList carries no
// header, so every event of a list shares one wall-clock timestamp.
func (a MissionAdapter) Adapt(msg WaypointList) ([]canonical.Event, error) {
	ts := a.Clock.stamp(Header{})

	events := make([]canonical.Event, 0, len(msg.Waypoints))
	for i, wp := range msg.Waypoints {
		pos, err := validPosition(wp.XLat, wp.YLong, wp.ZAlt)
		if err != nil {
			return nil, malformed(canonical.ChannelMission, "waypoint %d: %v", i, err)
		}

		ev, err := canonical.NewEvent(canonical.ChannelMission, ts,
			canonical.F("index", canonical.IntValue(int64(i))),
			canonical.F("latitude", canonical.FloatValue(pos.lat)),
			canonical.F("longitude", canonical.FloatValue(pos.lon)),
			canonical.F("altitude", canonical.FloatValue(pos.alt)),
			canonical.F("command", canonical.IntValue(int64(wp.Command))),
			canonical.F("is_current", canonical.BoolValue(wp.IsCurrent)),
		)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

var (
	_ Adapter[NavSatFix]    = FixAdapter{}
	_ Adapter[Imu]          = OrientationAdapter{}
	_ Adapter[WaypointList] = MissionAdapter{}
)
