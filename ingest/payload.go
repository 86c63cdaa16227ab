package ingest

import (
	"time"

	"github.com/gamma-programme/rospitch/canonical"
)

// Stamp is a ROS time stamp.
type Stamp struct {
	Secs  int64 `json:"secs" cbor:"secs"`
	Nsecs int64 `json:"nsecs" cbor:"nsecs"`
}

// IsZero reports whether the stamp is unset.
func (s Stamp) IsZero() bool { return s.Secs == 0 && s.Nsecs == 0 }

// Time converts the stamp to wall-clock time.
func (s Stamp) Time() time.Time { return time.Unix(s.Secs, s.Nsecs) }

// Header is the std_msgs/Header subset the adapters read.
type Header struct {
	Seq     uint32 `json:"seq,omitempty" cbor:"seq,omitempty"`
	Stamp   Stamp  `json:"stamp" cbor:"stamp"`
	FrameID string `json:"frame_id,omitempty" cbor:"frame_id,omitempty"`
}

// NavSatStatus is sensor_msgs/NavSatStatus.
type NavSatStatus struct {
	Status  int8   `json:"status" cbor:"status"`
	Service uint16 `json:"service" cbor:"service"`
}

// NavSatFix is the sensor_msgs/NavSatFix positioning fix.
type NavSatFix struct {
	Header    Header        `json:"header" cbor:"header"`
	Status    *NavSatStatus `json:"status,omitempty" cbor:"status,omitempty"`
	// Coordinates are pointers so that absent or null values are told
	// apart from zero.
	Latitude  *float64 `json:"latitude" cbor:"latitude"`
	Longitude *float64 `json:"longitude" cbor:"longitude"`
	Altitude  *float64 `json:"altitude" cbor:"altitude"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
	Z float64 `json:"z" cbor:"z"`
	W float64 `json:"w" cbor:"w"`
}

// Imu is the sensor_msgs/Imu subset carrying orientation.
type Imu struct {
	Header      Header     `json:"header" cbor:"header"`
	Orientation Quaternion `json:"orientation" cbor:"orientation"`
}

// Waypoint is mavros/Waypoint.
type Waypoint struct {
	Frame        uint8   `json:"frame" cbor:"frame"`
	Command      uint16  `json:"command" cbor:"command"`
	IsCurrent    bool    `json:"is_current" cbor:"is_current"`
	Autocontinue bool    `json:"autocontinue" cbor:"autocontinue"`
	XLat         *float64 `json:"x_lat" cbor:"x_lat"`
	YLong        *float64 `json:"y_long" cbor:"y_long"`
	ZAlt         *float64 `json:"z_alt" cbor:"z_alt"`
}

// Coord returns a pointer to v, for building payloads in code.
func Coord(v float64) *float64 { return &v }

// WaypointList is mavros/WaypointList.
type WaypointList struct {
	Waypoints []Waypoint `json:"waypoints" cbor:"waypoints"`
}

// Clock supplies wall-clock time for payloads without a header stamp.
type Clock func() time.Time

func (c Clock) stamp(h Header) canonical.Time {
	if !h.Stamp.IsZero() {
		return canonical.FromWall(h.Stamp.Time())
	}
	if c == nil {
		return canonical.FromWall(time.Now())
	}
	return canonical.FromWall(c())
}
