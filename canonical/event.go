package canonical

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gamma-programme/rospitch/errors"
)

// Logical channels fed by the ingestion adapters.
const (
	ChannelFix         = "fix"
	ChannelOrientation = "orientation"
	ChannelMission     = "mission"
)

// Time is a timestamp in microseconds, matching HLAinteger64Time units.
type Time int64

// FromWall converts a wall-clock time into a canonical timestamp.
func FromWall(t time.Time) Time {
	return Time(t.UnixMicro())
}

// Wall converts the timestamp back to wall-clock time in UTC.
func (t Time) Wall() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// Field is a named typed value.
type Field struct {
	Name  string
	Value Value
}

// F is shorthand for constructing a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Event is a normalized update produced by an ingestion adapter.
// It is immutable; accessors return copies.
type Event struct {
	channel string
	time    Time
	fields  []Field
}

// NewEvent validates and constructs an event. The channel must be set, every
// field must be named and valid, and field names must be unique.
func NewEvent(channel string, ts Time, fields ...Field) (Event, error) {
	if channel == "" {
		return Event{}, errors.WrapInvalid(errors.ErrInvalidData, "canonical", "NewEvent", "empty channel")
	}

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return Event{}, errors.WrapInvalid(errors.ErrInvalidData, "canonical", "NewEvent", "unnamed field")
		}
		if !f.Value.IsValid() {
			return Event{}, errors.WrapInvalid(
				fmt.Errorf("%w: field %q has no value", errors.ErrInvalidData, f.Name),
				"canonical", "NewEvent", "validate field")
		}
		if _, dup := seen[f.Name]; dup {
			return Event{}, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate field %q", errors.ErrInvalidData, f.Name),
				"canonical", "NewEvent", "validate field")
		}
		seen[f.Name] = struct{}{}
	}

	return Event{
		channel: channel,
		time:    ts,
		fields:  append([]Field(nil), fields...),
	}, nil
}

// Channel returns the logical source channel.
func (e Event) Channel() string { return e.channel }

// Time returns the event timestamp.
func (e Event) Time() Time { return e.time }

// Len returns the number of fields.
func (e Event) Len() int { return len(e.fields) }

// IsZero reports whether e is the zero Event.
func (e Event) IsZero() bool { return e.channel == "" }

// Fields returns a copy of the ordered fields.
func (e Event) Fields() []Field {
	return append([]Field(nil), e.fields...)
}

// Field looks up a field value by name.
func (e Event) Field(name string) (Value, bool) {
	for _, f := range e.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// String formats the event for logs.
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%d{", e.channel, e.time)
	for i, f := range e.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// LogValue implements slog.LogValuer.
func (e Event) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.fields)+2)
	attrs = append(attrs, slog.String("channel", e.channel), slog.Int64("time", int64(e.time)))
	for _, f := range e.fields {
		attrs = append(attrs, slog.Any(f.Name, f.Value.Any()))
	}
	return slog.GroupValue(attrs...)
}
