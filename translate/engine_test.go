package translate

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/binding"
	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/hla"
	"github.com/gamma-programme/rospitch/metric"
)

func platformTable(t *testing.T) *binding.Table {
	t.Helper()
	table, err := binding.NewTable([]binding.Binding{
		{
			Channel: canonical.ChannelFix,
			Kind:    binding.KindObject,
			Class:   "Platform",
			Fields: []binding.FieldMapping{
				{Source: "latitude", Target: "Latitude", Encoding: hla.Float64BE},
				{Source: "longitude", Target: "Longitude", Encoding: hla.Float64BE},
			},
		},
		{
			Channel: canonical.ChannelMission,
			Kind:    binding.KindInteraction,
			Class:   "Waypoint",
			Fields: []binding.FieldMapping{
				{Source: "index", Target: "Index", Encoding: hla.Integer32BE},
				{Source: "is_current", Target: "IsCurrent", Encoding: hla.Boolean},
			},
		},
	})
	require.NoError(t, err)
	return table
}

func fixEvent(t *testing.T, lat, lon float64) canonical.Event {
	t.Helper()
	ev, err := canonical.NewEvent(canonical.ChannelFix, 42,
		canonical.F("latitude", canonical.FloatValue(lat)),
		canonical.F("longitude", canonical.FloatValue(lon)),
		canonical.F("altitude", canonical.FloatValue(250)),
	)
	require.NoError(t, err)
	return ev
}

func TestTranslate_FixScenario(t *testing.T) {
	engine, err := NewEngine(platformTable(t))
	require.NoError(t, err)

	u, err := engine.Translate(fixEvent(t, 45.0, -93.0))
	require.NoError(t, err)
	require.NotNil(t, u)

	assert.Equal(t, binding.KindObject, u.Kind)
	assert.Equal(t, "Platform", u.Class)
	assert.Equal(t, canonical.ChannelFix, u.Instance)
	assert.Equal(t, canonical.Time(42), u.Time)
	require.Len(t, u.Values, 2, "unmapped altitude is not sent")

	lat, ok := u.Value("Latitude")
	require.True(t, ok)
	assert.True(t, lat.Equal(canonical.FloatValue(45.0)))

	lon, ok := u.Value("Longitude")
	require.True(t, ok)
	assert.True(t, lon.Equal(canonical.FloatValue(-93.0)))

	decoded, err := hla.Decode(hla.Float64BE, u.Encoded()["Latitude"])
	require.NoError(t, err)
	assert.True(t, decoded.Equal(canonical.FloatValue(45.0)))
}

func TestTranslate_Interaction(t *testing.T) {
	engine, err := NewEngine(platformTable(t))
	require.NoError(t, err)

	ev, err := canonical.NewEvent(canonical.ChannelMission, 7,
		canonical.F("index", canonical.IntValue(2)),
		canonical.F("is_current", canonical.BoolValue(true)),
	)
	require.NoError(t, err)

	u, err := engine.Translate(ev)
	require.NoError(t, err)
	assert.Equal(t, binding.KindInteraction, u.Kind)
	assert.Equal(t, "Waypoint", u.Class)
	assert.Empty(t, u.Instance)
	assert.Equal(t, []byte{0, 0, 0, 2}, u.Encoded()["Index"])
}

func TestTranslate_UnboundChannel(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	engine, err := NewEngine(platformTable(t), WithMetrics(registry))
	require.NoError(t, err)

	ev, err := canonical.NewEvent(canonical.ChannelOrientation, 1, canonical.F("qw", canonical.FloatValue(1)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		u, err := engine.Translate(ev)
		assert.NoError(t, err)
		assert.Nil(t, u)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(engine.metrics.unbound.WithLabelValues(canonical.ChannelOrientation)))
}

func TestTranslate_Mismatches(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	engine, err := NewEngine(platformTable(t), WithMetrics(registry))
	require.NoError(t, err)

	missing, err := canonical.NewEvent(canonical.ChannelFix, 1, canonical.F("latitude", canonical.FloatValue(1)))
	require.NoError(t, err)

	mistyped, err := canonical.NewEvent(canonical.ChannelFix, 1,
		canonical.F("latitude", canonical.StringValue("north")),
		canonical.F("longitude", canonical.FloatValue(1)),
	)
	require.NoError(t, err)

	overflow, err := canonical.NewEvent(canonical.ChannelMission, 1,
		canonical.F("index", canonical.IntValue(math.MaxInt64)),
		canonical.F("is_current", canonical.BoolValue(false)),
	)
	require.NoError(t, err)

	tests := []struct {
		name  string
		event canonical.Event
		field string
		cause error
	}{
		{"missing field", missing, "longitude", errors.ErrFieldMissing},
		{"type mismatch", mistyped, "latitude", errors.ErrTypeMismatch},
		{"range overflow", overflow, "index", errors.ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := engine.Translate(tt.event)
			require.Error(t, err)
			assert.Nil(t, u)

			var terr *Error
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.field, terr.Field)
			assert.ErrorIs(t, err, tt.cause)
			assert.True(t, errors.IsInvalid(err))
			assert.Equal(t, errors.ErrorInvalid, errors.Classify(err))
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(engine.metrics.failures.WithLabelValues(canonical.ChannelFix)))

	// Processing continues after failures.
	u, err := engine.Translate(fixEvent(t, 1, 2))
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestNewEngine_NilTable(t *testing.T) {
	_, err := NewEngine(nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestTranslate_RoundTripProperty(t *testing.T) {
	engine, err := NewEngine(platformTable(t))
	require.NoError(t, err)

	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("bound fix fields arrive unchanged", prop.ForAll(
		func(lat, lon float64) bool {
			ev, err := canonical.NewEvent(canonical.ChannelFix, 0,
				canonical.F("latitude", canonical.FloatValue(lat)),
				canonical.F("longitude", canonical.FloatValue(lon)),
			)
			if err != nil {
				return false
			}
			u, err := engine.Translate(ev)
			if err != nil || u == nil {
				return false
			}
			for _, av := range u.Values {
				src, _ := ev.Field(av.Source)
				decoded, err := hla.Decode(av.Encoding, av.Encoded)
				if err != nil || !decoded.Equal(src) || !av.Value.Equal(src) {
					return false
				}
			}
			return len(u.Values) == 2
		},
		gen.Float64Range(-90, 90),
		gen.Float64Range(-180, 180),
	))

	properties.Property("unbound channels never produce updates", prop.ForAll(
		func(channel string) bool {
			if channel == "" || channel == canonical.ChannelFix || channel == canonical.ChannelMission {
				return true
			}
			ev, err := canonical.NewEvent(channel, 0, canonical.F("x", canonical.IntValue(1)))
			if err != nil {
				return false
			}
			u, err := engine.Translate(ev)
			return u == nil && err == nil
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
