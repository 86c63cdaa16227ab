package timecoord

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/metric"
)

func TestCoordinator_ClampsRetrogradeInput(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := New(ModeTimeStepped, 0, registry)
	require.NoError(t, err)
	c.Reset(0)

	var requested []canonical.Time
	for _, ts := range []canonical.Time{5, 3, 7} {
		d := c.Decide(ts)
		require.True(t, d.Advance)
		requested = append(requested, d.Target)
		c.Granted(d.Target)
	}

	assert.Equal(t, []canonical.Time{5, 5, 7}, requested)
	assert.Equal(t, int64(1), c.Clamped())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.clamped))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.metrics.granted))
}

func TestCoordinator_FloorIncludesGrant(t *testing.T) {
	c, err := New(ModeTimeStepped, 0, nil)
	require.NoError(t, err)
	c.Reset(100)

	d := c.Decide(40)
	assert.Equal(t, canonical.Time(100), d.Target)
	assert.True(t, d.Clamped)

	// Floor tracks the last request even before a grant arrives.
	d = c.Decide(150)
	assert.Equal(t, canonical.Time(150), d.Target)
	d = c.Decide(120)
	assert.Equal(t, canonical.Time(150), d.Target)
}

func TestCoordinator_LookaheadOnSend(t *testing.T) {
	c, err := New(ModeTimeStepped, 2*time.Millisecond, nil)
	require.NoError(t, err)
	c.Reset(0)

	d := c.Decide(10_000)
	send := c.Granted(d.Target)
	assert.Equal(t, canonical.Time(12_000), send)
	assert.Equal(t, canonical.Time(2_000), c.Lookahead())

	// A stale grant does not move time backwards.
	assert.Equal(t, canonical.Time(12_000), c.Granted(5))
	assert.Equal(t, canonical.Time(10_000), c.LastGranted())
}

func TestCoordinator_ReceiveOrder(t *testing.T) {
	c, err := New(ModeReceiveOrder, time.Second, nil)
	require.NoError(t, err)
	assert.False(t, c.TimeManaged())

	for _, ts := range []canonical.Time{5, 3, 7} {
		d := c.Decide(ts)
		assert.False(t, d.Advance)
		assert.False(t, d.Clamped)
	}
	assert.Zero(t, c.Clamped())

	_, started := c.LastRequested()
	assert.False(t, started)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("lockstep", 0, nil)
	assert.True(t, errors.IsInvalid(err))

	_, err = New(ModeTimeStepped, -time.Second, nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReceiveOrder, m)

	m, err = ParseMode("time_stepped")
	require.NoError(t, err)
	assert.Equal(t, ModeTimeStepped, m)

	_, err = ParseMode("conservative")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestCoordinator_MonotonicProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("requested advances never decrease", prop.ForAll(
		func(stamps []int64) bool {
			c, err := New(ModeTimeStepped, 0, nil)
			if err != nil {
				return false
			}
			c.Reset(0)

			var prev canonical.Time
			for i, ts := range stamps {
				d := c.Decide(canonical.Time(ts))
				if i > 0 && d.Target < prev {
					return false
				}
				if d.Target < canonical.Time(ts) {
					return false
				}
				prev = d.Target
				c.Granted(d.Target)
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 1_000_000)),
	))

	properties.TestingRun(t)
}
