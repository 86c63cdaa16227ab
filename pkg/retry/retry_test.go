package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0, // Disable for predictable tests
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testPolicy(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testPolicy(3), func() error {
		attempts++
		return errors.New("persistent error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), testPolicy(5), func() error {
		attempts++
		return NonRetryable(errors.New("version mismatch"))
	})

	assert.True(t, IsNonRetryable(err))
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := testPolicy(Unlimited)
	p.InitialDelay = 100 * time.Millisecond
	p.MaxDelay = time.Second

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, p, func() error {
		attempts++
		return errors.New("error")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5)
}

func TestPolicy_BaseDelayGrowsAndCaps(t *testing.T) {
	p := testPolicy(Unlimited)

	assert.Equal(t, 10*time.Millisecond, p.BaseDelay(1))
	assert.Equal(t, 20*time.Millisecond, p.BaseDelay(2))
	assert.Equal(t, 40*time.Millisecond, p.BaseDelay(3))
	assert.Equal(t, 80*time.Millisecond, p.BaseDelay(4))
	assert.Equal(t, 100*time.Millisecond, p.BaseDelay(5))
	assert.Equal(t, 100*time.Millisecond, p.BaseDelay(500), "huge attempt counts must not overflow")
}

func TestPolicy_JitterStaysWithinBounds(t *testing.T) {
	p := testPolicy(Unlimited)
	p.Jitter = 0.2

	for attempt := 1; attempt <= 6; attempt++ {
		base := p.BaseDelay(attempt)
		low := time.Duration(float64(base) * 0.8)
		high := time.Duration(float64(base) * 1.2)
		for i := 0; i < 200; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, low)
			assert.LessOrEqual(t, d, high)
		}
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	bounded := testPolicy(3)
	assert.False(t, bounded.Exhausted(1))
	assert.False(t, bounded.Exhausted(2))
	assert.True(t, bounded.Exhausted(3))

	unlimited := testPolicy(Unlimited)
	assert.False(t, unlimited.Exhausted(1_000_000))
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	cases := map[string]Policy{
		"negative attempts": {MaxAttempts: -1},
		"negative delay":    {InitialDelay: -time.Second},
		"max below initial": {InitialDelay: time.Second, MaxDelay: time.Millisecond},
		"negative factor":   {Multiplier: -1},
		"jitter too large":  {Jitter: 1.5},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, p.Validate())
		})
	}
}

func TestRetry_WithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), testPolicy(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "joined", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "joined", result)
	assert.Equal(t, 2, attempts)
}
