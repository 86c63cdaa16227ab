// Package retry provides exponential backoff with jitter for reconnect loops
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Unlimited is the MaxAttempts value that never exhausts.
const Unlimited = 0

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Policy describes an exponential, capped backoff schedule.
type Policy struct {
	MaxAttempts  int           `json:"max_attempts"`  // Total attempts; Unlimited (0) retries forever
	InitialDelay time.Duration `json:"initial_delay"` // Delay after the first failure
	MaxDelay     time.Duration `json:"max_delay"`     // Cap applied before jitter
	Multiplier   float64       `json:"multiplier"`    // Growth factor per attempt (typically 2.0)
	Jitter       float64       `json:"jitter"`        // Symmetric fraction, 0.2 means ±20%
}

// DefaultPolicy returns the federation reconnect defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Validate reports configuration values that cannot produce a schedule.
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return errors.New("retry: MaxAttempts cannot be negative")
	}
	if p.InitialDelay < 0 {
		return errors.New("retry: InitialDelay cannot be negative")
	}
	if p.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	if p.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return errors.New("retry: Jitter must be in [0, 1)")
	}
	return nil
}

// Exhausted reports whether failedAttempts consumed the attempt budget.
func (p Policy) Exhausted(failedAttempts int) bool {
	if p.MaxAttempts == Unlimited {
		return false
	}
	return failedAttempts >= p.MaxAttempts
}

// BaseDelay is the un-jittered delay after the given failed attempt (1-based).
func (p Policy) BaseDelay(failedAttempts int) time.Duration {
	p = p.withDefaults()
	if failedAttempts <= 1 {
		return p.InitialDelay
	}

	// Overflow protection: stop multiplying once the cap is reached
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(failedAttempts-1))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Delay is BaseDelay with symmetric jitter applied.
func (p Policy) Delay(failedAttempts int) time.Duration {
	base := p.BaseDelay(failedAttempts)
	if p.Jitter <= 0 || base <= 0 {
		return base
	}

	randMu.Lock()
	r := randSource.Float64()
	randMu.Unlock()

	factor := 1 + p.Jitter*(2*r-1)
	return time.Duration(float64(base) * factor)
}

func (p Policy) withDefaults() Policy {
	if p.InitialDelay == 0 {
		p.InitialDelay = 100 * time.Millisecond
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2.0
	}
	if p.Multiplier > 1000 {
		p.Multiplier = 1000
	}
	return p
}

// Do executes fn until it succeeds, returns a NonRetryable error, the policy is
// exhausted or ctx is cancelled.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		if p.Exhausted(attempt) {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", p.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
