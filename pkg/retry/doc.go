// Package retry provides an exponential backoff Policy with symmetric jitter.
//
// A Policy is a schedule, not a loop: callers that must not block (the
// federation connection manager) ask it for the next Delay and arm a timer,
// while simple reconnect loops (the rosbridge source) use Do.
//
//	p := retry.DefaultPolicy()       // 5 attempts, 500ms..30s, x2, ±20%
//	p.MaxAttempts = retry.Unlimited  // retry forever
//
//	if p.Exhausted(failures) {
//	    return errors.ErrMaxRetriesExceeded
//	}
//	time.AfterFunc(p.Delay(failures), reconnect)
//
// Errors wrapped with NonRetryable stop Do immediately.
package retry
