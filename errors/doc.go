// Package errors provides the error classification used across the bridge.
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input for a single item, drop and continue) and Fatal (unrecoverable, stop
// the bridge). The bridge maps its failure taxonomy onto these classes:
//
//   - connection errors are Transient and drive the reconnect backoff
//   - protocol errors (version mismatch, rejected credentials) are Fatal
//   - translation and ingestion errors are Invalid and never leave the consumer
//
// Queue overflow and time-order clamping are not errors at all; they are
// counted by the components that absorb them.
//
// Wrapping follows the "component.method: action failed: %w" pattern:
//
//	if err := amb.Join(ctx, name); err != nil {
//	    return errors.WrapTransient(err, "Manager", "join", "join federation")
//	}
//
// Classification survives wrapping with fmt.Errorf("%w") and is inspected with
// IsTransient, IsFatal, IsInvalid or Classify.
package errors
