// Package buffer provides a thread-safe circular buffer with configurable overflow
// policy, always-on statistics and optional Prometheus metrics.
//
// # Overview
//
// The bridge uses the buffer for every bounded queue that must evict rather than
// block: the dispatch data lane and the pre-join buffer. Producers never wait;
// when the buffer is full the oldest entry is dropped and handed to the drop
// callback so the owner can count it.
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[canonical.Event](1024,
//		buffer.WithOverflowPolicy[canonical.Event](buffer.DropOldest),
//		buffer.WithDropCallback(func(ev canonical.Event) { dropped.Inc() }),
//		buffer.WithMetrics[canonical.Event](registry, "dispatch"),
//	)
//	if err != nil {
//		return err
//	}
//
//	_ = buf.Write(ev)
//	next, ok := buf.Read()
//
// # Overflow Policies
//
//   - DropOldest (default): evict the oldest item to admit the new one
//   - DropNewest: keep existing items and drop the incoming one
//
// # Closing
//
// Close rejects further writes with errors.ErrShuttingDown while already
// buffered items remain readable, which is what a graceful drain needs.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Drop callbacks are invoked
// outside the buffer lock.
package buffer
