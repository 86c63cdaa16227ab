package buffer

import (
	"sync"

	"github.com/gamma-programme/rospitch/errors"
)

// circularBuffer is a thread-safe ring with configurable overflow policy.
type circularBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	metrics  *bufferMetrics
	opts     *bufferOptions[T]
	closed   bool
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newCircularBuffer", "metrics registration")
		}
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Write adds an item according to the overflow policy.
func (cb *circularBuffer[T]) Write(item T) error {
	var dropped T
	hasDropped := false

	cb.mu.Lock()
	if cb.closed {
		cb.mu.Unlock()
		return errors.WrapInvalid(errors.ErrShuttingDown, "Buffer", "Write", "buffer closed")
	}

	if cb.size == cb.capacity {
		cb.stats.Drop()
		if cb.metrics != nil {
			cb.metrics.recordDrop()
		}

		if cb.opts.overflowPolicy == DropNewest {
			cb.mu.Unlock()
			cb.notifyDrop(item)
			return nil
		}

		dropped = cb.items[cb.tail]
		hasDropped = true
		cb.tail = (cb.tail + 1) % cb.capacity
		cb.size--
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++

	cb.stats.Write()
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.recordWrite(cb.size, cb.capacity)
	}
	cb.mu.Unlock()

	// callback runs outside the lock so it may touch the buffer
	if hasDropped {
		cb.notifyDrop(dropped)
	}
	return nil
}

func (cb *circularBuffer[T]) notifyDrop(item T) {
	if cb.opts.dropCallback != nil {
		cb.opts.dropCallback(item)
	}
}

// Read retrieves and removes one item from the buffer.
func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var zero T
	if cb.size == 0 {
		return zero, false
	}

	item := cb.pop()
	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.updateSize(cb.size, cb.capacity)
	}
	return item, true
}

// ReadBatch retrieves and removes up to max items from the buffer.
func (cb *circularBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		return nil
	}

	n := min(max, cb.size)
	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = cb.pop()
	}

	cb.stats.UpdateSize(int64(cb.size))
	if cb.metrics != nil {
		cb.metrics.updateSize(cb.size, cb.capacity)
	}
	return result
}

// pop removes the tail item. Caller holds the lock and checked size.
func (cb *circularBuffer[T]) pop() T {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero // Clear for GC
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--
	cb.stats.Read()
	return item
}

// Peek retrieves one item without removing it from the buffer.
func (cb *circularBuffer[T]) Peek() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var zero T
	if cb.size == 0 {
		return zero, false
	}
	return cb.items[cb.tail], true
}

// Size returns the current number of items in the buffer.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity
}

// IsFull returns true if the buffer is at maximum capacity.
func (cb *circularBuffer[T]) IsFull() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.size == cb.capacity
}

// IsEmpty returns true if the buffer contains no items.
func (cb *circularBuffer[T]) IsEmpty() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.size == 0
}

// Clear removes all items from the buffer.
func (cb *circularBuffer[T]) Clear() {
	cb.mu.Lock()
	dropped := make([]T, 0, cb.size)
	for cb.size > 0 {
		dropped = append(dropped, cb.pop())
	}
	cb.head, cb.tail = 0, 0
	cb.stats.UpdateSize(0)
	if cb.metrics != nil {
		cb.metrics.updateSize(0, cb.capacity)
	}
	cb.mu.Unlock()

	for _, item := range dropped {
		cb.notifyDrop(item)
	}
}

// Stats returns buffer statistics.
func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}

// Close rejects further writes.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.closed = true
	return nil
}
