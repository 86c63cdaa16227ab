package buffer

// Buffer represents a generic bounded FIFO buffer.
type Buffer[T any] interface {
	// Write adds an item to the buffer. When the buffer is full the overflow
	// policy decides which item is dropped.
	Write(item T) error

	// Read retrieves and removes the oldest item.
	// Returns the zero value and false if the buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items in FIFO order.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (T, bool)

	Size() int
	Capacity() int
	IsFull() bool
	IsEmpty() bool

	// Clear removes all items, invoking the drop callback for each.
	Clear()

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	// Close rejects further writes. Queued items stay readable.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called when an item is dropped due to overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the specified capacity and options.
// Returns an error if metrics registration fails when metrics are requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
