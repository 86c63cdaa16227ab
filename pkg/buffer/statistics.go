package buffer

import (
	"sync/atomic"
)

// Statistics tracks buffer counters. All methods are safe for concurrent use.
type Statistics struct {
	writes  atomic.Int64
	reads   atomic.Int64
	drops   atomic.Int64
	size    atomic.Int64
	maxSize atomic.Int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Write records a buffer write operation.
func (s *Statistics) Write() { s.writes.Add(1) }

// Read records a buffer read operation.
func (s *Statistics) Read() { s.reads.Add(1) }

// Drop records an item drop due to overflow policy.
func (s *Statistics) Drop() { s.drops.Add(1) }

// UpdateSize updates the current buffer size and high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		current := s.maxSize.Load()
		if size <= current || s.maxSize.CompareAndSwap(current, size) {
			return
		}
	}
}

// Writes returns the total number of write operations.
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Reads returns the total number of read operations.
func (s *Statistics) Reads() int64 { return s.reads.Load() }

// Drops returns the total number of dropped items.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// CurrentSize returns the current number of items in the buffer.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// MaxSize returns the maximum number of items the buffer has held.
func (s *Statistics) MaxSize() int64 { return s.maxSize.Load() }

// DropRate returns the fraction of writes that resulted in drops (0.0 to 1.0).
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	if writes == 0 {
		return 0.0
	}
	return float64(s.Drops()) / float64(writes)
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Writes      int64   `json:"writes"`
	Reads       int64   `json:"reads"`
	Drops       int64   `json:"drops"`
	CurrentSize int64   `json:"current_size"`
	MaxSize     int64   `json:"max_size"`
	DropRate    float64 `json:"drop_rate"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:      s.Writes(),
		Reads:       s.Reads(),
		Drops:       s.Drops(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		DropRate:    s.DropRate(),
	}
}
