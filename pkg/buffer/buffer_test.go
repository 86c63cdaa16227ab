package buffer

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/metric"
)

func TestCircularBuffer_BasicOperations(t *testing.T) {
	buf, err := NewCircularBuffer[string](3)
	require.NoError(t, err)

	assert.True(t, buf.IsEmpty())
	assert.Equal(t, 3, buf.Capacity())

	require.NoError(t, buf.Write("first"))
	require.NoError(t, buf.Write("second"))
	require.NoError(t, buf.Write("third"))
	assert.True(t, buf.IsFull())

	item, ok := buf.Peek()
	require.True(t, ok)
	assert.Equal(t, "first", item)
	assert.Equal(t, 3, buf.Size())

	item, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, "first", item)

	assert.Equal(t, []string{"second", "third"}, buf.ReadBatch(10))

	_, ok = buf.Read()
	assert.False(t, ok)
	assert.Nil(t, buf.ReadBatch(1))
}

func TestCircularBuffer_DropOldest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](3,
		WithDropCallback(func(item int) { dropped = append(dropped, item) }))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, buf.Write(i))
	}

	assert.Equal(t, []int{1, 2}, dropped)
	assert.Equal(t, []int{3, 4, 5}, buf.ReadBatch(3))
	assert.Equal(t, int64(2), buf.Stats().Drops())
	assert.Equal(t, int64(5), buf.Stats().Writes())
}

func TestCircularBuffer_DropNewest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](2,
		WithOverflowPolicy[int](DropNewest),
		WithDropCallback(func(item int) { dropped = append(dropped, item) }))
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		require.NoError(t, buf.Write(i))
	}

	assert.Equal(t, []int{3, 4}, dropped)
	assert.Equal(t, []int{1, 2}, buf.ReadBatch(2))
}

func TestCircularBuffer_CloseKeepsQueuedItems(t *testing.T) {
	buf, err := NewCircularBuffer[int](4)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Close())

	err = buf.Write(2)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrShuttingDown)

	item, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, 1, item)
}

func TestCircularBuffer_ClearInvokesDropCallback(t *testing.T) {
	count := 0
	buf, err := NewCircularBuffer[int](4, WithDropCallback(func(int) { count++ }))
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	buf.Clear()

	assert.Equal(t, 2, count)
	assert.True(t, buf.IsEmpty())

	// Ring indexes are reset and still usable.
	require.NoError(t, buf.Write(3))
	item, _ := buf.Read()
	assert.Equal(t, 3, item)
}

func TestCircularBuffer_ZeroCapacityBecomesOne(t *testing.T) {
	buf, err := NewCircularBuffer[int](0)
	require.NoError(t, err)
	assert.Equal(t, 1, buf.Capacity())
}

func TestCircularBuffer_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	raw, err := NewCircularBuffer[int](2, WithMetrics[int](registry, "dispatch"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, raw.Write(i))
	}

	cb := raw.(*circularBuffer[int])
	assert.Equal(t, 3.0, testutil.ToFloat64(cb.metrics.writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(cb.metrics.drops))
	assert.Equal(t, 2.0, testutil.ToFloat64(cb.metrics.size))

	// A second buffer with the same prefix collides in the registry.
	_, err = NewCircularBuffer[int](2, WithMetrics[int](registry, "dispatch"))
	require.Error(t, err)
}

func TestCircularBuffer_ConcurrentWriters(t *testing.T) {
	buf, err := NewCircularBuffer[int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = buf.Write(i)
			}
		}()
	}
	wg.Wait()

	stats := buf.Stats().Summary()
	assert.Equal(t, int64(800), stats.Writes)
	assert.Equal(t, int64(800-64), stats.Drops)
	assert.Equal(t, int64(64), stats.CurrentSize)
	assert.Equal(t, int64(64), stats.MaxSize)
}
