package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue[int](2)
	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}
	require.Equal(t, 10, q.Len())
	for i := 0; i < 10; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueueGrowPreservesOrder(t *testing.T) {
	q := NewQueue[string](2)
	q.Enqueue("a")
	q.Enqueue("b")
	v, _ := q.Dequeue()
	require.Equal(t, "a", v)
	// Force wrap-around before the grow.
	q.Enqueue("c")
	q.Enqueue("d")
	q.Enqueue("e")

	var got []string
	q.Drain(func(s string) { got = append(got, s) })
	assert.Equal(t, []string{"b", "c", "d", "e"}, got)
}

func TestQueueZeroValue(t *testing.T) {
	var q Queue[int]
	assert.True(t, q.IsEmpty())
	q.Enqueue(7)
	v, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}
