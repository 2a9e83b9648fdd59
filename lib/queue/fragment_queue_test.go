package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentQueue_DrainTakesEverything(t *testing.T) {
	q := NewFragmentQueue[*mostElement](ConcurrencyMultipleWriters, nil)
	frag := q.DequeueAll()
	assert.True(t, frag.Empty(), "drain on empty queue yields empty fragment")

	for i := 1; i <= 10; i++ {
		q.Enqueue(newMostElement(i))
	}
	frag = q.DequeueAll()
	assert.True(t, q.DequeueAll().Empty(), "second drain finds nothing")
	count := 0
	for {
		if _, ok := frag.PopAny(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, 10, count)
}

func TestBoundedFragmentQueue_ChunkDiscard(t *testing.T) {
	rc := &releaseCounter[*fullElement]{}
	q := NewBoundedFragmentQueue[*fullElement](ConcurrencyFull, rc.release)
	q.SetMaxLength(5)

	// Chunks break every 5 elements; starting the third chunk discards
	// the first, and so on. After 20 enqueues the queue holds the two
	// newest chunks (11..20), the rest went through the release policy.
	for i := 1; i <= 20; i++ {
		q.Enqueue(newFullElement(i))
	}
	require.Equal(t, 10, rc.count())
	// Each discarded chunk is walked from its newest element down to
	// its first.
	expected := []int{5, 4, 3, 2, 1, 10, 9, 8, 7, 6}
	for i, e := range rc.released {
		assert.Equal(t, expected[i], e.elementNo)
	}

	frag := q.DequeueAll()
	// The fragment caps delivery at the guiding maximum: the newest 5
	// elements come out FIFO, the older full chunk is stashed.
	got := make([]int, 0, 5)
	for {
		e, ok := frag.PopFront()
		if !ok {
			break
		}
		got = append(got, e.elementNo)
	}
	assert.Equal(t, []int{16, 17, 18, 19, 20}, got)
	frag.Close()
	assert.Equal(t, 15, rc.count(), "the stashed chunk is released on close")
}

func TestBoundedFragmentQueue_SetMaxLengthValidation(t *testing.T) {
	q := NewBoundedFragmentQueue[*fullElement](ConcurrencyFull, nil)
	q.SetMaxLength(100)
	assert.Equal(t, 100, q.MaxLength())
	q.SetMaxLength(0)
	assert.Equal(t, 100, q.MaxLength())
	q.SetMaxLength(maxLengthCeiling + 1)
	assert.Equal(t, 100, q.MaxLength())
	q.Close()
}

func TestBoundedFragmentQueue_CloseReleasesAll(t *testing.T) {
	rc := &releaseCounter[*fullElement]{}
	q := NewBoundedFragmentQueue[*fullElement](ConcurrencyFull, rc.release)
	q.SetMaxLength(1000)
	for i := 1; i <= 12; i++ {
		q.Enqueue(newFullElement(i))
	}
	q.Close()
	assert.Equal(t, 12, rc.count())
}

func TestBoundedFragmentQueue_FullOptimisedFragmentTraversal(t *testing.T) {
	q := NewBoundedFragmentQueue[*fullOptElement](ConcurrencyFull, nil)
	q.SetMaxLength(50)
	for i := 1; i <= 6; i++ {
		q.Enqueue(newFullOptElement(i))
	}
	frag := q.DequeueAll()
	for i := 1; i <= 6; i++ {
		e, ok := frag.PopFront()
		require.True(t, ok)
		assert.Equal(t, i, e.elementNo)
	}
	assert.True(t, frag.Empty())
}
