package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleThreadedQueue_FIFO(t *testing.T) {
	q := NewSingleThreadedQueue[*stElement](nil)
	_, ok := q.Dequeue()
	assert.False(t, ok)

	for i := 1; i <= 10; i++ {
		q.Enqueue(newSTElement(i))
	}
	for i := 1; i <= 10; i++ {
		e, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, e.elementNo)
	}
	_, ok = q.Dequeue()
	assert.False(t, ok)

	// Round-trip after drain-to-empty.
	q.Enqueue(newSTElement(11))
	e, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 11, e.elementNo)
	assert.Equal(t, 0, q.MinimumElementsInQueue())
}

func TestSingleThreadedQueue_DequeueAll(t *testing.T) {
	q := NewSingleThreadedQueue[*stElement](nil)
	for i := 1; i <= 5; i++ {
		q.Enqueue(newSTElement(i))
	}
	frag := q.DequeueAll()
	_, ok := q.Dequeue()
	assert.False(t, ok, "queue must be empty after drain")

	for i := 1; i <= 5; i++ {
		e, ok := frag.PopFront()
		require.True(t, ok)
		assert.Equal(t, i, e.elementNo)
	}
	assert.True(t, frag.Empty())

	// Drain on an empty queue yields an empty fragment.
	frag = q.DequeueAll()
	assert.True(t, frag.Empty())
	_, ok = frag.PopAny()
	assert.False(t, ok)
}

func TestSingleThreadedLinkedQueue_MostFlavour(t *testing.T) {
	q := NewLinkedQueue[*mostElement](ConcurrencyNone, false, nil)
	for i := 1; i <= 3; i++ {
		q.Enqueue(newMostElement(i))
	}
	for i := 1; i <= 3; i++ {
		e, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, e.elementNo)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestSingleThreadedFragmentQueue(t *testing.T) {
	q := NewFragmentQueue[*mostElement](ConcurrencyNone, nil)
	for i := 1; i <= 4; i++ {
		q.Enqueue(newMostElement(i))
	}
	frag := q.DequeueAll()
	// Single-threaded drains keep FIFO polarity from the start.
	e, ok := frag.PopFront()
	require.True(t, ok)
	assert.Equal(t, 1, e.elementNo)
	e, ok = frag.PopBack()
	require.True(t, ok)
	assert.Equal(t, 4, e.elementNo)
	frag.Close()
}

func TestBoundedSingleThreadedQueue_DropsHead(t *testing.T) {
	rc := &releaseCounter[*stElement]{}
	q := NewBoundedSingleThreadedQueue[*stElement](rc.release)
	q.SetMaxLength(3)

	for i := 1; i <= 5; i++ {
		q.Enqueue(newSTElement(i))
	}
	assert.Equal(t, 3, q.Size())
	assert.Equal(t, 2, rc.count())
	assert.Equal(t, 1, rc.released[0].elementNo)
	assert.Equal(t, 2, rc.released[1].elementNo)

	e, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 3, e.elementNo)
}

func TestBoundedSingleThreadedQueue_SetMaxLength(t *testing.T) {
	rc := &releaseCounter[*stElement]{}
	q := NewBoundedSingleThreadedQueue[*stElement](rc.release)
	for i := 1; i <= 6; i++ {
		q.Enqueue(newSTElement(i))
	}
	// Shrinking drops the oldest surplus immediately.
	q.SetMaxLength(2)
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, 4, rc.count())

	// Invalid values leave the active limit untouched.
	q.SetMaxLength(-1)
	assert.Equal(t, 2, q.MaxLength())
}

func TestBoundedSingleThreadedQueue_Conservation(t *testing.T) {
	rc := &releaseCounter[*stElement]{}
	q := NewBoundedSingleThreadedQueue[*stElement](rc.release)
	q.SetMaxLength(4)

	const total = 100
	dequeued := 0
	for i := 0; i < total; i++ {
		q.Enqueue(newSTElement(i))
		if i%3 == 0 {
			if _, ok := q.Dequeue(); ok {
				dequeued++
			}
		}
	}
	dropped := rc.count()
	remaining := q.Size()
	assert.Equal(t, total, dequeued+dropped+remaining,
		"enqueued = dequeued + dropped + still queued")
	q.Close()
	assert.Equal(t, dropped+remaining, rc.count(),
		"closing releases every element still contained")
}
