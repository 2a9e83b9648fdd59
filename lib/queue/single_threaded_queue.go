package queue

import (
	"math"

	"go.uber.org/zap"

	"github.com/benz9527/xconc/xlog"
)

// SingleThreadedQueue is the trivial FIFO for elements carrying the
// single-threaded link. Exactly one goroutine may use it; in exchange
// every operation is a couple of plain pointer moves.
type SingleThreadedQueue[E STLinkable] struct {
	sentinel QueueableSingleThreaded
	last     *QueueableSingleThreaded // never nil
	release  func(E)
}

func NewSingleThreadedQueue[E STLinkable](release func(E)) *SingleThreadedQueue[E] {
	q := &SingleThreadedQueue[E]{release: release}
	q.sentinel.nextST = &q.sentinel
	q.last = &q.sentinel
	return q
}

func (q *SingleThreadedQueue[E]) Enqueue(e E) {
	rec := e.stQueueableRecord()
	rec.selfST = e
	q.last.nextST = rec
	q.last = rec
}

func (q *SingleThreadedQueue[E]) Dequeue() (E, bool) {
	var zero E
	rec := q.sentinel.nextST
	if rec == &q.sentinel {
		return zero, false
	}
	nextnext := rec.nextST
	if nextnext == nil { // now empty
		q.last = &q.sentinel
		nextnext = &q.sentinel
	}
	q.sentinel.nextST = nextnext
	rec.nextST = nil
	e := rec.selfST.(E)
	rec.selfST = nil
	return e, true
}

// DequeueAll hands the whole chain to a FIFO-polarity fragment and
// leaves the queue empty.
func (q *SingleThreadedQueue[E]) DequeueAll() *Fragment[E] {
	frag := &Fragment[E]{release: q.release}
	if q.sentinel.nextST != &q.sentinel {
		frag.initSingleThreaded(q.sentinel.nextST, true)
	}
	q.sentinel.nextST = &q.sentinel
	q.last = &q.sentinel
	return frag
}

func (q *SingleThreadedQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *SingleThreadedQueue[E]) Close() {
	for {
		e, ok := q.Dequeue()
		if !ok {
			break
		}
		if q.release != nil {
			q.release(e)
		}
	}
}

// singleThreadedLinkedQueue serves elements that only carry the
// concurrent link record (flavour "most") in a non-concurrent context.
// Links are accessed with the atomic helpers for uniformity; there is
// no contention to pay for.
type singleThreadedLinkedQueue[E Linkable] struct {
	next    *Queueable
	last    *Queueable
	release func(E)
}

func newSingleThreadedLinkedQueue[E Linkable](release func(E)) *singleThreadedLinkedQueue[E] {
	return &singleThreadedLinkedQueue[E]{release: release}
}

func (q *singleThreadedLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	if q.last != nil {
		q.last.storeNext(rec)
	} else {
		q.next = rec
	}
	q.last = rec
}

func (q *singleThreadedLinkedQueue[E]) Dequeue() (E, bool) {
	var zero E
	rec := q.next
	if rec == nil {
		return zero, false
	}
	next := rec.loadNext()
	if next == nil { // now empty
		q.last = nil
	}
	q.next = next
	rec.storeNext(nil)
	return takeSelf[E](rec), true
}

func (q *singleThreadedLinkedQueue[E]) DequeueAll() *Fragment[E] {
	frag := &Fragment[E]{release: q.release}
	frag.initFIFO(q.next)
	q.next = nil
	q.last = nil
	return frag
}

func (q *singleThreadedLinkedQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *singleThreadedLinkedQueue[E]) Close() {
	for {
		e, ok := q.Dequeue()
		if !ok {
			break
		}
		if q.release != nil {
			q.release(e)
		}
	}
}

// stInner is what the bounded wrapper needs from either single-threaded
// implementation.
type stInner[E any] interface {
	Enqueue(E)
	Dequeue() (E, bool)
	DequeueAll() *Fragment[E]
	Close()
}

// BoundedSingleThreadedQueue wraps a single-threaded queue with an
// element counter. An enqueue that exceeds the maximum drops the head.
type BoundedSingleThreadedQueue[E any] struct {
	inner     stInner[E]
	count     int
	maxLength int
	release   func(E)
}

func NewBoundedSingleThreadedQueue[E STLinkable](release func(E)) *BoundedSingleThreadedQueue[E] {
	return &BoundedSingleThreadedQueue[E]{
		inner:     NewSingleThreadedQueue[E](release),
		maxLength: math.MaxInt,
		release:   release,
	}
}

func newBoundedSingleThreadedLinkedQueue[E Linkable](release func(E)) *BoundedSingleThreadedQueue[E] {
	return &BoundedSingleThreadedQueue[E]{
		inner:     newSingleThreadedLinkedQueue[E](release),
		maxLength: maxLengthCeiling,
		release:   release,
	}
}

func (q *BoundedSingleThreadedQueue[E]) Enqueue(e E) {
	q.inner.Enqueue(e)
	q.count++
	if q.count > q.maxLength {
		q.dropHead()
	}
}

func (q *BoundedSingleThreadedQueue[E]) dropHead() {
	e, ok := q.inner.Dequeue()
	if !ok {
		return
	}
	q.count--
	if q.release != nil {
		q.release(e)
	}
}

func (q *BoundedSingleThreadedQueue[E]) Dequeue() (E, bool) {
	e, ok := q.inner.Dequeue()
	if ok {
		q.count--
	}
	return e, ok
}

func (q *BoundedSingleThreadedQueue[E]) DequeueAll() *Fragment[E] {
	q.count = 0
	return q.inner.DequeueAll()
}

func (q *BoundedSingleThreadedQueue[E]) SetMaxLength(n int) {
	if n <= 0 || n > maxLengthCeiling {
		xlog.Error(nil, "[x-st-bounded-queue] invalid max length, ignored",
			zap.Int("maxLength", n))
		return
	}
	q.maxLength = n
	for q.count > q.maxLength {
		q.dropHead()
	}
}

func (q *BoundedSingleThreadedQueue[E]) MaxLength() int { return q.maxLength }

func (q *BoundedSingleThreadedQueue[E]) Size() int { return q.count }

func (q *BoundedSingleThreadedQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *BoundedSingleThreadedQueue[E]) Close() {
	q.count = 0
	q.inner.Close()
}
