package queue

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/benz9527/xconc/lib/tagptr"
)

// Unbounded concurrent FIFO queues.
//
// Enqueueing is a two-phase publication: (1) atomically exchange 'last'
// with the new element, (2) link prev.next to the new element. Between
// the two steps the new element is invisible to readers; a reader that
// observes a nil next on a non-last element reports empty instead of
// spinning.
//
// 'Fast' variants never hand out the most recently enqueued element, so
// after the first enqueue the queue permanently holds at least one
// element. In exchange they avoid the filler machinery of the non-fast
// variants.

// enqueueSide is the writer half shared by all unbounded variants. The
// exchange is always atomic: even in single-writer queues the reader of
// a non-fast variant enqueues the filler concurrently.
type enqueueSide struct {
	last unsafe.Pointer // *Queueable, never nil
	_    cpu.CacheLinePad
}

func (s *enqueueSide) enqueueRaw(rec *Queueable) {
	prev := (*Queueable)(atomic.SwapPointer(&s.last, unsafe.Pointer(rec)))
	// Publication point. Readers waiting at prev see rec from here on.
	prev.storeNext(rec)
}

func (s *enqueueSide) loadLast() *Queueable {
	return (*Queueable)(atomic.LoadPointer(&s.last))
}

// fastLinkedQueue is the single-consumer fast variant
// (concurrency none/single-reader-and-writer/multiple-writers).
type fastLinkedQueue[E Linkable] struct {
	enqueueSide
	initial Queueable // stand-in last while the queue is empty
	first   *Queueable
	release func(E)
}

func newFastLinkedQueue[E Linkable](release func(E)) *fastLinkedQueue[E] {
	q := &fastLinkedQueue[E]{release: release}
	q.initial.next = unsafe.Pointer(terminator)
	q.last = unsafe.Pointer(&q.initial)
	return q
}

func (q *fastLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	q.enqueueRaw(rec)
}

func (q *fastLinkedQueue[E]) Dequeue() (E, bool) {
	var zero E
	rec := q.first
	if rec == nil {
		rec = q.initial.loadNext()
	}
	if rec == nil || rec == terminator {
		return zero, false
	}
	nextnext := rec.loadNext()
	if nextnext == nil || nextnext == terminator {
		// rec is the last element - the floor keeps it in place.
		return zero, false
	}
	q.first = nextnext
	rec.storeNext(nil)
	return takeSelf[E](rec), true
}

func (q *fastLinkedQueue[E]) MinimumElementsInQueue() int { return 1 }

func (q *fastLinkedQueue[E]) Close() {
	drainAndRelease[E](q, q.release)
	releaseLastElement(q.loadLast(), &q.initial, q.release)
}

// fastMCLinkedQueue is the concurrent-consumer fast variant
// (concurrency multiple-readers/full). The head is a tagged pointer
// whose stamp counts dequeues, defeating ABA when a dequeued element is
// re-enqueued at the same address before a reader's CAS lands.
type fastMCLinkedQueue[E Linkable] struct {
	enqueueSide
	initial Queueable
	first   atomic.Uint64 // tagptr.Tagged16, pointer initially nil
	_       cpu.CacheLinePad
	release func(E)
}

func newFastMCLinkedQueue[E Linkable](release func(E)) *fastMCLinkedQueue[E] {
	q := &fastMCLinkedQueue[E]{release: release}
	q.initial.next = unsafe.Pointer(terminator)
	q.last = unsafe.Pointer(&q.initial)
	return q
}

func (q *fastMCLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	q.enqueueRaw(rec)
}

func (q *fastMCLinkedQueue[E]) Dequeue() (E, bool) {
	var zero E
	for {
		raw := q.first.Load()
		fp := tagptr.Tagged16(raw)
		rec := (*Queueable)(fp.Pointer())
		if rec == nil {
			rec = q.initial.loadNext()
		}
		if rec == nil || rec == terminator {
			return zero, false
		}
		nextnext := rec.loadNext()
		if nextnext == nil || nextnext == terminator {
			return zero, false
		}
		next := tagptr.Pack16(unsafe.Pointer(nextnext), tagptr.NextStamp16(fp.Stamp()))
		if q.first.CompareAndSwap(raw, uint64(next)) {
			rec.storeNext(nil)
			return takeSelf[E](rec), true
		}
	}
}

func (q *fastMCLinkedQueue[E]) MinimumElementsInQueue() int { return 1 }

func (q *fastMCLinkedQueue[E]) Close() {
	drainAndRelease[E](q, q.release)
	releaseLastElement(q.loadLast(), &q.initial, q.release)
}

// fillerLinkedQueue is the single-consumer non-fast variant. A dummy
// filler element is enqueued by the reader when only one element
// remains, so the genuine last element becomes linkable and thereby
// dequeueable.
type fillerLinkedQueue[E Linkable] struct {
	enqueueSide
	filler         Queueable
	fillerEnqueued bool // touched by the consumer only
	first          *Queueable
	release        func(E)
}

func newFillerLinkedQueue[E Linkable](release func(E)) *fillerLinkedQueue[E] {
	q := &fillerLinkedQueue[E]{fillerEnqueued: true, release: release}
	q.last = unsafe.Pointer(&q.filler)
	q.first = &q.filler
	return q
}

func (q *fillerLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	q.enqueueRaw(rec)
}

func (q *fillerLinkedQueue[E]) Dequeue() (E, bool) {
	var zero E
	rec := q.first
	for {
		next := rec.loadNext()
		if next == nil {
			if rec != &q.filler && !q.fillerEnqueued {
				q.enqueueRaw(&q.filler)
				q.fillerEnqueued = true
				// Now the element at rec may have become linkable.
				next = rec.loadNext()
			}
			if next == nil {
				return zero, false
			}
		}
		q.first = next
		rec.storeNext(nil)
		if rec == &q.filler {
			q.fillerEnqueued = false
			rec = next
			continue
		}
		return takeSelf[E](rec), true
	}
}

func (q *fillerLinkedQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *fillerLinkedQueue[E]) Close() {
	drainAndRelease[E](q, q.release)
}

// fillerMCLinkedQueue is the concurrent-consumer non-fast variant. The
// head is a 19-bit-stamped tagged pointer; the filler flag becomes an
// atomic test-and-set shared by all readers.
type fillerMCLinkedQueue[E Linkable] struct {
	enqueueSide
	filler         Queueable
	fillerEnqueued atomic.Bool
	first          atomic.Uint64 // tagptr.Tagged19
	_              cpu.CacheLinePad
	release        func(E)
}

func newFillerMCLinkedQueue[E Linkable](release func(E)) *fillerMCLinkedQueue[E] {
	q := &fillerMCLinkedQueue[E]{release: release}
	q.fillerEnqueued.Store(true)
	q.last = unsafe.Pointer(&q.filler)
	q.first.Store(uint64(tagptr.Pack19(unsafe.Pointer(&q.filler), 0)))
	return q
}

func (q *fillerMCLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	q.enqueueRaw(rec)
}

func (q *fillerMCLinkedQueue[E]) Dequeue() (E, bool) {
	var zero E
	for {
		raw := q.first.Load()
		fp := tagptr.Tagged19(raw)
		rec := (*Queueable)(fp.Pointer())
		nextnext := rec.loadNext()
		if nextnext == nil {
			if rec != &q.filler && !q.fillerEnqueued.Swap(true) {
				q.enqueueRaw(&q.filler)
				nextnext = rec.loadNext()
			}
			if nextnext == nil {
				return zero, false
			}
		}
		next := tagptr.Pack19(unsafe.Pointer(nextnext), tagptr.NextStamp19(fp.Stamp()))
		if rec == &q.filler {
			if q.first.CompareAndSwap(raw, uint64(next)) {
				rec.storeNext(nil)
				q.fillerEnqueued.Store(false)
			}
			continue
		}
		if q.first.CompareAndSwap(raw, uint64(next)) {
			rec.storeNext(nil)
			return takeSelf[E](rec), true
		}
	}
}

func (q *fillerMCLinkedQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *fillerMCLinkedQueue[E]) Close() {
	drainAndRelease[E](q, q.release)
}

// drainAndRelease empties the queue through Dequeue and hands every
// element to the release policy.
func drainAndRelease[E any](q interface{ Dequeue() (E, bool) }, release func(E)) {
	for {
		e, ok := q.Dequeue()
		if !ok {
			return
		}
		if release != nil {
			release(e)
		}
	}
}

// releaseLastElement hands the element stuck under the one-element
// floor of a fast queue back to the release policy, unless the queue
// never left its initial state.
func releaseLastElement[E Linkable](last, initial *Queueable, release func(E)) {
	if last == nil || last == initial {
		return
	}
	e := takeSelf[E](last)
	last.storeNext(nil)
	if release != nil {
		release(e)
	}
}
