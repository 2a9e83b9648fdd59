package queue

import (
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/cpu"

	"github.com/benz9527/xconc/lib/tagptr"
	"github.com/benz9527/xconc/xlog"
)

const (
	// trimBatchCap limits how many over-bound elements a single enqueue
	// reclaims before yielding to concurrent progress.
	trimBatchCap = 10
	// maxLengthCeiling is the absolute limit for guiding maximums.
	maxLengthCeiling = 500000
)

// boundedLinkedQueue bounds the FIFO variants with a guiding maximum.
// Both ends are 19-bit-stamped tagged pointers: the first stamp counts
// dequeues, the last stamp counts enqueues, so the wrap-aware stamp
// distance is the current length. The bound is best-effort - transient
// overshoot of up to writers x trimBatchCap elements is possible, but
// every admitted overflow is reclaimed by the next enqueue to observe
// it.
type boundedLinkedQueue[E Linkable] struct {
	first atomic.Uint64 // tagptr.Tagged19
	_     cpu.CacheLinePad
	last  atomic.Uint64 // tagptr.Tagged19, concurrent writers
	_     cpu.CacheLinePad
	// writers counts the writers in progress and gates head trimming:
	// reclamation only runs once
	// every concurrent writer has completed its link publication, so
	// the trim never walks past a half-published element.
	writers   atomic.Int32
	plainLast tagptr.Tagged19 // single-writer variant
	maxLength atomic.Int32
	// internal is the filler element (non-fast) or the initial
	// stand-in element (fast). Owned by the queue, never released.
	internal          Queueable
	fillerEnqueued    atomic.Bool
	fast              bool
	concurrentEnqueue bool
	release           func(E)
}

func newBoundedLinkedQueue[E Linkable](fast, concurrentEnqueue bool, release func(E)) *boundedLinkedQueue[E] {
	q := &boundedLinkedQueue[E]{
		fast:              fast,
		concurrentEnqueue: concurrentEnqueue,
		release:           release,
	}
	q.maxLength.Store(maxLengthCeiling)
	start := uint64(tagptr.Pack19(unsafe.Pointer(&q.internal), 0))
	q.first.Store(start)
	q.last.Store(start)
	q.plainLast = tagptr.Tagged19(start)
	if !fast {
		q.fillerEnqueued.Store(true)
	}
	return q
}

func (q *boundedLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	q.enqueueRaw(rec)
}

func (q *boundedLinkedQueue[E]) enqueueRaw(rec *Queueable) {
	if !q.concurrentEnqueue {
		prev := q.plainLast
		q.plainLast = tagptr.Pack19(unsafe.Pointer(rec), tagptr.NextStamp19(prev.Stamp()))
		(*Queueable)(prev.Pointer()).storeNext(rec)
		q.tryDequeueOverBound(q.plainLast.Stamp(), q.maxLength.Load(), trimBatchCap)
		return
	}

	q.writers.Add(1)
	internal := rec == &q.internal
	var newLast tagptr.Tagged19
	for {
		raw := q.last.Load()
		prev := tagptr.Tagged19(raw)
		newLast = tagptr.Pack19(unsafe.Pointer(rec), tagptr.NextStamp19(prev.Stamp()))
		if q.last.CompareAndSwap(raw, uint64(newLast)) {
			(*Queueable)(prev.Pointer()).storeNext(rec)
			break
		}
	}
	if q.writers.Add(-1) == 0 && !internal {
		// All writers completed setting next up to the current stamp.
		q.tryDequeueOverBound(newLast.Stamp(), q.maxLength.Load(), trimBatchCap)
	}
}

func (q *boundedLinkedQueue[E]) Dequeue() (E, bool) {
	if q.fast {
		return q.dequeueFast()
	}
	return q.dequeueWithFiller()
}

func (q *boundedLinkedQueue[E]) dequeueFast() (E, bool) {
	var zero E
	for {
		raw := q.first.Load()
		fp := tagptr.Tagged19(raw)
		rec := (*Queueable)(fp.Pointer())
		nextnext := rec.loadNext()
		if nextnext == nil {
			return zero, false
		}
		next := tagptr.Pack19(unsafe.Pointer(nextnext), tagptr.NextStamp19(fp.Stamp()))
		if q.first.CompareAndSwap(raw, uint64(next)) {
			rec.storeNext(nil)
			if rec != &q.internal {
				return takeSelf[E](rec), true
			}
			// The initial element left the chain; go on with the
			// actual first.
		}
	}
}

func (q *boundedLinkedQueue[E]) dequeueWithFiller() (E, bool) {
	var zero E
	for {
		raw := q.first.Load()
		fp := tagptr.Tagged19(raw)
		rec := (*Queueable)(fp.Pointer())
		nextnext := rec.loadNext()
		if nextnext == nil {
			if rec != &q.internal && !q.fillerEnqueued.Swap(true) {
				q.enqueueRaw(&q.internal)
				nextnext = rec.loadNext()
			}
			if nextnext == nil {
				return zero, false
			}
		}
		next := tagptr.Pack19(unsafe.Pointer(nextnext), tagptr.NextStamp19(fp.Stamp()))
		if rec == &q.internal {
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

// tryDequeueOverBound drops elements whose stamp distance from the head
// exceeds the guiding maximum, at most maxToDequeue per call. It aborts
// on the first sign of interference from another goroutine rather than
// starve the caller.
func (q *boundedLinkedQueue[E]) tryDequeueOverBound(lastStamp uint32, maxLength, maxToDequeue int32) {
	raw := q.first.Load()
	dequeued := int32(0)
	for dequeued < maxToDequeue {
		fp := tagptr.Tagged19(raw)
		diff := tagptr.StampDist19(lastStamp, fp.Stamp())
		if q.fast {
			// '<=' because the fast queue keeps at least one element.
			if diff <= maxLength {
				return
			}
		} else if diff < maxLength {
			return
		}
		rec := (*Queueable)(fp.Pointer())
		nextnext := rec.loadNext()
		if nextnext == nil {
			return
		}
		next := tagptr.Pack19(unsafe.Pointer(nextnext), tagptr.NextStamp19(fp.Stamp()))
		if !q.first.CompareAndSwap(raw, uint64(next)) {
			return
		}
		rec.storeNext(nil)
		if rec != &q.internal {
			e := takeSelf[E](rec)
			if q.release != nil {
				q.release(e)
			}
		} else if !q.fast {
			q.fillerEnqueued.Store(false)
		}
		raw = uint64(next)
		dequeued++
	}
}

func (q *boundedLinkedQueue[E]) lastStamp() uint32 {
	if !q.concurrentEnqueue {
		return q.plainLast.Stamp()
	}
	return tagptr.Tagged19(q.last.Load()).Stamp()
}

// SetMaxLength updates the guiding maximum. Should not be called by
// multiple goroutines concurrently. Shrinking triggers an immediate
// trim of the difference.
func (q *boundedLinkedQueue[E]) SetMaxLength(n int) {
	if n <= 0 || n > maxLengthCeiling {
		xlog.Error(nil, "[x-bounded-queue] invalid max length, ignored",
			zap.Int("maxLength", n), zap.Int32("active", q.maxLength.Load()))
		return
	}
	old := q.maxLength.Swap(int32(n))
	if int32(n) < old {
		q.tryDequeueOverBound(q.lastStamp(), int32(n), old-int32(n))
	}
}

func (q *boundedLinkedQueue[E]) MaxLength() int {
	return int(q.maxLength.Load())
}

// Size reports the stamp distance between both ends. The value is a
// snapshot and may be off by in-flight operations (and by the filler of
// non-fast variants).
func (q *boundedLinkedQueue[E]) Size() int {
	diff := tagptr.StampDist19(q.lastStamp(), tagptr.Tagged19(q.first.Load()).Stamp())
	if !q.fast && q.fillerEnqueued.Load() && diff > 0 {
		diff--
	}
	return int(diff)
}

func (q *boundedLinkedQueue[E]) MinimumElementsInQueue() int {
	if q.fast {
		return 1
	}
	return 0
}

func (q *boundedLinkedQueue[E]) Close() {
	drainAndRelease[E](q, q.release)
	if !q.fast {
		return
	}
	var last *Queueable
	if q.concurrentEnqueue {
		last = (*Queueable)(tagptr.Tagged19(q.last.Load()).Pointer())
	} else {
		last = (*Queueable)(q.plainLast.Pointer())
	}
	releaseLastElement(last, &q.internal, q.release)
}
