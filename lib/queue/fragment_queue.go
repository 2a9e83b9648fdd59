package queue

import (
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/cpu"

	"github.com/benz9527/xconc/lib/tagptr"
	"github.com/benz9527/xconc/xlog"
)

// fragmentLinkedQueue is the unbounded drain-all queue. Producers push
// LIFO with a CAS on 'last'; the consumer drains the whole chain with a
// single exchange. The returned fragment flips the order back to FIFO
// lazily.
type fragmentLinkedQueue[E Linkable] struct {
	last    unsafe.Pointer // *Queueable, LIFO top
	_       cpu.CacheLinePad
	release func(E)
}

func newFragmentLinkedQueue[E Linkable](release func(E)) *fragmentLinkedQueue[E] {
	return &fragmentLinkedQueue[E]{release: release}
}

func (q *fragmentLinkedQueue[E]) Enqueue(e E) {
	rec := e.queueableRecord()
	rec.self = e
	for {
		cur := atomic.LoadPointer(&q.last)
		rec.storeNext((*Queueable)(cur))
		if atomic.CompareAndSwapPointer(&q.last, cur, unsafe.Pointer(rec)) {
			return
		}
	}
}

func (q *fragmentLinkedQueue[E]) DequeueAll() *Fragment[E] {
	frag := &Fragment[E]{release: q.release}
	ex := (*Queueable)(atomic.SwapPointer(&q.last, nil))
	frag.initLIFO(ex, -1)
	return frag
}

func (q *fragmentLinkedQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *fragmentLinkedQueue[E]) Close() {
	q.DequeueAll().Close()
}

// boundedFragmentQueue bounds the drain-all queue by chunks. Each
// full-flavour element carries an auxiliary tagged link that, within
// its chunk, points to the chunk's first element tagged with the chunk
// length. Whenever a chunk reaches the guiding maximum the enqueuer
// starts a new one and, on CAS success, walks and releases the chunk
// before the one just closed - so the queue never holds more than two
// chunks, and each enqueue reclaims at most one chunk.
//
// Two stamps are in play: the 'last' stamp counts enqueue operations
// (ABA defence), the chunk stamp counts the chunk length. On 64-bit
// platforms they live in separate words, which is the only layout
// implemented here.
type boundedFragmentQueue[E ChunkLinkable] struct {
	last      atomic.Uint64 // tagptr.Tagged16 over *QueueableFull
	_         cpu.CacheLinePad
	maxLength atomic.Int32
	release   func(E)
}

func newBoundedFragmentQueue[E ChunkLinkable](release func(E)) *boundedFragmentQueue[E] {
	q := &boundedFragmentQueue[E]{release: release}
	q.maxLength.Store(maxLengthCeiling)
	return q
}

func (q *boundedFragmentQueue[E]) Enqueue(e E) {
	maxLen := uint32(q.maxLength.Load())
	full := e.chunkLinkRecord()
	rec := &full.Queueable
	rec.self = e
	for {
		raw := q.last.Load()
		cur := tagptr.Tagged16(raw)
		curFull := (*QueueableFull)(cur.Pointer())
		var chunkHead *QueueableFull
		var chunkLen uint32
		if curFull != nil {
			chunkHead, chunkLen = curFull.loadChunk()
		}
		var chunkToDelete *Queueable
		if curFull != nil && chunkLen >= maxLen {
			// Start a new chunk. The chunk before the one just closed
			// is this writer's to release, should the CAS succeed.
			rec.storeNext(&curFull.Queueable)
			full.storeChunk(full, 1)
			chunkToDelete = chunkHead.Queueable.loadNext()
		} else {
			// Extend the current chunk.
			if curFull != nil {
				rec.storeNext(&curFull.Queueable)
			} else {
				rec.storeNext(nil)
			}
			head := chunkHead
			if head == nil {
				head = full
			}
			full.storeChunk(head, chunkLen+1)
		}
		next := tagptr.Pack16(unsafe.Pointer(full), tagptr.NextStamp16(cur.Stamp()))
		if q.last.CompareAndSwap(raw, uint64(next)) {
			if chunkToDelete != nil {
				q.releaseChunk(chunkToDelete)
			}
			return
		}
	}
}

// releaseChunk walks from the newest element of a discarded chunk down
// to the chunk's first element, releasing each.
func (q *boundedFragmentQueue[E]) releaseChunk(top *Queueable) {
	head, _ := fullRecord(top).loadChunk()
	first := &head.Queueable
	cur := top
	for cur != first {
		tmp := cur
		cur = cur.loadNext()
		tmp.storeNext(nil)
		q.releaseRec(tmp)
	}
	cur.storeNext(nil)
	q.releaseRec(cur)
}

func (q *boundedFragmentQueue[E]) releaseRec(rec *Queueable) {
	e := takeSelf[E](rec)
	if q.release != nil {
		q.release(e)
	}
}

// DequeueAll atomically takes the chain, keeping only the enqueue
// counter in 'last'. The chain holds at most the in-progress chunk and
// the one before it; the link behind the full chunk is cut so the
// fragment's cap can hide the older part.
func (q *boundedFragmentQueue[E]) DequeueAll() *Fragment[E] {
	frag := &Fragment[E]{release: q.release}
	var exFull *QueueableFull
	for {
		raw := q.last.Load()
		cur := tagptr.Tagged16(raw)
		if cur.Pointer() == nil {
			break
		}
		if q.last.CompareAndSwap(raw, uint64(tagptr.Pack16(nil, cur.Stamp()))) {
			exFull = (*QueueableFull)(cur.Pointer())
			break
		}
	}
	if exFull != nil {
		curHead, _ := exFull.loadChunk()
		if prevTop := curHead.Queueable.loadNext(); prevTop != nil {
			prevHead, _ := fullRecord(prevTop).loadChunk()
			prevHead.Queueable.storeNext(nil)
		}
		frag.initLIFO(&exFull.Queueable, int(q.maxLength.Load()))
	}
	return frag
}

// SetMaxLength updates the guiding maximum for future chunk breaks.
// The queue cannot be safely shortened retroactively here; pending
// over-bound elements age out with the next chunk turnover.
func (q *boundedFragmentQueue[E]) SetMaxLength(n int) {
	if n <= 0 || n > maxLengthCeiling {
		xlog.Error(nil, "[x-bounded-fragment-queue] invalid max length, ignored",
			zap.Int("maxLength", n), zap.Int32("active", q.maxLength.Load()))
		return
	}
	q.maxLength.Store(int32(n))
}

func (q *boundedFragmentQueue[E]) MaxLength() int {
	return int(q.maxLength.Load())
}

func (q *boundedFragmentQueue[E]) MinimumElementsInQueue() int { return 0 }

func (q *boundedFragmentQueue[E]) Close() {
	q.DequeueAll().Close()
}
