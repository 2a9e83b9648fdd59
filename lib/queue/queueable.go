package queue

import (
	"sync/atomic"
	"unsafe"

	"github.com/benz9527/xconc/lib/tagptr"
)

// Queueable is the intrusive link record of elements in concurrent
// queues. An element type opts in by embedding it (flavour "most").
// Embedding additionally QueueableSingleThreaded yields the
// "most-optimised" flavour: fragments drained from concurrent queues can
// then be traversed without atomics.
//
// The next link needs to be atomic. Anything else would not really be
// clean - the stress test fails with a plain pointer and multiple
// writer goroutines.
type Queueable struct {
	next unsafe.Pointer // *Queueable
	// The element owning this record. Written by the enqueuing
	// goroutine before the record is published, read and cleared by
	// whoever takes ownership back.
	self any
}

func (q *Queueable) queueableRecord() *Queueable { return q }

func (q *Queueable) loadNext() *Queueable {
	return (*Queueable)(atomic.LoadPointer(&q.next))
}

func (q *Queueable) storeNext(next *Queueable) {
	atomic.StorePointer(&q.next, unsafe.Pointer(next))
}

// Linkable is satisfied by any element embedding Queueable (directly or
// through QueueableFull). Elements must be pointer types.
type Linkable interface {
	queueableRecord() *Queueable
}

// QueueableSingleThreaded is the link record for single-threaded queues
// and for the atomics-free chain of drained fragments. It does not need
// atomic access: the link is only critical for the reader goroutine,
// and the reader sets it itself.
type QueueableSingleThreaded struct {
	nextST *QueueableSingleThreaded
	selfST any
}

func (q *QueueableSingleThreaded) stQueueableRecord() *QueueableSingleThreaded { return q }

// STLinkable is satisfied by any element embedding
// QueueableSingleThreaded.
type STLinkable interface {
	stQueueableRecord() *QueueableSingleThreaded
}

// QueueableFull extends Queueable with an auxiliary tagged link
// (flavour "full"). Bounded drain-all queues use it to track the first
// element of the element's chunk together with the chunk length.
// Embedding additionally QueueableSingleThreaded yields the
// "full-optimised" flavour.
//
// Queueable must stay the first field: the bounded drain-all queue
// converts between *Queueable and *QueueableFull by address.
type QueueableFull struct {
	Queueable
	chunk uint64 // tagptr.Tagged19 over *QueueableFull, stamp = chunk length
}

func (q *QueueableFull) chunkLinkRecord() *QueueableFull { return q }

func (q *QueueableFull) loadChunk() (head *QueueableFull, length uint32) {
	tp := tagptr.Tagged19(atomic.LoadUint64(&q.chunk))
	return (*QueueableFull)(tp.Pointer()), tp.Stamp()
}

func (q *QueueableFull) storeChunk(head *QueueableFull, length uint32) {
	atomic.StoreUint64(&q.chunk, uint64(tagptr.Pack19(unsafe.Pointer(head), length)))
}

// ChunkLinkable is satisfied by any element embedding QueueableFull.
// Only such elements may enter a bounded drain-all queue.
type ChunkLinkable interface {
	Linkable
	chunkLinkRecord() *QueueableFull
}

// fullRecord converts the embedded Queueable record back to its
// QueueableFull container. Valid only for records of ChunkLinkable
// elements.
func fullRecord(rec *Queueable) *QueueableFull {
	return (*QueueableFull)(unsafe.Pointer(rec))
}

// terminator is the process-wide past-the-end marker referenced by the
// initial next link of fast queues. Only its identity matters; it is
// created once and never released.
var terminator = &Queueable{}

// takeSelf moves the element out of a dequeued record.
func takeSelf[E any](rec *Queueable) E {
	e := rec.self.(E)
	rec.self = nil
	return e
}
