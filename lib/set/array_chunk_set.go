// Package set provides a concurrent set whose storage is a singly-linked
// list of fixed-capacity element arrays. Mutation is lock-guarded and
// O(n); iteration is lock-free and therefore usable from real-time
// goroutines concurrently to any mutation. Empty slots are nil and get
// reused by later inserts, so the memory footprint stays low as long as
// the set size does not exceed the initial capacity often.
package set

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/benz9527/xconc/xlog"
)

// AllowDuplicates determines whether an element can be added to a set
// multiple times.
type AllowDuplicates uint8

const (
	// DuplicatesNo leaves the set unchanged when the element is
	// already present.
	DuplicatesNo AllowDuplicates = iota
	// DuplicatesYes admits an element any number of times.
	DuplicatesYes
	// DuplicatesYesOptimized additionally tracks the first free slot,
	// making Add cheaper at a slightly increased memory footprint.
	DuplicatesYesOptimized
)

// NoMutex disables mutation locking for sets that live in a
// single-goroutine context.
type NoMutex struct{}

func (NoMutex) Lock()   {}
func (NoMutex) Unlock() {}

type setChunk[E comparable] struct {
	slots []slot[E]
	next  atomic.Pointer[setChunk[E]]
}

// slot boxes the element so a reader can load value and emptiness in
// one atomic pointer load while a writer overwrites the slot.
type slot[E comparable] struct {
	ptr atomic.Pointer[E]
}

func newSetChunk[E comparable](capacity int) *setChunk[E] {
	return &setChunk[E]{slots: make([]slot[E], capacity)}
}

// ArrayChunkSet is the array-chunk-backed set. The null element is a
// configurable constant that marks "no value" at the API boundary and
// may never be inserted; empty slots themselves are nil boxes, which
// iterators skip, so no reader ever observes the null element as live.
type ArrayChunkSet[E comparable] struct {
	mu              sync.Locker
	firstChunk      *setChunk[E]
	size            atomic.Uint64 // slots in use, including tombstones; published last
	allowDuplicates AllowDuplicates
	nullElement     E
	furtherCap      int
	firstFreeHint   int // DuplicatesYesOptimized only
}

type Option[E comparable] func(*ArrayChunkSet[E])

func WithInitialCapacity[E comparable](n int) Option[E] {
	return func(s *ArrayChunkSet[E]) {
		if n > 0 {
			s.firstChunk = newSetChunk[E](n)
		}
	}
}

func WithFurtherCapacity[E comparable](n int) Option[E] {
	return func(s *ArrayChunkSet[E]) {
		if n > 0 {
			s.furtherCap = n
		}
	}
}

func WithAllowDuplicates[E comparable](mode AllowDuplicates) Option[E] {
	return func(s *ArrayChunkSet[E]) { s.allowDuplicates = mode }
}

// WithNullElement overrides the default null element (the zero value).
func WithNullElement[E comparable](null E) Option[E] {
	return func(s *ArrayChunkSet[E]) { s.nullElement = null }
}

// WithMutex swaps the mutation lock, e.g. for NoMutex in
// single-goroutine contexts.
func WithMutex[E comparable](mu sync.Locker) Option[E] {
	return func(s *ArrayChunkSet[E]) {
		if mu != nil {
			s.mu = mu
		}
	}
}

const (
	defaultInitialCapacity = 8
	defaultFurtherCapacity = 8
)

func NewArrayChunkSet[E comparable](opts ...Option[E]) *ArrayChunkSet[E] {
	s := &ArrayChunkSet[E]{
		mu:            &sync.Mutex{},
		firstChunk:    newSetChunk[E](defaultInitialCapacity),
		furtherCap:    defaultFurtherCapacity,
		firstFreeHint: -1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add inserts the element: into an existing equal slot's set when
// duplicates are disallowed and the element is already present (no-op),
// otherwise into the first free slot, otherwise appended at the logical
// end, growing by another chunk when the capacity is exhausted.
func (s *ArrayChunkSet[E]) Add(e E) {
	if e == s.nullElement {
		xlog.Error(nil, "[x-array-chunk-set] the null element may not be added, ignored",
			zap.Any("element", e))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int(s.size.Load())
	var firstFree *slot[E]
	firstFreeIdx := -1

	if s.allowDuplicates == DuplicatesYesOptimized && s.firstFreeHint >= 0 && s.firstFreeHint < size {
		if sl := s.slotAt(s.firstFreeHint); sl.ptr.Load() == nil {
			firstFree, firstFreeIdx = sl, s.firstFreeHint
		}
	}
	if firstFree == nil {
		idx := 0
		for c := s.firstChunk; c != nil && idx < size; c = c.next.Load() {
			for i := range c.slots {
				if idx >= size {
					break
				}
				v := c.slots[i].ptr.Load()
				if v != nil {
					if s.allowDuplicates == DuplicatesNo && *v == e {
						return // already in set
					}
				} else if firstFree == nil {
					firstFree, firstFreeIdx = &c.slots[i], idx
					if s.allowDuplicates != DuplicatesNo {
						goto insert
					}
				}
				idx++
			}
		}
	}

insert:
	boxed := new(E)
	*boxed = e
	if firstFree != nil {
		firstFree.ptr.Store(boxed)
		if s.allowDuplicates == DuplicatesYesOptimized && firstFreeIdx == s.firstFreeHint {
			s.firstFreeHint = -1
		}
		return
	}
	s.slotForAppend(size).ptr.Store(boxed)
	s.size.Add(1) // important: publish the new logical end last
}

// slotAt addresses the slot at the given logical index. Caller holds
// the lock; the index must be < size.
func (s *ArrayChunkSet[E]) slotAt(idx int) *slot[E] {
	c := s.firstChunk
	for idx >= len(c.slots) {
		idx -= len(c.slots)
		c = c.next.Load()
	}
	return &c.slots[idx]
}

// slotForAppend addresses the slot one past the logical end, appending
// a further chunk if the backing arrays are exhausted.
func (s *ArrayChunkSet[E]) slotForAppend(idx int) *slot[E] {
	c := s.firstChunk
	for idx >= len(c.slots) {
		idx -= len(c.slots)
		next := c.next.Load()
		if next == nil {
			next = newSetChunk[E](s.furtherCap)
			c.next.Store(next)
		}
		c = next
	}
	return &c.slots[idx]
}

// Remove overwrites every occurrence of the element with an empty slot
// and opportunistically shrinks the logical end over trailing
// tombstones.
func (s *ArrayChunkSet[E]) Remove(e E) {
	if e == s.nullElement {
		// not in the set by contract
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int(s.size.Load())
	freeSlotsAtBack := 0
	idx := 0
	for c := s.firstChunk; c != nil && idx < size; c = c.next.Load() {
		for i := range c.slots {
			if idx >= size {
				break
			}
			v := c.slots[i].ptr.Load()
			switch {
			case v != nil && *v == e:
				c.slots[i].ptr.Store(nil)
				s.noteFreed(idx)
				freeSlotsAtBack++
			case v == nil:
				freeSlotsAtBack++
			default:
				freeSlotsAtBack = 0
			}
			idx++
		}
	}
	if freeSlotsAtBack > 0 {
		s.size.Store(uint64(size - freeSlotsAtBack))
	}
}

func (s *ArrayChunkSet[E]) noteFreed(idx int) {
	if s.allowDuplicates != DuplicatesYesOptimized {
		return
	}
	if s.firstFreeHint < 0 || idx < s.firstFreeHint {
		s.firstFreeHint = idx
	}
}

// RemoveAt removes the element the iterator points at and returns the
// iterator advanced to the following element (possibly past the end).
func (s *ArrayChunkSet[E]) RemoveAt(it *Iterator[E]) *Iterator[E] {
	if it == nil || !it.Valid() {
		return it
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	it.curSlot.ptr.Store(nil)
	s.noteFreed(it.index)
	it.Next()
	if !it.Valid() {
		s.shrinkTail()
	}
	return it
}

// shrinkTail reduces the logical size by the trailing run of empty
// slots. Caller holds the lock.
func (s *ArrayChunkSet[E]) shrinkTail() {
	size := int(s.size.Load())
	freeSlotsAtBack := 0
	idx := 0
	for c := s.firstChunk; c != nil && idx < size; c = c.next.Load() {
		for i := range c.slots {
			if idx >= size {
				break
			}
			if c.slots[i].ptr.Load() == nil {
				freeSlotsAtBack++
			} else {
				freeSlotsAtBack = 0
			}
			idx++
		}
	}
	if freeSlotsAtBack > 0 {
		s.size.Store(uint64(size - freeSlotsAtBack))
	}
}

// Clear empties every live slot and resets the logical size.
func (s *ArrayChunkSet[E]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int(s.size.Load())
	idx := 0
	for c := s.firstChunk; c != nil && idx < size; c = c.next.Load() {
		for i := range c.slots {
			if idx >= size {
				break
			}
			c.slots[i].ptr.Store(nil)
			idx++
		}
	}
	s.size.Store(0)
	s.firstFreeHint = -1
}

// Empty reports whether no live element is stored. Lock-free.
func (s *ArrayChunkSet[E]) Empty() bool {
	return !s.Begin().Valid()
}

// Foreach visits every live element in slot order. Lock-free; elements
// added or removed concurrently may or may not be observed.
func (s *ArrayChunkSet[E]) Foreach(fn func(e E) bool) {
	for it := s.Begin(); it.Valid(); it.Next() {
		if !fn(it.Value()) {
			return
		}
	}
}
