package set

// Iterator walks the set's live elements in slot order without taking
// the mutation lock. It operates on the logical size snapshotted at
// Begin: elements appended afterwards stay invisible to this pass.
// Every slot is read with one atomic load and the element value is
// materialised into the iterator, so concurrent overwrites of the slot
// never race the caller's use of Value.
type Iterator[E comparable] struct {
	chunk     *setChunk[E]
	slotIdx   int
	index     int // logical index of the current slot
	remaining int // slots left to visit, including the current one
	curSlot   *slot[E]
	cur       E
	valid     bool
}

// Begin positions an iterator at the first live element.
func (s *ArrayChunkSet[E]) Begin() *Iterator[E] {
	it := &Iterator[E]{
		chunk:     s.firstChunk,
		remaining: int(s.size.Load()),
	}
	if it.remaining <= 0 || it.chunk == nil {
		return it
	}
	it.valid = true
	if !it.load() {
		it.Next()
	}
	return it
}

// Valid reports whether the iterator points at a live element.
func (it *Iterator[E]) Valid() bool {
	return it.valid
}

// Value returns the element snapshot taken when the iterator arrived
// at the current slot.
func (it *Iterator[E]) Value() E {
	return it.cur
}

// Next advances to the following live element, skipping empty slots.
func (it *Iterator[E]) Next() {
	for it.valid {
		it.step()
		if !it.valid {
			return
		}
		if it.load() {
			return
		}
	}
}

// step moves one slot forward, live or not.
func (it *Iterator[E]) step() {
	it.remaining--
	if it.remaining <= 0 {
		it.valid = false
		return
	}
	it.index++
	it.slotIdx++
	if it.slotIdx >= len(it.chunk.slots) {
		// The next chunk is published before the size that counts its
		// slots, so a non-nil load is guaranteed here.
		it.chunk = it.chunk.next.Load()
		it.slotIdx = 0
		if it.chunk == nil {
			it.valid = false
		}
	}
}

// load snapshots the current slot; false for an empty one.
func (it *Iterator[E]) load() bool {
	it.curSlot = &it.chunk.slots[it.slotIdx]
	v := it.curSlot.ptr.Load()
	if v == nil {
		return false
	}
	it.cur = *v
	return true
}
