// Package register provides a lock-protected grow-only register, a
// structure required surprisingly often for global bookkeeping (type
// registries, creation actions). Only new entries can be added; size
// query, index lookup and iteration run lock-free concurrently to
// additions. Memory is organised in chunks so the register can allocate
// further capacity on demand without moving existing entries.
package register

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/benz9527/xconc/lib/infra"
)

type listener struct {
	addr     any
	callback func()
}

// Register stores entries of type E in up to chunkCount chunks of
// chunkSize entries each.
type Register[E any] struct {
	mu           sync.Mutex
	chunks       []atomic.Pointer[[]E]
	chunkSize    int
	size         atomic.Uint64 // published after the entry write
	externalSize *atomic.Uint64
	listeners    []listener
}

type Option[E any] func(*Register[E])

// WithExternalSizeVariable mirrors the register size into an external
// atomic, e.g. one placed in a header block for cheap lookup.
func WithExternalSizeVariable[E any](size *atomic.Uint64) Option[E] {
	return func(r *Register[E]) { r.externalSize = size }
}

func NewRegister[E any](chunkCount, chunkSize int, opts ...Option[E]) *Register[E] {
	if chunkCount < 1 {
		chunkCount = 1
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	r := &Register[E]{
		chunks:    make([]atomic.Pointer[[]E], chunkCount),
		chunkSize: chunkSize,
	}
	first := make([]E, chunkSize)
	r.chunks[0].Store(&first)
	for _, o := range opts {
		o(r)
	}
	return r
}

// Capacity is the fixed maximum number of entries.
func (r *Register[E]) Capacity() int {
	return len(r.chunks) * r.chunkSize
}

// Size reports the number of entries. Lock-free and very efficient.
func (r *Register[E]) Size() int {
	return int(r.size.Load())
}

// Add appends the entry and returns its index. Adding beyond the
// configured capacity fails; increase chunkCount or chunkSize then.
func (r *Register[E]) Add(entry E) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := int(r.size.Load())
	chunkIdx := size / r.chunkSize
	if chunkIdx >= len(r.chunks) {
		return 0, infra.NewErrorStack("[x-register] capacity " +
			strconv.Itoa(r.Capacity()) + " exceeded")
	}
	elemIdx := size % r.chunkSize
	chunk := r.chunks[chunkIdx].Load()
	if chunk == nil {
		fresh := make([]E, r.chunkSize)
		chunk = &fresh
		r.chunks[chunkIdx].Store(chunk)
	}
	(*chunk)[elemIdx] = entry

	r.size.Store(uint64(size + 1))
	if r.externalSize != nil {
		r.externalSize.Store(uint64(size + 1))
	}
	for _, l := range r.listeners {
		l.callback()
	}
	return size, nil
}

// Get looks an entry up by index. Lock-free; safe concurrently to Add.
func (r *Register[E]) Get(index int) (E, bool) {
	var zero E
	if index < 0 || index >= int(r.size.Load()) {
		return zero, false
	}
	chunk := r.chunks[index/r.chunkSize].Load()
	return (*chunk)[index%r.chunkSize], true
}

// AddListener registers a callback invoked (under the register lock)
// after every addition. The address only matters for RemoveListener.
func (r *Register[E]) AddListener(callback func(), addr any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener{addr: addr, callback: callback})
}

func (r *Register[E]) RemoveListener(addr any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = lo.Reject(r.listeners, func(l listener, _ int) bool {
		return l.addr == addr
	})
}

// Foreach visits the entries present at call time, in addition order.
// Lock-free.
func (r *Register[E]) Foreach(fn func(index int, entry E) bool) {
	size := r.Size()
	for i := 0; i < size; i++ {
		e, ok := r.Get(i)
		if !ok {
			return
		}
		if !fn(i, e) {
			return
		}
	}
}
