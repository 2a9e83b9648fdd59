package set

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func collect[E comparable](s *ArrayChunkSet[E]) []E {
	out := make([]E, 0)
	s.Foreach(func(e E) bool {
		out = append(out, e)
		return true
	})
	return out
}

func TestArrayChunkSet_AddAndIterate(t *testing.T) {
	s := NewArrayChunkSet[int](
		WithInitialCapacity[int](2),
		WithFurtherCapacity[int](6),
	)
	assert.True(t, s.Empty())

	for i := 1; i <= 20; i++ {
		s.Add(i)
	}
	assert.False(t, s.Empty())
	assert.Equal(t, lo.RangeFrom(1, 20), collect(s))
}

func TestArrayChunkSet_NullElementRejected(t *testing.T) {
	s := NewArrayChunkSet[int]()
	s.Add(0) // the default null element, logged and ignored
	assert.True(t, s.Empty())

	s2 := NewArrayChunkSet[int](WithNullElement[int](-1))
	s2.Add(0)
	assert.Equal(t, []int{0}, collect(s2))
	s2.Add(-1)
	assert.Equal(t, []int{0}, collect(s2))
}

func TestArrayChunkSet_NoDuplicates(t *testing.T) {
	s := NewArrayChunkSet[int](WithAllowDuplicates[int](DuplicatesNo))
	s.Add(7)
	s.Add(7)
	s.Add(7)
	assert.Equal(t, []int{7}, collect(s))
}

func TestArrayChunkSet_DuplicatesAllowed(t *testing.T) {
	for _, mode := range []AllowDuplicates{DuplicatesYes, DuplicatesYesOptimized} {
		s := NewArrayChunkSet[int](WithAllowDuplicates[int](mode))
		s.Add(7)
		s.Add(7)
		s.Add(3)
		assert.Equal(t, []int{7, 7, 3}, collect(s), "mode %d", mode)

		// Remove drops every occurrence.
		s.Remove(7)
		assert.Equal(t, []int{3}, collect(s), "mode %d", mode)
	}
}

func TestArrayChunkSet_SlotReuse(t *testing.T) {
	s := NewArrayChunkSet[int](WithInitialCapacity[int](4))
	for i := 1; i <= 4; i++ {
		s.Add(i)
	}
	s.Remove(2)
	// The tombstone is reused before any new chunk is appended.
	s.Add(9)
	assert.Equal(t, []int{1, 9, 3, 4}, collect(s))
}

func TestArrayChunkSet_RemoveAtEverySecond(t *testing.T) {
	s := NewArrayChunkSet[int](
		WithInitialCapacity[int](2),
		WithFurtherCapacity[int](6),
	)
	for i := 1; i <= 20; i++ {
		s.Add(i)
	}
	it := s.Begin()
	for it.Valid() {
		it = s.RemoveAt(it) // returns the next position
		if it.Valid() {
			it.Next() // skip one, removing every second element
		}
	}
	expected := lo.Filter(lo.RangeFrom(1, 20), func(v int, _ int) bool {
		return v%2 == 0
	})
	assert.Equal(t, expected, collect(s), "remaining elements keep insertion order")
}

func TestArrayChunkSet_RemoveShrinksTail(t *testing.T) {
	s := NewArrayChunkSet[int](WithInitialCapacity[int](4))
	s.Add(1)
	s.Add(2)
	s.Add(3)
	s.Remove(3)
	s.Remove(2)
	// The trailing tombstones were reclaimed: new adds append right
	// after the live prefix again.
	s.Add(5)
	assert.Equal(t, []int{1, 5}, collect(s))
}

func TestArrayChunkSet_Clear(t *testing.T) {
	s := NewArrayChunkSet[int]()
	for i := 1; i <= 10; i++ {
		s.Add(i)
	}
	s.Clear()
	assert.True(t, s.Empty())
	s.Add(42)
	assert.Equal(t, []int{42}, collect(s))
}

func TestArrayChunkSet_IteratorSnapshotDuringGrowth(t *testing.T) {
	s := NewArrayChunkSet[int](
		WithInitialCapacity[int](2),
		WithFurtherCapacity[int](6),
	)
	for i := 1; i <= 5; i++ {
		s.Add(i)
	}
	it := s.Begin()
	for i := 6; i <= 20; i++ {
		s.Add(i)
	}
	// The iterator sees the five elements present when it started;
	// later growth stays invisible to this pass.
	seen := make([]int, 0, 5)
	for ; it.Valid(); it.Next() {
		seen = append(seen, it.Value())
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestArrayChunkSet_ConcurrentIterationNeverYieldsDeadSlot(t *testing.T) {
	s := NewArrayChunkSet[int](
		WithInitialCapacity[int](8),
		WithFurtherCapacity[int](8),
	)
	stop := make(chan struct{})
	mutatorDone := make(chan struct{})
	var wg sync.WaitGroup

	go func() {
		defer close(mutatorDone)
		for round := 0; ; round++ {
			for i := 1; i <= 32; i++ {
				s.Add(i)
			}
			for i := 1; i <= 32; i += 2 {
				s.Remove(i)
			}
			s.Clear()
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	var yields atomic.Int64
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20000; i++ {
				for it := s.Begin(); it.Valid(); it.Next() {
					v := it.Value()
					if v < 1 || v > 32 {
						t.Errorf("iterator yielded a dead slot value %d", v)
						return
					}
					yields.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-mutatorDone
	assert.GreaterOrEqual(t, yields.Load(), int64(0))
}

func TestArrayChunkSet_NoMutexSingleThreaded(t *testing.T) {
	s := NewArrayChunkSet[string](
		WithMutex[string](NoMutex{}),
		WithNullElement[string](""),
	)
	s.Add("a")
	s.Add("b")
	s.Remove("a")
	assert.Equal(t, []string{"b"}, collect(s))
}
