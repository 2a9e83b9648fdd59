package tagptr

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack19RoundTrip(t *testing.T) {
	var dummy [4]uint64
	ptr := unsafe.Pointer(&dummy[0])
	require.Equal(t, uintptr(0), uintptr(ptr)&lowMask, "test object must be 8-byte aligned")

	for _, stamp := range []uint32{0, 1, 7, 8, 0x1FFFF, Stamp19Mask} {
		tp := Pack19(ptr, stamp)
		assert.Equal(t, ptr, tp.Pointer())
		assert.Equal(t, stamp, tp.Stamp())
	}

	tp := Pack19(nil, 42)
	assert.Nil(t, tp.Pointer())
	assert.Equal(t, uint32(42), tp.Stamp())
}

func TestPack19StampWrap(t *testing.T) {
	tp := Pack19(nil, Stamp19Mask)
	assert.Equal(t, uint32(Stamp19Mask), tp.Stamp())
	assert.Equal(t, uint32(0), NextStamp19(tp.Stamp()))
}

func TestPack16RoundTrip(t *testing.T) {
	var dummy uint64
	ptr := unsafe.Pointer(&dummy)
	for _, stamp := range []uint32{0, 1, 0x7FFF, Stamp16Mask} {
		tp := Pack16(ptr, stamp)
		assert.Equal(t, ptr, tp.Pointer())
		assert.Equal(t, stamp, tp.Stamp())
	}
	assert.Equal(t, uint32(0), NextStamp16(Stamp16Mask))
}

func TestWithStamp(t *testing.T) {
	var dummy uint64
	tp := Pack19(unsafe.Pointer(&dummy), 3)
	tp2 := tp.WithStamp(Stamp19Mask)
	assert.Equal(t, tp.Pointer(), tp2.Pointer())
	assert.Equal(t, uint32(Stamp19Mask), tp2.Stamp())
}

func TestStampDist19(t *testing.T) {
	assert.Equal(t, int32(0), StampDist19(5, 5))
	assert.Equal(t, int32(10), StampDist19(15, 5))
	// 'from' wrapped past zero while 'till' did not.
	assert.Equal(t, int32(6), StampDist19(2, Stamp19Mask-3))
	// Full window minus one.
	assert.Equal(t, int32(Stamp19Mask), StampDist19(Stamp19Mask, 0))
}
