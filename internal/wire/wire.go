// Package wire provides bit-faithful reinterpretation between typed slices
// and their raw byte representation, plus checked integer conversions used
// at the transfer boundary.
//
// Views share memory with their argument and must not outlive it. They are
// the in-process equivalent of a DMA transfer: the bytes that cross the
// fabric boundary are exactly the bytes of the backing array.
package wire

import (
	"fmt"
	"math"
	"unsafe"
)

// Scalar enumerates the fixed-width element types that may cross the
// fabric boundary.
type Scalar interface {
	~int16 | ~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Size returns the byte width of T.
func Size[T Scalar]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// Bytes returns the raw bytes backing s. The view aliases s.
func Bytes[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*Size[T]())
}

// View reinterprets b as a slice of T. The view aliases b.
// len(b) must be a multiple of the element size.
func View[T Scalar](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	sz := Size[T]()
	if len(b)%sz != 0 {
		panic(fmt.Sprintf("wire: %d bytes is not a multiple of element size %d", len(b), sz))
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/sz)
}

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (negative)", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint32 (too large)", v)
	}
	return uint32(v), nil
}

// Uint32ToInt converts uint32 to int safely.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}
