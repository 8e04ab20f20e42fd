package variant

import (
	"math"
	"unsafe"
)

func uintptrOf(v *Variant) uintptr {
	return uintptr(unsafe.Pointer(v))
}

func float64bitsImpl(f float64) uint64 {
	return math.Float64bits(f)
}

// longDouble models the "long double" scalar kind (implementation >= 64
// bits). Go has no extended-precision float type; we carry the base
// float64 value plus a low-order mantissa extension so round-tripping
// through numerify/stringify is lossless for the common case of values
// that originated as float64, while still giving the kind its own
// identity distinct from Number.
type longDouble struct {
	hi float64
	lo uint64 // extra mantissa bits, opaque beyond equality/ordering
}
