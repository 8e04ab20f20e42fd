package variant

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Numerify is the total recursive coercion to float64 used throughout
// the interpreter. Every kind has a defined result; it never fails.
func Numerify(v *Variant) float64 {
	if v == nil {
		return 0
	}
	switch v.kind {
	case KindUnitNull, KindUnitUndefined:
		return 0.0
	case KindBoolean:
		if v.b {
			return 1
		}
		return 0
	case KindException:
		return 0
	case KindNumber:
		return v.f64
	case KindLongInt:
		return float64(v.i64)
	case KindULongInt:
		return float64(v.u64)
	case KindLongDouble:
		return v.ld.hi
	case KindBigint:
		return v.big.ToF64()
	case KindAtomString:
		return strtodStyle(v.atom.text)
	case KindString:
		return strtodStyle(v.str.text())
	case KindByteSequence:
		return bytesAsI64(v.bs.bytes())
	case KindDynamic:
		if v.dyn != nil && v.dyn.Getter != nil {
			r, err := v.dyn.Getter(nil)
			if err == nil && r != nil {
				return Numerify(r)
			}
		}
		return 0
	case KindNative:
		if v.native != nil && v.native.PropertyGet != nil {
			r, err := v.native.PropertyGet("__number")
			if err == nil && r != nil {
				return Numerify(r)
			}
		}
		return 0
	case KindObject:
		sum := 0.0
		for _, e := range v.obj.entries {
			sum += Numerify(e.val)
		}
		return sum
	case KindArray:
		sum := 0.0
		for _, e := range v.arr.items {
			sum += Numerify(e)
		}
		return sum
	case KindSet:
		sum := 0.0
		v.SetInsertionIterate(func(elem *Variant) bool {
			sum += Numerify(elem)
			return true
		})
		return sum
	case KindTuple:
		sum := 0.0
		for _, e := range v.tuple.items {
			sum += Numerify(e)
		}
		return sum
	case KindSortedArray:
		sum := 0.0
		for _, e := range v.sorted.items {
			sum += Numerify(e)
		}
		return sum
	default:
		return 0
	}
}

func strtodStyle(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// strtod parses the longest valid numeric prefix; strconv.ParseFloat
	// requires the whole string to be numeric, so find the prefix.
	end := len(s)
	for end > 0 {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
		end--
	}
	return 0
}

func bytesAsI64(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	buf := make([]byte, 8)
	copy(buf, b)
	if len(b) > 8 {
		copy(buf, b[:8])
	}
	return float64(int64(binary.LittleEndian.Uint64(buf)))
}
