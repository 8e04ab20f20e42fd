package variant

import (
	"sync/atomic"
)

// edgeKey identifies a child's position inside one parent for the
// reverse-update graph: the key node for object, the element slot for
// array, the node wrapper for set, the slot for tuple.
type edgeKey struct {
	parent *Variant
	idx    int64  // index for array/tuple
	strKey string // key for object
	node   *Variant // node wrapper identity for set (the element itself)
}

// Variant is the tagged-union runtime value. No class hierarchy is
// used; the Kind field drives all dispatch. Scalars are immutable
// after construction; containers are mutated in place through the
// container-specific methods.
type Variant struct {
	kind  Kind
	flags Flags
	heap  *Heap
	refc  atomic.Int64

	b    bool
	i64  int64
	u64  uint64
	f64  float64
	ld   longDouble
	atom *atomEntry
	str  *stringData
	bs   *bytesData
	big  *Bigint

	dyn    *DynamicOps
	native *NativeOps

	obj    *objectData
	arr    *arrayData
	set    *setData
	tuple  *tupleData
	sorted *sortedArrayData

	// reverseChain holds, for a container-typed (mutable) child, the
	// ordered list of (edgeKey -> parent) pairs in which this variant
	// is reachable. Immutable variants never allocate one.
	reverseChain *revChain
}

// Kind returns the variant's discriminant.
func (v *Variant) Kind() Kind { return v.kind }

// Heap returns the heap this variant currently belongs to.
func (v *Variant) Heap() *Heap { return v.heap }

// Refcount returns the current reference count (advisory for
// singletons, authoritative otherwise).
func (v *Variant) Refcount() int64 { return v.refc.Load() }

// Ref increments the reference count and returns v for chaining.
func (v *Variant) Ref() *Variant {
	v.refc.Add(1)
	return v
}

// Unref decrements the reference count; at zero, releases the variant's
// resources (container children released depth-first).
func (v *Variant) Unref() {
	if v.flags.Has(FlagNoFree) {
		// advisory only; singletons are never freed.
		if n := v.refc.Add(-1); n < 1 {
			v.refc.Store(1)
		}
		return
	}
	if n := v.refc.Add(-1); n == 0 {
		v.release()
	}
}

func (v *Variant) release() {
	extra := v.extraSize()
	switch v.kind {
	case KindString:
		v.releaseString()
	case KindByteSequence:
		v.releaseBytes()
	case KindObject:
		v.releaseObject()
	case KindArray:
		v.releaseArray()
	case KindSet:
		v.releaseSet()
	case KindTuple:
		v.releaseTuple()
	case KindSortedArray:
		v.releaseSortedArray()
	case KindNative:
		v.releaseNative()
	}
	if v.heap != nil {
		v.heap.accountFree(v.kind, extra)
	}
}

func (v *Variant) extraSize() int {
	if !v.flags.Has(FlagExtraSize) {
		return 0
	}
	switch v.kind {
	case KindString:
		if v.str != nil {
			return len(v.str.buf)
		}
	case KindByteSequence:
		if v.bs != nil {
			return len(v.bs.buf)
		}
	}
	return 0
}

// Equals reports deep structural equality: scalars compare by value,
// atoms by identity, containers recursively (order-sensitive for
// array/tuple/object, order-insensitive membership for set).
func Equals(a, b *Variant) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUnitNull, KindUnitUndefined:
		return true
	case KindBoolean:
		return a.b == b.b
	case KindException:
		return a.atom == b.atom
	case KindNumber:
		return a.f64 == b.f64 || (a.f64 != a.f64 && b.f64 != b.f64) // NaN==NaN for fingerprinting
	case KindLongInt:
		return a.i64 == b.i64
	case KindULongInt:
		return a.u64 == b.u64
	case KindLongDouble:
		return a.ld == b.ld
	case KindAtomString:
		return a.atom == b.atom
	case KindString:
		return a.str.text() == b.str.text()
	case KindByteSequence:
		return string(a.bs.bytes()) == string(b.bs.bytes())
	case KindBigint:
		return a.big.Cmp(b.big) == 0
	case KindDynamic:
		return a.dyn == b.dyn
	case KindNative:
		return a.native == b.native
	case KindObject:
		return equalsObject(a, b)
	case KindArray:
		return equalsArray(a, b)
	case KindSet:
		return equalsSet(a, b)
	case KindTuple:
		return equalsTuple(a, b)
	case KindSortedArray:
		return equalsSortedArray(a, b)
	default:
		return false
	}
}

// Compare provides a total order, the default sorted-array comparator
// (the set's tree view orders by fingerprint instead). Ordering across
// kinds is defined but arbitrary
// (kind number first): sets and sorted-arrays only need *a* consistent
// ordering, not a meaningful cross-kind one.
func Compare(a, b *Variant) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber:
		return cmpF64(a.f64, b.f64)
	case KindLongInt:
		return cmpI64(a.i64, b.i64)
	case KindULongInt:
		return cmpU64(a.u64, b.u64)
	case KindLongDouble:
		if c := cmpF64(a.ld.hi, b.ld.hi); c != 0 {
			return c
		}
		return cmpU64(a.ld.lo, b.ld.lo)
	case KindString:
		return cmpStr(a.str.text(), b.str.text())
	case KindAtomString:
		return cmpStr(a.atom.text, b.atom.text)
	case KindByteSequence:
		return cmpStr(string(a.bs.bytes()), string(b.bs.bytes()))
	case KindBigint:
		return a.big.Cmp(b.big)
	default:
		if Equals(a, b) {
			return 0
		}
		// Fall back to pointer identity for a stable, if arbitrary, order.
		return cmpPtr(a, b)
	}
}

func cmpF64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func cmpStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// cmpPtr gives a stable but arbitrary order over two distinct pointers.
func cmpPtr(a, b *Variant) int {
	pa := uintptrOf(a)
	pb := uintptrOf(b)
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}
