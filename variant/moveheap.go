package variant

import lru "github.com/hashicorp/golang-lru/v2"

// CloneShallow returns a new container holding the same immediate
// children (ref'd, not copied); scalars are immutable and clone as a
// ref to themselves.
func CloneShallow(v *Variant) *Variant {
	if v == nil {
		return nil
	}
	if !v.kind.IsContainer() {
		return v.Ref()
	}
	switch v.kind {
	case KindObject:
		nv := v.heap.MakeObject()
		for _, e := range v.obj.entries {
			_ = nv.Set(e.key, e.val)
		}
		return nv
	case KindArray:
		nv := v.heap.MakeArray()
		for _, e := range v.arr.items {
			_ = nv.Append(e)
		}
		return nv
	case KindTuple:
		return v.heap.MakeTuple(v.tuple.items)
	case KindSortedArray:
		nv := v.heap.MakeSortedArray(v.sorted.cmp, boolToFlag(v.sorted.desc), v.sorted.uniqueK)
		for _, e := range v.sorted.items {
			_ = nv.SortedAdd(e)
		}
		return nv
	case KindSet:
		nv, _ := v.heap.MakeSet(v.set.keySpec)
		v.SetInsertionIterate(func(elem *Variant) bool {
			_ = nv.SetAdd(elem, false)
			return true
		})
		return nv
	default:
		return v.Ref()
	}
}

func boolToFlag(desc bool) SortedArrayFlag {
	if desc {
		return SortedDesc
	}
	return SortedAsc
}

// CloneDeep recursively clones v into destHeap, preserving shared
// substructure: two references to the same mutable container inside v
// clone to a single shared clone (identity-keyed cache).
func CloneDeep(v *Variant, destHeap *Heap) *Variant {
	cache := destHeap.newCloneCache()
	return cloneDeep(v, destHeap, cache)
}

func cloneDeep(v *Variant, dest *Heap, cache *lru.Cache[*Variant, *Variant]) *Variant {
	if v == nil {
		return nil
	}
	if !v.kind.IsContainer() {
		return cloneScalar(v, dest)
	}
	if c, ok := cache.Get(v); ok {
		return c.Ref()
	}
	switch v.kind {
	case KindObject:
		nv := dest.MakeObject()
		cache.Add(v, nv)
		for _, e := range v.obj.entries {
			_ = nv.Set(e.key, cloneDeep(e.val, dest, cache))
		}
		return nv
	case KindArray:
		nv := dest.MakeArray()
		cache.Add(v, nv)
		for _, e := range v.arr.items {
			_ = nv.Append(cloneDeep(e, dest, cache))
		}
		return nv
	case KindTuple:
		placeholders := make([]*Variant, len(v.tuple.items))
		for i := range placeholders {
			placeholders[i] = dest.Null()
		}
		nv := dest.MakeTuple(placeholders)
		cache.Add(v, nv)
		for i, e := range v.tuple.items {
			_ = nv.TupleSetAt(i, cloneDeep(e, dest, cache))
		}
		return nv
	case KindSortedArray:
		nv := dest.MakeSortedArray(v.sorted.cmp, boolToFlag(v.sorted.desc), v.sorted.uniqueK)
		cache.Add(v, nv)
		for _, e := range v.sorted.items {
			_ = nv.SortedAdd(cloneDeep(e, dest, cache))
		}
		return nv
	case KindSet:
		nv, _ := dest.MakeSet(v.set.keySpec)
		cache.Add(v, nv)
		v.SetInsertionIterate(func(elem *Variant) bool {
			_ = nv.SetAdd(cloneDeep(elem, dest, cache), false)
			return true
		})
		return nv
	default:
		return v.Ref()
	}
}

func cloneScalar(v *Variant, dest *Heap) *Variant {
	switch v.kind {
	case KindUnitNull:
		return dest.Null()
	case KindUnitUndefined:
		return dest.Undefined()
	case KindBoolean:
		return dest.Bool(v.b)
	case KindException:
		return dest.MakeException(v.atom.text)
	case KindNumber:
		return dest.MakeNumber(v.f64)
	case KindLongInt:
		return dest.MakeLongInt(v.i64)
	case KindULongInt:
		return dest.MakeULongInt(v.u64)
	case KindLongDouble:
		return dest.MakeLongDouble(v.ld.hi, v.ld.lo)
	case KindAtomString:
		return dest.MakeAtomString(v.atom.text)
	case KindString:
		return dest.MakeString(v.str.text())
	case KindByteSequence:
		return dest.MakeByteSequence(v.bs.bytes())
	case KindBigint:
		return dest.MakeBigint(newBigint(v.big.v))
	case KindDynamic:
		return dest.MakeDynamic(v.dyn)
	case KindNative:
		return dest.MakeNative(nil, v.native)
	default:
		return v.Ref()
	}
}

// MoveIn is the first phase of the two-phase move protocol: it parks v
// (migrating it out of its current heap) into the process-wide move
// heap, returning the parked value. The move-heap mutex serializes
// this against every other move in the process. Per-heap singletons
// rebind to the move heap's equivalent singleton; a uniquely-owned
// mutable value moves in place (same pointer identity, stats
// transferred); a shared mutable value is cloned recursively into the
// move heap, then its immutable descendants are also moved rather than
// left referencing the source heap. A later, independent MoveOut call
// (potentially from another instance) completes the handoff.
func MoveIn(v *Variant) *Variant {
	moveHeap.mu.Lock()
	defer moveHeap.mu.Unlock()
	return moveOne(v, globalMoveHeap())
}

// MoveOut is the second, decoupled phase: it relocates v, which must
// currently live in the process-wide move heap, into dest. Symmetric
// with MoveIn but never clones: every variant in the graph, singletons
// rebound, is moved in place and its stats adjusted, regardless of how
// many references it has.
func MoveOut(dest *Heap, v *Variant) *Variant {
	moveHeap.mu.Lock()
	defer moveHeap.mu.Unlock()
	return moveOutOne(v, dest)
}

func moveOne(v *Variant, dest *Heap) *Variant {
	if v == nil {
		return nil
	}
	if v.flags.Has(FlagNoFree) {
		switch v.kind {
		case KindUnitNull:
			return dest.Null()
		case KindUnitUndefined:
			return dest.Undefined()
		case KindBoolean:
			return dest.Bool(v.b)
		}
	}
	if v.refc.Load() == 1 {
		return moveInPlace(v, dest, moveOne)
	}
	return cloneDeep(v, dest, dest.newCloneCache())
}

// moveOutOne implements the move-out algorithm: symmetric to moveOne
// but with no clone branch at all, since the move heap is the sole
// owner of everything parked in it.
func moveOutOne(v *Variant, dest *Heap) *Variant {
	if v == nil {
		return nil
	}
	if v.flags.Has(FlagNoFree) {
		switch v.kind {
		case KindUnitNull:
			return dest.Null()
		case KindUnitUndefined:
			return dest.Undefined()
		case KindBoolean:
			return dest.Bool(v.b)
		}
	}
	return moveInPlace(v, dest, moveOutOne)
}

// moveInPlace reassigns v's heap pointer and transfers its stat
// footprint without allocating a new value, recursing into container
// children via childMove so the whole subtree ends up owned by dest.
// childMove is moveOne for the move-in direction (clones shared
// children) or moveOutOne for the move-out direction (never clones).
func moveInPlace(v *Variant, dest *Heap, childMove func(*Variant, *Heap) *Variant) *Variant {
	src := v.heap
	if src == dest {
		return v
	}
	extra := v.extraSize()
	if src != nil {
		src.accountFree(v.kind, extra)
	}
	dest.accountAlloc(v.kind, extra)
	v.heap = dest
	switch v.kind {
	case KindObject:
		for i, e := range v.obj.entries {
			v.obj.entries[i].val = childMove(e.val, dest)
		}
	case KindArray:
		for i, e := range v.arr.items {
			v.arr.items[i] = childMove(e, dest)
		}
	case KindTuple:
		for i, e := range v.tuple.items {
			v.tuple.items[i] = childMove(e, dest)
		}
	case KindSortedArray:
		for i, e := range v.sorted.items {
			v.sorted.items[i] = childMove(e, dest)
		}
	case KindSet:
		for n := v.set.head; n != nil; n = n.next {
			n.elem = childMove(n.elem, dest)
		}
	}
	return v
}
