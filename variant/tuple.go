package variant

// tupleData is the fixed-size sequence container payload: a
// fixed-length sequence supporting get/set/size.
type tupleData struct {
	items []*Variant
	obs   *observers
}

// MakeTuple constructs a tuple whose size is fixed at creation.
func (h *Heap) MakeTuple(items []*Variant) *Variant {
	v := &Variant{kind: KindTuple, heap: h, tuple: &tupleData{items: append([]*Variant(nil), items...)}}
	v.refc.Store(1)
	h.accountAlloc(KindTuple, 0)
	for i, e := range v.tuple.items {
		linkChild(e, v, edgeKey{parent: v, idx: int64(i)})
		e.Ref()
	}
	return v
}

func (t *tupleData) shallowCloneForTrial() *tupleData {
	return &tupleData{items: append([]*Variant(nil), t.items...)}
}

// TupleAt returns element i of a tuple.
func (v *Variant) TupleAt(i int) (*Variant, bool) {
	if v.kind != KindTuple || i < 0 || i >= len(v.tuple.items) {
		return nil, false
	}
	return v.tuple.items[i], true
}

// TupleSetAt replaces element i in place, firing CHANGE. The tuple's
// length never changes.
func (v *Variant) TupleSetAt(i int, val *Variant) error {
	if v.kind != KindTuple {
		return newErr(ErrWrongKind, "TupleSetAt: not a tuple")
	}
	if i < 0 || i >= len(v.tuple.items) {
		return newErr(ErrOutOfRange, "TupleSetAt: index out of range")
	}
	obs := v.tuple.obs
	old := v.tuple.items[i]
	idxVar := v.heap.MakeLongInt(int64(i))
	defer idxVar.Unref()
	if !obs.firePre(v, OpChange, idxVar, old, val) {
		return newErr(ErrInvalidValue, "TupleSetAt: pre-observer vetoed")
	}
	// old may be a scalar with no reverse chain, so also walk up from v
	// itself with a trial copy holding val in place of old.
	trial, _ := rebuildWithSub(v, old, val, v.heap.newRevWalkCache())
	if err := preChangeCheck(v, trial); err != nil {
		return err
	}
	if err := preChangeCheck(old, val); err != nil {
		return err
	}
	ek := edgeKey{parent: v, idx: int64(i)}
	unlinkChild(old, ek)
	v.tuple.items[i] = val
	linkChild(val, v, ek)
	val.Ref()
	old.Unref()
	reindexAfterChange(old, val)
	reindexAfterChange(v, v)
	obs.firePost(v, OpChange, idxVar, old, val)
	return nil
}

func equalsTuple(a, b *Variant) bool {
	if len(a.tuple.items) != len(b.tuple.items) {
		return false
	}
	for i := range a.tuple.items {
		if !Equals(a.tuple.items[i], b.tuple.items[i]) {
			return false
		}
	}
	return true
}

func (v *Variant) releaseTuple() {
	for i, e := range v.tuple.items {
		unlinkChild(e, edgeKey{parent: v, idx: int64(i)})
		e.Unref()
	}
}
