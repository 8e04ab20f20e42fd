package variant

// arrayData is the ordered-sequence container payload.
type arrayData struct {
	items []*Variant
	obs   *observers
}

// MakeArray constructs an array holding initial (each element ref'd),
// refcount 1.
func (h *Heap) MakeArray(initial ...*Variant) *Variant {
	v := &Variant{kind: KindArray, heap: h, arr: &arrayData{}}
	v.refc.Store(1)
	h.accountAlloc(KindArray, 0)
	for _, e := range initial {
		_ = v.Append(e)
	}
	return v
}

func (a *arrayData) shallowCloneForTrial() *arrayData {
	return &arrayData{items: append([]*Variant(nil), a.items...)}
}

// At returns the element at index i, or nil with ok=false if out of range.
func (v *Variant) At(i int) (*Variant, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	if i < 0 || i >= len(v.arr.items) {
		return nil, false
	}
	return v.arr.items[i], true
}

// SetAt replaces the element at an existing index, firing CHANGE.
func (v *Variant) SetAt(i int, val *Variant) error {
	if v.kind != KindArray {
		return newErr(ErrWrongKind, "SetAt: not an array")
	}
	if i < 0 || i >= len(v.arr.items) {
		return newErr(ErrOutOfRange, "SetAt: index out of range")
	}
	obs := v.arr.obs
	old := v.arr.items[i]
	idxVar := v.heap.MakeLongInt(int64(i))
	defer idxVar.Unref()
	if !obs.firePre(v, OpChange, idxVar, old, val) {
		return newErr(ErrInvalidValue, "SetAt: pre-observer vetoed")
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
	v.arr.items[i] = val
	linkChild(val, v, ek)
	val.Ref()
	old.Unref()
	reindexAfterChange(old, val)
	reindexAfterChange(v, v)
	obs.firePost(v, OpChange, idxVar, old, val)
	return nil
}

// InsertBefore inserts val so it becomes index i; valid for i in [0,len].
func (v *Variant) InsertBefore(i int, val *Variant) error {
	if v.kind != KindArray {
		return newErr(ErrWrongKind, "InsertBefore: not an array")
	}
	if i < 0 || i > len(v.arr.items) {
		return newErr(ErrOutOfRange, "InsertBefore: index out of range")
	}
	return v.insertAt(i, val)
}

// InsertAfter inserts val so it becomes index i+1; valid for i in [-1,len-1].
func (v *Variant) InsertAfter(i int, val *Variant) error {
	if v.kind != KindArray {
		return newErr(ErrWrongKind, "InsertAfter: not an array")
	}
	if i < -1 || i > len(v.arr.items)-1 {
		return newErr(ErrOutOfRange, "InsertAfter: index out of range")
	}
	return v.insertAt(i+1, val)
}

func (v *Variant) insertAt(i int, val *Variant) error {
	obs := v.arr.obs
	idxVar := v.heap.MakeLongInt(int64(i))
	defer idxVar.Unref()
	if !obs.firePre(v, OpGrow, idxVar, nil, val) {
		return newErr(ErrInvalidValue, "insert: pre-observer vetoed")
	}
	v.arr.items = append(v.arr.items, nil)
	copy(v.arr.items[i+1:], v.arr.items[i:])
	v.arr.items[i] = val
	for k := i; k < len(v.arr.items); k++ {
		relinkArrayIndex(v, k)
	}
	val.Ref()
	obs.firePost(v, OpGrow, idxVar, nil, val)
	return nil
}

func relinkArrayIndex(v *Variant, idx int) {
	child := v.arr.items[idx]
	if child == nil || !child.kind.IsContainer() || child.reverseChain == nil {
		linkChild(child, v, edgeKey{parent: v, idx: int64(idx)})
		return
	}
	// Index shifted: repoint any stale edge at this parent onto idx.
	for i := range child.reverseChain.edges {
		if child.reverseChain.edges[i].parent == v {
			child.reverseChain.edges[i].key.idx = int64(idx)
		}
	}
	linkChild(child, v, edgeKey{parent: v, idx: int64(idx)})
}

// Append is insert_before(len).
func (v *Variant) Append(val *Variant) error {
	return v.InsertBefore(len(v.arr.items), val)
}

// Prepend is insert_before(0).
func (v *Variant) Prepend(val *Variant) error {
	return v.InsertBefore(0, val)
}

// RemoveAt removes the element at index i, firing SHRINK.
func (v *Variant) RemoveAt(i int) error {
	if v.kind != KindArray {
		return newErr(ErrWrongKind, "RemoveAt: not an array")
	}
	if i < 0 || i >= len(v.arr.items) {
		return newErr(ErrOutOfRange, "RemoveAt: index out of range")
	}
	obs := v.arr.obs
	old := v.arr.items[i]
	idxVar := v.heap.MakeLongInt(int64(i))
	defer idxVar.Unref()
	if !obs.firePre(v, OpShrink, idxVar, old, nil) {
		return newErr(ErrInvalidValue, "RemoveAt: pre-observer vetoed")
	}
	unlinkChild(old, edgeKey{parent: v, idx: int64(i)})
	v.arr.items = append(v.arr.items[:i], v.arr.items[i+1:]...)
	for k := i; k < len(v.arr.items); k++ {
		relinkArrayIndex(v, k)
	}
	old.Unref()
	obs.firePost(v, OpShrink, idxVar, old, nil)
	return nil
}

// Sort permutes the array in place per cmp; relative order among equal
// elements is unspecified.
func (v *Variant) Sort(cmp func(a, b *Variant) int) error {
	if v.kind != KindArray {
		return newErr(ErrWrongKind, "Sort: not an array")
	}
	items := v.arr.items
	// simple insertion sort keeps the implementation independent of the
	// stdlib sort package's stability guarantees, which are not required
	// here.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && cmp(items[j-1], items[j]) > 0; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
	for k := range items {
		relinkArrayIndex(v, k)
	}
	return nil
}

func equalsArray(a, b *Variant) bool {
	if len(a.arr.items) != len(b.arr.items) {
		return false
	}
	for i := range a.arr.items {
		if !Equals(a.arr.items[i], b.arr.items[i]) {
			return false
		}
	}
	return true
}

func (v *Variant) releaseArray() {
	for i, e := range v.arr.items {
		unlinkChild(e, edgeKey{parent: v, idx: int64(i)})
		e.Unref()
	}
}
