package variant

// objEntry is one key/value pair of an object, in insertion order.
type objEntry struct {
	key string
	val *Variant
}

// objectData is the mapping container payload. Keys are unique
// strings; insertion order is preserved and iterable both ways.
type objectData struct {
	entries []objEntry
	index   map[string]int // key -> index into entries
	obs     *observers
}

// MakeObject constructs an empty object, refcount 1.
func (h *Heap) MakeObject() *Variant {
	v := &Variant{kind: KindObject, heap: h, obj: &objectData{index: make(map[string]int)}}
	v.refc.Store(1)
	h.accountAlloc(KindObject, 0)
	return v
}

func (o *objectData) shallowCloneForTrial() *objectData {
	// Keys keep their positions in a trial, so the key index is shared.
	nd := &objectData{entries: append([]objEntry(nil), o.entries...), index: o.index}
	return nd
}

// Size returns the number of entries of a container (key/value pairs
// for an object, elements otherwise), or 0 for a scalar.
func (v *Variant) Size() int {
	switch v.kind {
	case KindObject:
		return len(v.obj.entries)
	case KindArray:
		return len(v.arr.items)
	case KindSet:
		return v.set.size()
	case KindTuple:
		return len(v.tuple.items)
	case KindSortedArray:
		return len(v.sorted.items)
	default:
		return 0
	}
}

// Get looks up key in an object; ok is false when absent.
func (v *Variant) Get(key string) (val *Variant, ok bool) {
	if v.kind != KindObject {
		return nil, false
	}
	i, found := v.obj.index[key]
	if !found {
		return nil, false
	}
	return v.obj.entries[i].val, true
}

// Set installs or replaces key with value. Replacing fires CHANGE;
// inserting fires GROW. Reverse-update edges are
// maintained: the outgoing value's edge is broken first, then the
// incoming value's edge is recorded.
func (v *Variant) Set(key string, val *Variant) error {
	if v.kind != KindObject {
		return newErr(ErrWrongKind, "Set: not an object")
	}
	if val == nil {
		return newErr(ErrInvalidValue, "Set: nil value")
	}
	obs := v.obj.obs
	keyVar := v.heap.MakeString(key)
	defer keyVar.Unref()
	if i, found := v.obj.index[key]; found {
		old := v.obj.entries[i].val
		if old == val {
			return nil
		}
		if !obs.firePre(v, OpChange, keyVar, old, val) {
			return newErr(ErrInvalidValue, "Set: pre-observer vetoed change")
		}
		// old may be a scalar with no reverse chain, so also walk up
		// from v itself with a trial copy holding val in place of old.
		trial, _ := rebuildWithSub(v, old, val, v.heap.newRevWalkCache())
		if err := preChangeCheck(v, trial); err != nil {
			return err
		}
		if err := preChangeCheck(old, val); err != nil {
			return err
		}
		ek := edgeKey{parent: v, strKey: key}
		unlinkChild(old, ek)
		v.obj.entries[i].val = val
		linkChild(val, v, ek)
		old.Unref()
		val.Ref()
		reindexAfterChange(old, val)
		reindexAfterChange(v, v)
		obs.firePost(v, OpChange, keyVar, old, val)
		return nil
	}
	if !obs.firePre(v, OpGrow, keyVar, nil, val) {
		return newErr(ErrInvalidValue, "Set: pre-observer vetoed grow")
	}
	v.obj.index[key] = len(v.obj.entries)
	v.obj.entries = append(v.obj.entries, objEntry{key: key, val: val})
	linkChild(val, v, edgeKey{parent: v, strKey: key})
	val.Ref()
	obs.firePost(v, OpGrow, keyVar, nil, val)
	return nil
}

// Remove deletes key, firing SHRINK. Returns ErrNotFound if absent.
func (v *Variant) Remove(key string) error {
	if v.kind != KindObject {
		return newErr(ErrWrongKind, "Remove: not an object")
	}
	i, found := v.obj.index[key]
	if !found {
		return newErr(ErrNotFound, "Remove: key not found")
	}
	obs := v.obj.obs
	keyVar := v.heap.MakeString(key)
	defer keyVar.Unref()
	old := v.obj.entries[i].val
	if !obs.firePre(v, OpShrink, keyVar, old, nil) {
		return newErr(ErrInvalidValue, "Remove: pre-observer vetoed")
	}
	unlinkChild(old, edgeKey{parent: v, strKey: key})
	v.obj.entries = append(v.obj.entries[:i], v.obj.entries[i+1:]...)
	delete(v.obj.index, key)
	for k := i; k < len(v.obj.entries); k++ {
		v.obj.index[v.obj.entries[k].key] = k
	}
	old.Unref()
	obs.firePost(v, OpShrink, keyVar, old, nil)
	return nil
}

// Merge copies every key/value pair of other into v, replacing
// conflicting keys.
func (v *Variant) Merge(other *Variant) error {
	if v.kind != KindObject || other.kind != KindObject {
		return newErr(ErrWrongKind, "Merge: not an object")
	}
	for _, e := range other.obj.entries {
		if err := v.Set(e.key, e.val); err != nil {
			return err
		}
	}
	return nil
}

// ForwardKeys / BackwardKeys return object keys in insertion order (and
// reverse).
func (v *Variant) ForwardKeys() []string {
	ks := make([]string, len(v.obj.entries))
	for i, e := range v.obj.entries {
		ks[i] = e.key
	}
	return ks
}

func (v *Variant) BackwardKeys() []string {
	fwd := v.ForwardKeys()
	out := make([]string, len(fwd))
	for i, k := range fwd {
		out[len(fwd)-1-i] = k
	}
	return out
}

func equalsObject(a, b *Variant) bool {
	if len(a.obj.entries) != len(b.obj.entries) {
		return false
	}
	for _, e := range a.obj.entries {
		bv, ok := b.Get(e.key)
		if !ok || !Equals(e.val, bv) {
			return false
		}
	}
	return true
}

func (v *Variant) releaseObject() {
	for _, e := range v.obj.entries {
		unlinkChild(e.val, edgeKey{parent: v, strKey: e.key})
		e.val.Unref()
	}
}
