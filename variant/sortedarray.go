package variant

import "sort"

// SortedArrayFlag toggles descending order.
type SortedArrayFlag uint8

const (
	SortedAsc SortedArrayFlag = iota
	SortedDesc
)

// sortedArrayData is the ordered collection with a user comparator and
// a unique-or-duplicate policy.
type sortedArrayData struct {
	items   []*Variant
	cmp     func(a, b *Variant) int
	desc    bool
	uniqueK bool
	obs     *observers
}

// MakeSortedArray constructs an empty sorted-array with the given
// comparator, order flag, and uniqueness policy.
func (h *Heap) MakeSortedArray(cmp func(a, b *Variant) int, flag SortedArrayFlag, unique bool) *Variant {
	if cmp == nil {
		cmp = Compare
	}
	v := &Variant{kind: KindSortedArray, heap: h, sorted: &sortedArrayData{
		cmp: cmp, desc: flag == SortedDesc, uniqueK: unique,
	}}
	v.refc.Store(1)
	h.accountAlloc(KindSortedArray, 0)
	return v
}

func (s *sortedArrayData) shallowCloneForTrial() *sortedArrayData {
	return &sortedArrayData{
		items: append([]*Variant(nil), s.items...),
		cmp:   s.cmp, desc: s.desc, uniqueK: s.uniqueK,
	}
}

func (s *sortedArrayData) order(a, b *Variant) int {
	c := s.cmp(a, b)
	if s.desc {
		return -c
	}
	return c
}

func (s *sortedArrayData) search(v *Variant) int {
	return sort.Search(len(s.items), func(i int) bool {
		return s.order(s.items[i], v) >= 0
	})
}

// SortedAdd inserts val keeping sort order; if unique is set and an
// equal element already exists, returns ErrDuplicated.
func (v *Variant) SortedAdd(val *Variant) error {
	if v.kind != KindSortedArray {
		return newErr(ErrWrongKind, "SortedAdd: not a sorted-array")
	}
	s := v.sorted
	i := s.search(val)
	if s.uniqueK && i < len(s.items) && s.order(s.items[i], val) == 0 {
		return newErr(ErrDuplicated, "SortedAdd: duplicate element")
	}
	obs := s.obs
	idxVar := v.heap.MakeLongInt(int64(i))
	defer idxVar.Unref()
	if !obs.firePre(v, OpGrow, idxVar, nil, val) {
		return newErr(ErrInvalidValue, "SortedAdd: pre-observer vetoed")
	}
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = val
	for k := i; k < len(s.items); k++ {
		relinkSortedIndex(v, k)
	}
	val.Ref()
	obs.firePost(v, OpGrow, idxVar, nil, val)
	return nil
}

func relinkSortedIndex(v *Variant, idx int) {
	child := v.sorted.items[idx]
	if child == nil || !child.kind.IsContainer() || child.reverseChain == nil {
		linkChild(child, v, edgeKey{parent: v, idx: int64(idx)})
		return
	}
	for i := range child.reverseChain.edges {
		if child.reverseChain.edges[i].parent == v {
			child.reverseChain.edges[i].key.idx = int64(idx)
		}
	}
	linkChild(child, v, edgeKey{parent: v, idx: int64(idx)})
}

// SortedFind returns the index of the first element equal to val, or
// -1 if absent.
func (v *Variant) SortedFind(val *Variant) int {
	s := v.sorted
	i := s.search(val)
	if i < len(s.items) && s.order(s.items[i], val) == 0 {
		return i
	}
	return -1
}

// SortedRemove removes the first element equal to val.
func (v *Variant) SortedRemove(val *Variant) error {
	i := v.SortedFind(val)
	if i < 0 {
		return newErr(ErrNotFound, "SortedRemove: not found")
	}
	return v.SortedDeleteAt(i)
}

// SortedDeleteAt removes the element at index i, firing SHRINK.
func (v *Variant) SortedDeleteAt(i int) error {
	if v.kind != KindSortedArray {
		return newErr(ErrWrongKind, "SortedDeleteAt: not a sorted-array")
	}
	s := v.sorted
	if i < 0 || i >= len(s.items) {
		return newErr(ErrOutOfRange, "SortedDeleteAt: index out of range")
	}
	obs := s.obs
	old := s.items[i]
	idxVar := v.heap.MakeLongInt(int64(i))
	defer idxVar.Unref()
	if !obs.firePre(v, OpShrink, idxVar, old, nil) {
		return newErr(ErrInvalidValue, "SortedDeleteAt: pre-observer vetoed")
	}
	unlinkChild(old, edgeKey{parent: v, idx: int64(i)})
	s.items = append(s.items[:i], s.items[i+1:]...)
	for k := i; k < len(s.items); k++ {
		relinkSortedIndex(v, k)
	}
	old.Unref()
	obs.firePost(v, OpShrink, idxVar, old, nil)
	return nil
}

// SortedAt returns the element at index i.
func (v *Variant) SortedAt(i int) (*Variant, bool) {
	if v.kind != KindSortedArray || i < 0 || i >= len(v.sorted.items) {
		return nil, false
	}
	return v.sorted.items[i], true
}

func equalsSortedArray(a, b *Variant) bool {
	if len(a.sorted.items) != len(b.sorted.items) {
		return false
	}
	for i := range a.sorted.items {
		if !Equals(a.sorted.items[i], b.sorted.items[i]) {
			return false
		}
	}
	return true
}

func (v *Variant) releaseSortedArray() {
	for i, e := range v.sorted.items {
		unlinkChild(e, edgeKey{parent: v, idx: int64(i)})
		e.Unref()
	}
}
