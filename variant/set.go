package variant

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/btree"
)

// setNode wraps one element of a set together with its fingerprint.
// The tree view orders nodes by fingerprint hash
// (ties broken by pointer identity, duplicates resolved by deep
// Equals on the projected key); the insertion-order list is a
// doubly-linked chain of the same nodes.
type setNode struct {
	elem   *Variant
	fp     uint64
	fpKey  *Variant // the projected key (or elem itself, keyed-by-self)
	prev   *setNode
	next   *setNode
}

func nodeLess(a, b *setNode) bool {
	if a.fp != b.fp {
		return a.fp < b.fp
	}
	if a == b {
		return false
	}
	// Equal hash: break ties by pointer identity so distinct nodes
	// with a colliding hash still get a strict total order in the
	// tree; duplicate detection itself uses Equals, not this order.
	return uintptrOf(a.elem) < uintptrOf(b.elem)
}

// setData is the unique-by-fingerprint collection payload.
type setData struct {
	heap    *Heap
	keySpec []string // nil => keyed-by-self
	tree    *btree.BTreeG[*setNode]
	byElem  map[*Variant]*setNode
	head    *setNode
	tail    *setNode
	n       int
	obs     *observers
}

// MakeSet constructs an empty set. keySpec nil means keyed-by-self;
// otherwise every added element must be an object carrying all named
// fields.
func (h *Heap) MakeSet(keySpec []string) (*Variant, error) {
	for _, f := range keySpec {
		_ = f
	}
	sd := &setData{
		heap:    h,
		keySpec: append([]string(nil), keySpec...),
		tree:    btree.NewG(32, nodeLess),
		byElem:  make(map[*Variant]*setNode),
	}
	v := &Variant{kind: KindSet, heap: h, set: sd}
	v.refc.Store(1)
	h.accountAlloc(KindSet, 0)
	return v, nil
}

func (s *setData) size() int { return s.n }

// fingerprint computes the projected key and its hash for elem,
// rejecting any projection whose extracted key value is itself a
// mutable container.
func (s *setData) fingerprint(elem *Variant) (*Variant, uint64, error) {
	if s.keySpec == nil {
		if elem.kind.IsContainer() {
			// keyed-by-self over a mutable container is the common
			// case for nested sets-of-objects-as-elements; fingerprint
			// is simply deep-hash of the element.
		}
		return elem, hashVariant(elem), nil
	}
	if elem.kind != KindObject {
		return nil, 0, newErr(ErrWrongKind, "fingerprint: key-spec requires object elements")
	}
	fields := make([]*Variant, 0, len(s.keySpec))
	for _, f := range s.keySpec {
		fv, ok := elem.Get(f)
		if !ok {
			return nil, 0, newErr(ErrInvalidValue, "fingerprint: missing key field "+f)
		}
		if fv.kind.IsContainer() {
			return nil, 0, newErr(ErrInvalidValue, "fingerprint: key field must not be a mutable container")
		}
		fields = append(fields, fv)
	}
	composite := s.heap.MakeTuple(fields)
	h := hashVariant(composite)
	return composite, h, nil
}

func hashVariant(v *Variant) uint64 {
	d := xxhash.New()
	writeHash(d, v)
	return d.Sum64()
}

func writeHash(d *xxhash.Digest, v *Variant) {
	if v == nil {
		d.Write([]byte{0xff})
		return
	}
	_ = d
	var buf [9]byte
	buf[0] = byte(v.kind)
	switch v.kind {
	case KindUnitNull, KindUnitUndefined:
		d.Write(buf[:1])
	case KindBoolean:
		if v.b {
			buf[1] = 1
		}
		d.Write(buf[:2])
	case KindNumber:
		putU64(buf[1:], f64bits(v.f64))
		d.Write(buf[:9])
	case KindLongInt:
		putU64(buf[1:], uint64(v.i64))
		d.Write(buf[:9])
	case KindULongInt:
		putU64(buf[1:], v.u64)
		d.Write(buf[:9])
	case KindLongDouble:
		putU64(buf[1:], f64bits(v.ld.hi))
		d.Write(buf[:9])
	case KindAtomString:
		d.Write(buf[:1])
		d.Write([]byte(v.atom.text))
	case KindException:
		d.Write(buf[:1])
		d.Write([]byte(v.atom.text))
	case KindString:
		d.Write(buf[:1])
		d.Write([]byte(v.str.text()))
	case KindByteSequence:
		d.Write(buf[:1])
		d.Write(v.bs.bytes())
	case KindBigint:
		d.Write(buf[:1])
		d.Write(v.big.Bytes())
	case KindObject:
		d.Write(buf[:1])
		for _, e := range v.obj.entries {
			d.Write([]byte(e.key))
			writeHash(d, e.val)
		}
	case KindArray:
		d.Write(buf[:1])
		for _, e := range v.arr.items {
			writeHash(d, e)
		}
	case KindTuple:
		d.Write(buf[:1])
		for _, e := range v.tuple.items {
			writeHash(d, e)
		}
	case KindSet:
		d.Write(buf[:1])
		for n := v.set.head; n != nil; n = n.next {
			writeHash(d, n.elem)
		}
	case KindSortedArray:
		d.Write(buf[:1])
		for _, e := range v.sorted.items {
			writeHash(d, e)
		}
	default:
		d.Write(buf[:1])
	}
}

func putU64(b []byte, u uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func f64bits(f float64) uint64 {
	return float64bitsImpl(f)
}

// SetAdd inserts val, keyed per the set's key-spec. If a colliding
// fingerprint already exists: overwrite=false fails with ErrDuplicated;
// overwrite=true replaces it and fires CHANGE; otherwise inserts and
// fires GROW.
func (v *Variant) SetAdd(val *Variant, overwrite bool) error {
	if v.kind != KindSet {
		return newErr(ErrWrongKind, "SetAdd: not a set")
	}
	s := v.set
	key, fp, err := s.fingerprint(val)
	if err != nil {
		return err
	}
	if existing := s.findByFP(fp, key); existing != nil {
		if !overwrite {
			return newErr(ErrDuplicated, "SetAdd: duplicate fingerprint")
		}
		obs := s.obs
		if !obs.firePre(v, OpChange, key, existing.elem, val) {
			return newErr(ErrInvalidValue, "SetAdd: pre-observer vetoed")
		}
		if err := preChangeCheck(existing.elem, val); err != nil {
			return err
		}
		s.tree.Delete(existing)
		unlinkChild(existing.elem, edgeKey{parent: v, node: existing.elem})
		old := existing.elem
		existing.elem = val
		existing.fp = fp
		existing.fpKey = key
		s.tree.ReplaceOrInsert(existing)
		delete(s.byElem, old)
		s.byElem[val] = existing
		linkChild(val, v, edgeKey{parent: v, node: val})
		val.Ref()
		old.Unref()
		reindexAfterChange(old, val)
		obs.firePost(v, OpChange, key, old, val)
		return nil
	}
	obs := s.obs
	if !obs.firePre(v, OpGrow, key, nil, val) {
		return newErr(ErrInvalidValue, "SetAdd: pre-observer vetoed")
	}
	node := &setNode{elem: val, fp: fp, fpKey: key}
	s.tree.ReplaceOrInsert(node)
	s.byElem[val] = node
	s.linkTail(node)
	linkChild(val, v, edgeKey{parent: v, node: val})
	val.Ref()
	s.n++
	obs.firePost(v, OpGrow, key, nil, val)
	return nil
}

func (s *setData) findByFP(fp uint64, key *Variant) *setNode {
	var found *setNode
	s.tree.AscendGreaterOrEqual(&setNode{fp: fp}, func(item *setNode) bool {
		if item.fp != fp {
			return false
		}
		if Equals(item.fpKey, key) {
			found = item
			return false
		}
		return true
	})
	return found
}

func (s *setData) linkTail(node *setNode) {
	if s.tail == nil {
		s.head, s.tail = node, node
		return
	}
	s.tail.next = node
	node.prev = s.tail
	s.tail = node
}

func (s *setData) unlink(node *setNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		s.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		s.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

// SetRemove deletes the element whose fingerprint matches val.
func (v *Variant) SetRemove(val *Variant) error {
	if v.kind != KindSet {
		return newErr(ErrWrongKind, "SetRemove: not a set")
	}
	s := v.set
	key, fp, err := s.fingerprint(val)
	if err != nil {
		return err
	}
	node := s.findByFP(fp, key)
	if node == nil {
		return newErr(ErrNotFound, "SetRemove: not found")
	}
	return s.removeNode(v, node)
}

func (s *setData) removeNode(v *Variant, node *setNode) error {
	obs := s.obs
	if !obs.firePre(v, OpShrink, node.fpKey, node.elem, nil) {
		return newErr(ErrInvalidValue, "SetRemove: pre-observer vetoed")
	}
	s.tree.Delete(node)
	delete(s.byElem, node.elem)
	s.unlink(node)
	unlinkChild(node.elem, edgeKey{parent: v, node: node.elem})
	elem := node.elem
	s.n--
	elem.Unref()
	obs.firePost(v, OpShrink, node.fpKey, elem, nil)
	return nil
}

// SetContains reports whether val's fingerprint is present.
func (v *Variant) SetContains(val *Variant) bool {
	s := v.set
	key, fp, err := s.fingerprint(val)
	if err != nil {
		return false
	}
	return s.findByFP(fp, key) != nil
}

// SetOrderedIterate visits elements in fingerprint-tree order.
func (v *Variant) SetOrderedIterate(fn func(elem *Variant) bool) {
	v.set.tree.Ascend(func(item *setNode) bool {
		return fn(item.elem)
	})
}

// SetInsertionIterate visits elements in insertion order (the
// secondary iterator).
func (v *Variant) SetInsertionIterate(fn func(elem *Variant) bool) {
	for n := v.set.head; n != nil; n = n.next {
		if !fn(n.elem) {
			return
		}
	}
}

// reindexElement is called by reindexAfterChange after a descendant
// mutation commits: delete and reinsert the moved node so the tree
// reflects its new fingerprint, preserving the insertion-order list.
func (s *setData) reindexElement(elem *Variant) {
	node, ok := s.byElem[elem]
	if !ok {
		return
	}
	key, fp, err := s.fingerprint(elem)
	if err != nil {
		return
	}
	s.tree.Delete(node)
	node.fp = fp
	node.fpKey = key
	s.tree.ReplaceOrInsert(node)
}

// trialSubstituteSetElement implements the Set branch of
// rebuildWithSub: o is the set element being replaced by n; this
// checks whether n's fingerprint would collide with any *other*
// element already in the set.
func trialSubstituteSetElement(set *Variant, old, new *Variant) (*Variant, error) {
	s := set.set
	key, fp, err := s.fingerprint(new)
	if err != nil {
		return nil, err
	}
	if existing := s.findByFP(fp, key); existing != nil && existing.elem != old {
		return nil, errDuplicateFingerprint
	}
	return set, nil
}

func equalsSet(a, b *Variant) bool {
	if a.set.n != b.set.n {
		return false
	}
	ok := true
	a.SetInsertionIterate(func(elem *Variant) bool {
		if !b.SetContains(elem) {
			ok = false
			return false
		}
		return true
	})
	return ok
}

func (v *Variant) releaseSet() {
	for n := v.set.head; n != nil; {
		next := n.next
		unlinkChild(n.elem, edgeKey{parent: v, node: n.elem})
		n.elem.Unref()
		n = next
	}
}

// --- set algebra: unite/intersect/subtract/xor/overwrite ---

// SetUnite adds every element of other not already present.
func (v *Variant) SetUnite(other *Variant) error {
	var err error
	other.SetInsertionIterate(func(elem *Variant) bool {
		if !v.SetContains(elem) {
			if e := v.SetAdd(elem, false); e != nil {
				err = e
				return false
			}
		}
		return true
	})
	return err
}

// SetIntersect removes every element of v not present in other.
func (v *Variant) SetIntersect(other *Variant) error {
	var toRemove []*Variant
	v.SetInsertionIterate(func(elem *Variant) bool {
		if !other.SetContains(elem) {
			toRemove = append(toRemove, elem)
		}
		return true
	})
	for _, e := range toRemove {
		if err := v.SetRemove(e); err != nil {
			return err
		}
	}
	return nil
}

// SetSubtract removes every element of v that is present in other.
func (v *Variant) SetSubtract(other *Variant) error {
	var toRemove []*Variant
	v.SetInsertionIterate(func(elem *Variant) bool {
		if other.SetContains(elem) {
			toRemove = append(toRemove, elem)
		}
		return true
	})
	for _, e := range toRemove {
		if err := v.SetRemove(e); err != nil {
			return err
		}
	}
	return nil
}

// SetXor keeps elements present in exactly one of v, other.
func (v *Variant) SetXor(other *Variant) error {
	var toRemove, toAdd []*Variant
	v.SetInsertionIterate(func(elem *Variant) bool {
		if other.SetContains(elem) {
			toRemove = append(toRemove, elem)
		}
		return true
	})
	other.SetInsertionIterate(func(elem *Variant) bool {
		if !v.SetContains(elem) {
			toAdd = append(toAdd, elem)
		}
		return true
	})
	for _, e := range toRemove {
		if err := v.SetRemove(e); err != nil {
			return err
		}
	}
	for _, e := range toAdd {
		if err := v.SetAdd(e, false); err != nil {
			return err
		}
	}
	return nil
}

// SetOverwrite replaces every colliding element of v with other's
// version and adds any new ones (overwrite semantics for all of other).
func (v *Variant) SetOverwrite(other *Variant) error {
	var err error
	other.SetInsertionIterate(func(elem *Variant) bool {
		if e := v.SetAdd(elem, true); e != nil {
			err = e
			return false
		}
		return true
	})
	return err
}
