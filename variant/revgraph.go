package variant

import lru "github.com/hashicorp/golang-lru/v2"

// revEdge is one (edge identity -> parent) pair recorded on a child's
// reverse-update chain.
type revEdge struct {
	key    edgeKey
	parent *Variant
}

// revChain is the ordered map a mutable container owns from edge
// identity to parent container. Implemented as a small slice: reverse
// chains are expected to stay short (a value is rarely aliased into
// more than a handful of parents).
type revChain struct {
	edges []revEdge
}

func (c *revChain) insert(key edgeKey, parent *Variant) {
	for i := range c.edges {
		if c.edges[i].key == key {
			c.edges[i].parent = parent
			return
		}
	}
	c.edges = append(c.edges, revEdge{key: key, parent: parent})
}

func (c *revChain) remove(key edgeKey) {
	for i := range c.edges {
		if c.edges[i].key == key {
			c.edges = append(c.edges[:i], c.edges[i+1:]...)
			return
		}
	}
}

// uniqueParents returns the distinct parent containers reachable
// through this chain, identity-keyed (address-indexed, not
// value-indexed, to avoid infinite recursion on DAGs with repeated
// parents).
func (c *revChain) uniqueParents() []*Variant {
	if c == nil || len(c.edges) == 0 {
		return nil
	}
	seen := make(map[*Variant]bool, len(c.edges))
	out := make([]*Variant, 0, len(c.edges))
	for _, e := range c.edges {
		if !seen[e.parent] {
			seen[e.parent] = true
			out = append(out, e.parent)
		}
	}
	return out
}

// linkChild records that child is now reachable from parent at key: on
// insert-or-replace of a container-typed child c into parent p at
// position x, (x, p) is inserted into c's chain. Immutable children
// never get a chain.
func linkChild(child *Variant, parent *Variant, key edgeKey) {
	if child == nil || !child.kind.IsContainer() {
		return
	}
	if child.reverseChain == nil {
		child.reverseChain = &revChain{}
	}
	child.reverseChain.insert(key, parent)
}

// unlinkChild erases the (key -> parent) edge from child's chain,
// performed before a remove/replace commits.
func unlinkChild(child *Variant, key edgeKey) {
	if child == nil || child.reverseChain == nil {
		return
	}
	child.reverseChain.remove(key)
}

// errDuplicateFingerprint is the sentinel returned internally by the
// triple-map walk when a reachable set ancestor would see a collision.
var errDuplicateFingerprint = newErr(ErrDuplicated, "reverse-update: would create duplicate fingerprint")

// preChangeCheck implements the pre-change reverse check: before
// committing a mutation that replaces oldChild with newChild
// inside some container (already identified by the caller), walk every
// transitively reachable ancestor and refuse if any reachable Set
// ancestor would see a duplicate fingerprint under the trial
// substitution. It is the input/cache/output frontier algorithm.
//
// Returns nil if the mutation may proceed. The caller is responsible
// for actually swapping oldChild for newChild and then calling
// reindexAfterChange to fix up affected sets.
func preChangeCheck(oldChild, newChild *Variant) error {
	if oldChild == nil || oldChild.reverseChain == nil {
		return nil
	}
	cache := oldChild.heap.newRevWalkCache()
	cache.Add(oldChild, newChild)
	input := map[*Variant]*Variant{oldChild: newChild}

	for len(input) > 0 {
		output := make(map[*Variant]*Variant)
		for o, n := range input {
			parents := parentsOf(o)
			for _, p := range parents {
				pn, err := rebuildWithSub(p, o, n, cache)
				if err != nil {
					return err
				}
				output[p] = pn
				cache.Add(p, pn)
			}
		}
		input = output
	}
	return nil
}

func parentsOf(v *Variant) []*Variant {
	if v == nil || v.reverseChain == nil {
		return nil
	}
	return v.reverseChain.uniqueParents()
}

// rebuildWithSub returns a trial rebuild of v with the single edge
// (v's child == old) replaced by new, reusing cache (identity-keyed by
// node) for already-visited nodes so shared substructure is only
// rebuilt once. When v is a Set, the trial rebuild also
// performs the uniqueness check for the set's own fingerprint space and
// returns errDuplicateFingerprint if the substitution would collide.
func rebuildWithSub(v *Variant, old, new *Variant, cache *lru.Cache[*Variant, *Variant]) (*Variant, error) {
	if nv, ok := cache.Get(v); ok {
		return nv, nil
	}
	switch v.kind {
	case KindObject:
		trial := &Variant{kind: KindObject, heap: v.heap, obj: v.obj.shallowCloneForTrial()}
		trial.refc.Store(1)
		for i, e := range trial.obj.entries {
			if e.val == old {
				trial.obj.entries[i].val = new
			}
		}
		return trial, nil
	case KindArray:
		trial := &Variant{kind: KindArray, heap: v.heap, arr: v.arr.shallowCloneForTrial()}
		trial.refc.Store(1)
		for i, e := range trial.arr.items {
			if e == old {
				trial.arr.items[i] = new
			}
		}
		return trial, nil
	case KindTuple:
		trial := &Variant{kind: KindTuple, heap: v.heap, tuple: v.tuple.shallowCloneForTrial()}
		trial.refc.Store(1)
		for i, e := range trial.tuple.items {
			if e == old {
				trial.tuple.items[i] = new
			}
		}
		return trial, nil
	case KindSortedArray:
		trial := &Variant{kind: KindSortedArray, heap: v.heap, sorted: v.sorted.shallowCloneForTrial()}
		trial.refc.Store(1)
		for i, e := range trial.sorted.items {
			if e == old {
				trial.sorted.items[i] = new
			}
		}
		return trial, nil
	case KindSet:
		return trialSubstituteSetElement(v, old, new)
	default:
		return v, nil
	}
}

// reindexAfterChange is the post-commit counterpart of preChangeCheck:
// walk the same ancestor frontier (now against the real, already-
// installed values) and, for every reachable Set, delete and reinsert
// the moved node so its tree view stays ordered by the new fingerprint
// while its insertion-order list is untouched.
func reindexAfterChange(oldChild, newChild *Variant) {
	if newChild == nil {
		return
	}
	visited := map[*Variant]bool{}
	frontier := []*Variant{newChild}
	for len(frontier) > 0 {
		var next []*Variant
		for _, n := range frontier {
			for _, p := range parentsOf(n) {
				if visited[p] {
					continue
				}
				visited[p] = true
				if p.kind == KindSet {
					p.set.reindexElement(n)
				}
				next = append(next, p)
			}
		}
		frontier = next
	}
}
