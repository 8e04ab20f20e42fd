package variant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/variant"
)

func TestCloneShallowSharesNoMutation(t *testing.T) {
	h := variant.NewHeap()
	child := h.MakeNumber(1)
	arr := h.MakeArray(child)
	defer arr.Unref()

	clone := variant.CloneShallow(arr)
	defer clone.Unref()

	require.NoError(t, clone.Append(h.MakeNumber(2)))
	assert.Equal(t, 1, arr.Size())
	assert.Equal(t, 2, clone.Size())
}

func TestCloneDeepPreservesSharedSubstructure(t *testing.T) {
	h := variant.NewHeap()
	shared := h.MakeObject()
	require.NoError(t, shared.Set("v", h.MakeNumber(1)))

	arr := h.MakeArray(shared, shared)
	defer arr.Unref()

	dest := variant.NewHeap()
	clone := variant.CloneDeep(arr, dest)
	defer clone.Unref()

	e0, _ := clone.At(0)
	e1, _ := clone.At(1)
	assert.Same(t, e0, e1, "two references to the same shared object should clone to one shared clone")
	assert.Equal(t, dest, e0.Heap())
}

func TestCloneDeepTuple(t *testing.T) {
	h := variant.NewHeap()
	tup := h.MakeTuple([]*variant.Variant{h.MakeNumber(1), h.MakeNumber(2)})
	defer tup.Unref()

	dest := variant.NewHeap()
	clone := variant.CloneDeep(tup, dest)
	defer clone.Unref()

	v0, _ := clone.TupleAt(0)
	v1, _ := clone.TupleAt(1)
	assert.Equal(t, float64(1), v0.AsNumber())
	assert.Equal(t, float64(2), v1.AsNumber())
	assert.Equal(t, dest, clone.Heap())
}

func TestMoveInUniquelyOwnedMovesInPlace(t *testing.T) {
	src := variant.NewHeap()

	obj := src.MakeObject()
	require.NoError(t, obj.Set("x", src.MakeNumber(1)))
	require.EqualValues(t, 1, obj.Refcount())

	parked := variant.MoveIn(obj)
	assert.Same(t, obj, parked, "uniquely-owned value should move in place, not clone")
	assert.NotEqual(t, src, parked.Heap(), "parked value must leave the source heap")
	parked.Unref()
}

func TestMoveInSharedValueClones(t *testing.T) {
	src := variant.NewHeap()

	obj := src.MakeObject()
	obj.Ref() // refcount 2: shared
	defer obj.Unref()

	parked := variant.MoveIn(obj)
	defer parked.Unref()
	assert.NotSame(t, obj, parked)
	assert.NotEqual(t, src, parked.Heap())
	assert.Equal(t, src, obj.Heap())
}

func TestMoveOutNeverClonesEvenWhenShared(t *testing.T) {
	src := variant.NewHeap()
	dest := variant.NewHeap()

	obj := src.MakeObject()
	require.NoError(t, obj.Set("x", src.MakeNumber(1)))

	parked := variant.MoveIn(obj)
	parked.Ref() // refcount 2 while parked in the move heap
	defer parked.Unref()

	moved := variant.MoveOut(dest, parked)
	assert.Same(t, parked, moved, "move-out must relocate in place, never clone")
	assert.Equal(t, dest, moved.Heap())
}

func TestMoveRoundTripBetweenTwoInstancesViaMoveHeap(t *testing.T) {
	instanceA := variant.NewHeap()
	instanceB := variant.NewHeap()

	original := instanceA.MakeObject()
	require.NoError(t, original.Set("a", instanceA.MakeNumber(1)))
	arr := instanceA.MakeArray(instanceA.MakeNumber(2))
	require.NoError(t, original.Set("b", arr))
	arr.Unref()

	// Phase 1, from instance A: park the value in the shared move heap.
	// This call is fully decoupled from the MoveOut call below — no
	// direct reference between the two instances is ever formed.
	parked := variant.MoveIn(original)

	// Phase 2, from instance B, independently: retrieve it.
	inB := variant.MoveOut(instanceB, parked)
	assert.Equal(t, instanceB, inB.Heap())
	bVal, ok := inB.Get("a")
	require.True(t, ok)
	assert.Equal(t, float64(1), bVal.AsNumber())

	// Move back to A and confirm equality survives the round trip.
	parkedAgain := variant.MoveIn(inB)
	backInA := variant.MoveOut(instanceA, parkedAgain)
	assert.Equal(t, instanceA, backInA.Heap())
	aVal, ok := backInA.Get("a")
	require.True(t, ok)
	assert.Equal(t, float64(1), aVal.AsNumber())
	backInA.Unref()
}

func TestMoveSingletonRebindsToDestHeap(t *testing.T) {
	src := variant.NewHeap()
	dest := variant.NewHeap()

	n := src.Null()
	parked := variant.MoveIn(n)
	moved := variant.MoveOut(dest, parked)
	assert.Same(t, dest.Null(), moved)
}
