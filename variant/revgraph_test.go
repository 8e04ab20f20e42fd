package variant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/variant"
)

// TestReverseUpdateVetoesAncestorSetCollision exercises the pre-change
// reverse check: mutating a deeply nested value that would make its
// content collide with another element already present in an ancestor
// Set must be refused, leaving every container untouched.
func TestReverseUpdateVetoesAncestorSetCollision(t *testing.T) {
	h := variant.NewHeap()
	s, err := h.MakeSet(nil)
	require.NoError(t, err)
	defer s.Unref()

	obj1 := h.MakeObject()
	require.NoError(t, obj1.Set("v", h.MakeNumber(1)))
	obj2 := h.MakeObject()
	require.NoError(t, obj2.Set("v", h.MakeNumber(2)))

	require.NoError(t, s.SetAdd(obj1, false))
	require.NoError(t, s.SetAdd(obj2, false))

	err = obj1.Set("v", h.MakeNumber(2))
	require.Error(t, err, "mutating obj1 to duplicate obj2's content inside the set must be vetoed")

	v, _ := obj1.Get("v")
	assert.Equal(t, float64(1), v.AsNumber(), "obj1 must be unchanged after a vetoed mutation")
	assert.Equal(t, 2, s.Size())
}

// TestReverseUpdateReindexesAncestorSet exercises the post-commit
// reindex: a non-colliding mutation of a nested value is allowed to
// commit, and the ancestor Set's fingerprint view reflects the new
// content afterwards.
func TestReverseUpdateReindexesAncestorSet(t *testing.T) {
	h := variant.NewHeap()
	s, err := h.MakeSet(nil)
	require.NoError(t, err)
	defer s.Unref()

	obj1 := h.MakeObject()
	require.NoError(t, obj1.Set("v", h.MakeNumber(1)))
	require.NoError(t, s.SetAdd(obj1, false))

	require.NoError(t, obj1.Set("v", h.MakeNumber(99)))

	v, _ := obj1.Get("v")
	assert.Equal(t, float64(99), v.AsNumber())
	assert.Equal(t, 1, s.Size())
	assert.True(t, s.SetContains(obj1))
}

// TestReverseUpdatePropagatesThroughArray mirrors the same check
// through an Array ancestor that holds a Set further up the chain.
func TestReverseUpdatePropagatesThroughArray(t *testing.T) {
	h := variant.NewHeap()
	s, err := h.MakeSet(nil)
	require.NoError(t, err)
	defer s.Unref()

	obj1 := h.MakeObject()
	require.NoError(t, obj1.Set("v", h.MakeNumber(1)))
	obj2 := h.MakeObject()
	require.NoError(t, obj2.Set("v", h.MakeNumber(2)))

	arr := h.MakeArray(obj1)
	defer arr.Unref()

	require.NoError(t, s.SetAdd(arr, false))
	require.NoError(t, s.SetAdd(obj2, false))

	// Changing the array's single element to collide in content with
	// obj2 would make arr's own fingerprint equal some other path; here
	// it must simply be allowed to commit since arr's own content stays
	// distinct from obj2 (different kind).
	require.NoError(t, arr.SetAt(0, h.MakeNumber(42)))
	v0, _ := arr.At(0)
	assert.Equal(t, float64(42), v0.AsNumber())
}
