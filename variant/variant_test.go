package variant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/variant"
)

func TestSingletonsAreIdentical(t *testing.T) {
	h := variant.NewHeap()
	assert.Same(t, h.Null(), h.Null())
	assert.Same(t, h.Undefined(), h.Undefined())
	assert.Same(t, h.True(), h.True())
	assert.Same(t, h.False(), h.False())
	assert.Same(t, h.True(), h.Bool(true))
	assert.Same(t, h.False(), h.Bool(false))
}

func TestSingletonUnrefNeverFrees(t *testing.T) {
	h := variant.NewHeap()
	n := h.Null()
	for i := 0; i < 5; i++ {
		n.Unref()
	}
	// still usable afterwards; refcount is advisory for singletons.
	assert.Equal(t, variant.KindUnitNull, n.Kind())
	assert.GreaterOrEqual(t, n.Refcount(), int64(1))
}

func TestRefUnrefLifecycle(t *testing.T) {
	h := variant.NewHeap()
	s := h.MakeString("hello")
	require.EqualValues(t, 1, s.Refcount())
	s.Ref()
	require.EqualValues(t, 2, s.Refcount())
	s.Unref()
	require.EqualValues(t, 1, s.Refcount())
}

func TestScalarEquals(t *testing.T) {
	h := variant.NewHeap()
	a := h.MakeNumber(3.5)
	b := h.MakeNumber(3.5)
	c := h.MakeNumber(4.5)
	assert.True(t, variant.Equals(a, b))
	assert.False(t, variant.Equals(a, c))

	s1 := h.MakeString("abc")
	s2 := h.MakeString("abc")
	assert.True(t, variant.Equals(s1, s2))
}

func TestAtomStringIdentity(t *testing.T) {
	h := variant.NewHeap()
	a1 := h.MakeAtomString("tag")
	a2 := h.MakeAtomString("tag")
	// interned: distinct variants, same underlying atom, Equals true.
	assert.True(t, variant.Equals(a1, a2))
}

func TestHeapStatsAccounting(t *testing.T) {
	h := variant.NewHeap()
	before := h.Stats()
	v := h.MakeNumber(1)
	after := h.Stats()
	assert.Equal(t, before.TotalValues+1, after.TotalValues)
	v.Unref()
	final := h.Stats()
	assert.Equal(t, before.TotalValues, final.TotalValues)
}

func TestCompareCrossKindIsStableButArbitrary(t *testing.T) {
	h := variant.NewHeap()
	n := h.MakeNumber(1)
	s := h.MakeString("x")
	c1 := variant.Compare(n, s)
	c2 := variant.Compare(n, s)
	assert.Equal(t, c1, c2)
	assert.NotEqual(t, 0, c1)
}

func TestBigintVariant(t *testing.T) {
	h := variant.NewHeap()
	b, err := variant.ParseBigint("123456789012345678901234567890", 10)
	require.NoError(t, err)
	v := h.MakeBigint(b)
	assert.Equal(t, variant.KindBigint, v.Kind())
	assert.Equal(t, "123456789012345678901234567890", v.AsBigint().String())
}
