package variant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/variant"
)

func TestArrayAppendPrependAt(t *testing.T) {
	h := variant.NewHeap()
	arr := h.MakeArray()
	defer arr.Unref()

	require.NoError(t, arr.Append(h.MakeNumber(1)))
	require.NoError(t, arr.Append(h.MakeNumber(2)))
	require.NoError(t, arr.Prepend(h.MakeNumber(0)))

	assert.Equal(t, 3, arr.Size())
	v0, _ := arr.At(0)
	v1, _ := arr.At(1)
	v2, _ := arr.At(2)
	assert.Equal(t, float64(0), v0.AsNumber())
	assert.Equal(t, float64(1), v1.AsNumber())
	assert.Equal(t, float64(2), v2.AsNumber())
}

func TestArrayInsertBeforeAfter(t *testing.T) {
	h := variant.NewHeap()
	arr := h.MakeArray(h.MakeNumber(1), h.MakeNumber(3))
	defer arr.Unref()

	require.NoError(t, arr.InsertAfter(0, h.MakeNumber(2)))
	v1, _ := arr.At(1)
	assert.Equal(t, float64(2), v1.AsNumber())

	require.NoError(t, arr.InsertBefore(0, h.MakeNumber(0)))
	v0, _ := arr.At(0)
	assert.Equal(t, float64(0), v0.AsNumber())
	assert.Equal(t, 4, arr.Size())
}

func TestArrayOutOfRange(t *testing.T) {
	h := variant.NewHeap()
	arr := h.MakeArray()
	defer arr.Unref()

	err := arr.SetAt(0, h.MakeNumber(1))
	require.Error(t, err)
	assert.Equal(t, variant.ErrOutOfRange, variant.KindOf(err))
}

func TestArrayRemoveAt(t *testing.T) {
	h := variant.NewHeap()
	arr := h.MakeArray(h.MakeNumber(1), h.MakeNumber(2), h.MakeNumber(3))
	defer arr.Unref()

	require.NoError(t, arr.RemoveAt(1))
	assert.Equal(t, 2, arr.Size())
	v0, _ := arr.At(0)
	v1, _ := arr.At(1)
	assert.Equal(t, float64(1), v0.AsNumber())
	assert.Equal(t, float64(3), v1.AsNumber())
}

func TestArraySort(t *testing.T) {
	h := variant.NewHeap()
	arr := h.MakeArray(h.MakeNumber(3), h.MakeNumber(1), h.MakeNumber(2))
	defer arr.Unref()

	require.NoError(t, arr.Sort(variant.Compare))
	v0, _ := arr.At(0)
	v1, _ := arr.At(1)
	v2, _ := arr.At(2)
	assert.Equal(t, float64(1), v0.AsNumber())
	assert.Equal(t, float64(2), v1.AsNumber())
	assert.Equal(t, float64(3), v2.AsNumber())
}

func TestArrayEquals(t *testing.T) {
	h := variant.NewHeap()
	a := h.MakeArray(h.MakeNumber(1), h.MakeNumber(2))
	defer a.Unref()
	b := h.MakeArray(h.MakeNumber(1), h.MakeNumber(2))
	defer b.Unref()
	c := h.MakeArray(h.MakeNumber(2), h.MakeNumber(1))
	defer c.Unref()

	assert.True(t, variant.Equals(a, b))
	assert.False(t, variant.Equals(a, c)) // order-sensitive
}

func TestTupleFixedSize(t *testing.T) {
	h := variant.NewHeap()
	tup := h.MakeTuple([]*variant.Variant{h.MakeNumber(1), h.MakeNumber(2)})
	defer tup.Unref()

	assert.Equal(t, 2, tup.Size())
	require.NoError(t, tup.TupleSetAt(0, h.MakeNumber(9)))
	v0, _ := tup.TupleAt(0)
	assert.Equal(t, float64(9), v0.AsNumber())

	_, ok := tup.TupleAt(5)
	assert.False(t, ok)
}

func TestSortedArrayUniqueness(t *testing.T) {
	h := variant.NewHeap()
	sa := h.MakeSortedArray(variant.Compare, variant.SortedAsc, true)
	defer sa.Unref()

	require.NoError(t, sa.SortedAdd(h.MakeNumber(2)))
	require.NoError(t, sa.SortedAdd(h.MakeNumber(1)))
	err := sa.SortedAdd(h.MakeNumber(1))
	require.Error(t, err)
	assert.Equal(t, variant.ErrDuplicated, variant.KindOf(err))

	v0, _ := sa.SortedAt(0)
	v1, _ := sa.SortedAt(1)
	assert.Equal(t, float64(1), v0.AsNumber())
	assert.Equal(t, float64(2), v1.AsNumber())
}

func TestSortedArrayDescending(t *testing.T) {
	h := variant.NewHeap()
	sa := h.MakeSortedArray(variant.Compare, variant.SortedDesc, false)
	defer sa.Unref()

	require.NoError(t, sa.SortedAdd(h.MakeNumber(1)))
	require.NoError(t, sa.SortedAdd(h.MakeNumber(3)))
	require.NoError(t, sa.SortedAdd(h.MakeNumber(2)))

	v0, _ := sa.SortedAt(0)
	v1, _ := sa.SortedAt(1)
	v2, _ := sa.SortedAt(2)
	assert.Equal(t, float64(3), v0.AsNumber())
	assert.Equal(t, float64(2), v1.AsNumber())
	assert.Equal(t, float64(1), v2.AsNumber())
}

func TestSortedArrayRemove(t *testing.T) {
	h := variant.NewHeap()
	sa := h.MakeSortedArray(variant.Compare, variant.SortedAsc, false)
	defer sa.Unref()

	two := h.MakeNumber(2)
	require.NoError(t, sa.SortedAdd(h.MakeNumber(1)))
	require.NoError(t, sa.SortedAdd(two))
	require.NoError(t, sa.SortedAdd(h.MakeNumber(3)))

	require.NoError(t, sa.SortedRemove(two))
	assert.Equal(t, 2, sa.Size())
	assert.Equal(t, -1, sa.SortedFind(two))
}
