package variant_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/purc-run/purcvariant/variant"
)

// TestBigintFormatParseRoundTrip checks the round-trip invariant: any
// bigint, formatted in any supported radix, must parse back to a value
// equal to the original under Cmp.
func TestBigintFormatParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64().Draw(t, "n")
		radix := rapid.IntRange(2, 36).Draw(t, "radix")

		b := variant.BigintFromI64(n)
		s := b.Format(radix)

		parsed, err := variant.ParseBigint(s, radix)
		require.NoError(t, err)
		require.Equal(t, 0, parsed.Cmp(b), "round trip through radix %d changed the value", radix)
	})
}

// TestHeapStatAccountingReturnsToBaseline checks the stat-accounting
// invariant: allocating N scalars increases TotalValues/TotalMem by
// exactly N allocations' worth, and unref'ing every one of them back to
// zero restores the heap's stats to their pre-allocation baseline.
func TestHeapStatAccountingReturnsToBaseline(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := variant.NewHeap()
		baseline := h.Stats()

		n := rapid.IntRange(0, 64).Draw(t, "n")
		vals := make([]*variant.Variant, 0, n)
		for i := 0; i < n; i++ {
			f := rapid.Float64Range(-1e12, 1e12).Draw(t, "f")
			vals = append(vals, h.MakeNumber(f))
		}
		mid := h.Stats()
		require.Equal(t, baseline.TotalValues+int64(n), mid.TotalValues)

		for _, v := range vals {
			v.Unref()
		}
		require.Equal(t, baseline, h.Stats())
	})
}

// TestMoveRoundTripPreservesScalarValue exercises the move-heap
// round-trip invariant end to end: a value parked via MoveIn from one
// instance and retrieved via MoveOut by another must read back with its
// scalar content unchanged, regardless of the value drawn.
func TestMoveRoundTripPreservesScalarValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		instanceA := variant.NewHeap()
		instanceB := variant.NewHeap()

		f := rapid.Float64Range(-1e12, 1e12).Draw(t, "f")
		obj := instanceA.MakeObject()
		require.NoError(t, obj.Set("v", instanceA.MakeNumber(f)))

		parked := variant.MoveIn(obj)
		inB := variant.MoveOut(instanceB, parked)
		require.Equal(t, instanceB, inB.Heap())

		got, ok := inB.Get("v")
		require.True(t, ok)
		require.Equal(t, f, got.AsNumber())
		inB.Unref()
	})
}

// TestSortedArrayAddRejectsDuplicateUnderUniqueFlag checks sorted-array
// uniqueness: re-inserting an equal value into a unique-keyed sorted
// array is rejected and never changes its size.
func TestSortedArrayAddRejectsDuplicateUnderUniqueFlag(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := variant.NewHeap()
		arr := h.MakeSortedArray(nil, variant.SortedAsc, true)
		defer arr.Unref()

		f := rapid.Float64Range(-1e6, 1e6).Draw(t, "f")
		require.NoError(t, arr.SortedAdd(h.MakeNumber(f)))
		sizeAfterFirst := arr.Size()

		dup := h.MakeNumber(f)
		require.Error(t, arr.SortedAdd(dup))
		dup.Unref()
		require.Equal(t, sizeAfterFirst, arr.Size(), "re-adding an equal value under unique=true must not grow the array")
	})
}
