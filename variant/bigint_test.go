package variant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purc-run/purcvariant/variant"
)

func TestBigintParseAndFormat(t *testing.T) {
	b, err := variant.ParseBigint("-0x1A", 0)
	require.NoError(t, err)
	assert.Equal(t, "-1a", b.Format(16))
	assert.Equal(t, "-26", b.Format(10))
}

func TestBigintParseOctalAndDecimal(t *testing.T) {
	b, err := variant.ParseBigint("010", 0)
	require.NoError(t, err)
	assert.Equal(t, "8", b.Format(10))

	b2, err := variant.ParseBigint("42", 0)
	require.NoError(t, err)
	assert.Equal(t, "42", b2.Format(10))
}

func TestBigintArithmetic(t *testing.T) {
	a := variant.BigintFromI64(1000)
	b := variant.BigintFromI64(7)
	assert.Equal(t, int64(1007), sum(a, b))
	assert.Equal(t, int64(993), diff(a, b))
	assert.Equal(t, int64(7000), prod(a, b))

	q, r, err := a.QuoRem(b)
	require.NoError(t, err)
	qi, _ := q.ToI64(false)
	ri, _ := r.ToI64(false)
	assert.Equal(t, int64(142), qi)
	assert.Equal(t, int64(6), ri)
}

func sum(a, b *variant.Bigint) int64  { v, _ := a.Add(b).ToI64(false); return v }
func diff(a, b *variant.Bigint) int64 { v, _ := a.Sub(b).ToI64(false); return v }
func prod(a, b *variant.Bigint) int64 { v, _ := a.Mul(b).ToI64(false); return v }

func TestBigintDivideByZero(t *testing.T) {
	a := variant.BigintFromI64(10)
	z := variant.BigintFromI64(0)
	_, _, err := a.QuoRem(z)
	require.Error(t, err)
	assert.Equal(t, variant.ErrDivideByZero, variant.KindOf(err))
}

func TestBigintMulUint256FastPath(t *testing.T) {
	a, err := variant.ParseBigint("ffffffffffffffffffffffffffffffff", 16)
	require.NoError(t, err)
	b := variant.BigintFromI64(2)
	got := a.Mul(b)
	want, err := variant.ParseBigint("1fffffffffffffffffffffffffffffffe", 16)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(want))
}

func TestBigintFromF64Rejectsnonintegral(t *testing.T) {
	_, err := variant.BigintFromF64(1.5)
	require.Error(t, err)
	assert.Equal(t, variant.ErrInvalidValue, variant.KindOf(err))

	b, err := variant.BigintFromF64(42.0)
	require.NoError(t, err)
	assert.Equal(t, "42", b.String())
}

func TestBigintOverflowToI64(t *testing.T) {
	huge, err := variant.ParseBigint("FFFFFFFFFFFFFFFFFF", 16)
	require.NoError(t, err)
	_, err = huge.ToI64(false)
	require.Error(t, err)
	assert.Equal(t, variant.ErrOverflow, variant.KindOf(err))

	_, err = huge.ToI64(true)
	require.NoError(t, err)
}

func TestBigintBitwiseAndShift(t *testing.T) {
	a := variant.BigintFromI64(0b1100)
	b := variant.BigintFromI64(0b1010)
	and, _ := a.And(b).ToI64(false)
	or, _ := a.Or(b).ToI64(false)
	xor, _ := a.Xor(b).ToI64(false)
	assert.EqualValues(t, 0b1000, and)
	assert.EqualValues(t, 0b1110, or)
	assert.EqualValues(t, 0b0110, xor)

	shl, _ := a.Lsh(2).ToI64(false)
	shr, _ := a.Rsh(2).ToI64(false)
	assert.EqualValues(t, 0b110000, shl)
	assert.EqualValues(t, 0b11, shr)
}
