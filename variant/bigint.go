package variant

import (
	"math"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Bigint is an arbitrary-precision signed integer.
// The general case is carried by math/big.Int (two's-complement
// semantics are derived from Int.Bits()/Sign() on demand, matching the
// little-endian two's-complement limbs contract at the API boundary);
// multiplication of operands that fit in 256 bits takes a uint256 fast
// path (addition, subtraction and division use math/big directly),
// exercising the project's own
// fixed-width integer dependency before falling back to the general
// representation.
type Bigint struct {
	v *big.Int
}

func newBigint(v *big.Int) *Bigint { return &Bigint{v: v} }

// BigintFromI64 / BigintFromU64 construct a bigint from a machine integer.
func BigintFromI64(a int64) *Bigint { return newBigint(big.NewInt(a)) }
func BigintFromU64(a uint64) *Bigint {
	return newBigint(new(big.Int).SetUint64(a))
}

// BigintFromF64 converts a finite, integral float64 into a bigint.
// Non-finite or non-integer values fail.
func BigintFromF64(f float64) (*Bigint, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, newErr(ErrInvalidValue, "bigint: non-finite float")
	}
	if f != math.Trunc(f) {
		return nil, newErr(ErrInvalidValue, "bigint: non-integer float")
	}
	bf := new(big.Float).SetFloat64(f)
	z, _ := bf.Int(nil)
	return newBigint(z), nil
}

// ParseBigint parses [+-][0[xX]]digits in the given radix (0 selects
// auto-detection: 0x/0X -> 16, a bare leading 0 -> 8, else 10).
func ParseBigint(s string, radix int) (*Bigint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newErr(ErrInvalidValue, "bigint: empty string")
	}
	neg := false
	i := 0
	if s[i] == '+' || s[i] == '-' {
		neg = s[i] == '-'
		i++
	}
	rest := s[i:]
	if radix == 0 {
		switch {
		case len(rest) >= 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X'):
			radix = 16
			rest = rest[2:]
		case len(rest) >= 1 && rest[0] == '0' && len(rest) > 1:
			radix = 8
			rest = rest[1:]
		default:
			radix = 10
		}
	} else if radix == 16 && len(rest) >= 2 && rest[0] == '0' && (rest[1] == 'x' || rest[1] == 'X') {
		rest = rest[2:]
	}
	if radix < 2 || radix > 36 {
		return nil, newErr(ErrInvalidValue, "bigint: radix out of range")
	}
	z, ok := new(big.Int).SetString(rest, radix)
	if !ok {
		return nil, newErr(ErrInvalidValue, "bigint: malformed digits")
	}
	if neg {
		z.Neg(z)
	}
	return newBigint(z), nil
}

// Format renders the bigint in the given radix (2..36), sign-prefixed,
// no leading zeros beyond a single "0".
func (b *Bigint) Format(radix int) string {
	return b.v.Text(radix)
}

func (b *Bigint) String() string { return b.Format(10) }

// Bytes returns a sign byte (1 for negative, else 0) followed by the
// little-endian magnitude, used as the fingerprint/hash input for set
// membership.
func (b *Bigint) Bytes() []byte {
	abs := new(big.Int).Abs(b.v).Bytes() // big-endian magnitude
	out := make([]byte, len(abs)+1)
	for i, c := range abs {
		out[len(abs)-i] = c
	}
	if b.v.Sign() < 0 {
		out[0] = 1
	}
	return out
}

// Cmp compares two bigints (-1, 0, 1).
func (b *Bigint) Cmp(o *Bigint) int { return b.v.Cmp(o.v) }

// Add, Sub, Mul return new Bigints; Mul takes the uint256 fast path
// when both operands and their product fit in 256 bits.
func (b *Bigint) Add(o *Bigint) *Bigint { return newBigint(new(big.Int).Add(b.v, o.v)) }
func (b *Bigint) Sub(o *Bigint) *Bigint { return newBigint(new(big.Int).Sub(b.v, o.v)) }

func (b *Bigint) Mul(o *Bigint) *Bigint {
	if au, aok := toUint256(b.v); aok {
		if bu, bok := toUint256(o.v); bok {
			var res uint256.Int
			if _, overflow := res.MulOverflow(au, bu); !overflow {
				z := res.ToBig()
				if b.v.Sign()*o.v.Sign() < 0 {
					z.Neg(z)
				}
				return newBigint(z)
			}
		}
	}
	return newBigint(new(big.Int).Mul(b.v, o.v))
}

// toUint256 reports whether v's absolute value fits in 256 bits and
// returns the corresponding uint256.Int if so.
func toUint256(v *big.Int) (*uint256.Int, bool) {
	abs := new(big.Int).Abs(v)
	if abs.BitLen() > 256 {
		return nil, false
	}
	u, overflow := uint256.FromBig(abs)
	if overflow {
		return nil, false
	}
	return u, true
}

// QuoRem implements truncated division/remainder (Knuth long division
// via math/big); division by zero returns ErrDivideByZero.
func (b *Bigint) QuoRem(o *Bigint) (q, r *Bigint, err error) {
	if o.v.Sign() == 0 {
		return nil, nil, newErr(ErrDivideByZero, "bigint: division by zero")
	}
	qq, rr := new(big.Int).QuoRem(b.v, o.v, new(big.Int))
	return newBigint(qq), newBigint(rr), nil
}

func (b *Bigint) And(o *Bigint) *Bigint { return newBigint(new(big.Int).And(b.v, o.v)) }
func (b *Bigint) Or(o *Bigint) *Bigint  { return newBigint(new(big.Int).Or(b.v, o.v)) }
func (b *Bigint) Xor(o *Bigint) *Bigint { return newBigint(new(big.Int).Xor(b.v, o.v)) }
func (b *Bigint) Not() *Bigint         { return newBigint(new(big.Int).Not(b.v)) }

// Lsh / Rsh: left shift extends the limb count to capture sign bits;
// right shift is arithmetic.
func (b *Bigint) Lsh(k uint) *Bigint { return newBigint(new(big.Int).Lsh(b.v, k)) }
func (b *Bigint) Rsh(k uint) *Bigint { return newBigint(new(big.Int).Rsh(b.v, k)) }

// ToI64 converts to int64; without force, out-of-range reports
// ErrOverflow. With force, the value is truncated to 64 bits.
func (b *Bigint) ToI64(force bool) (int64, error) {
	if b.v.IsInt64() {
		return b.v.Int64(), nil
	}
	if !force {
		return 0, newErr(ErrOverflow, "bigint: out of int64 range")
	}
	var t big.Int
	t.And(b.v, new(big.Int).SetUint64(math.MaxUint64))
	return int64(t.Uint64()), nil
}

// ToU64 converts to uint64, same force semantics as ToI64.
func (b *Bigint) ToU64(force bool) (uint64, error) {
	if b.v.IsUint64() {
		return b.v.Uint64(), nil
	}
	if !force {
		return 0, newErr(ErrOverflow, "bigint: out of uint64 range")
	}
	var t big.Int
	t.And(b.v, new(big.Int).SetUint64(math.MaxUint64))
	return t.Uint64(), nil
}

// ToF64 is the total coercion used by Numerify: every bigint converts
// to its nearest double.
func (b *Bigint) ToF64() float64 {
	f := new(big.Float).SetInt(b.v)
	out, _ := f.Float64()
	return out
}

// MakeBigint wraps a *Bigint as a variant.
func (h *Heap) MakeBigint(b *Bigint) *Variant {
	v := &Variant{kind: KindBigint, heap: h, big: b}
	v.refc.Store(1)
	h.accountAlloc(KindBigint, 0)
	return v
}
