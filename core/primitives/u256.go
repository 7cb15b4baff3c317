package primitives

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrU256Overflow is returned by checked arithmetic when a result would not
// fit in 256 bits.
var ErrU256Overflow = errors.New("primitives: u256 overflow")

// U256 is a checked unsigned 256-bit integer, used for token amounts and gas
// accounting (spec section 3). It wraps uint256.Int rather than math/big so
// arithmetic stays fixed-width and overflow is reported instead of silently
// growing.
type U256 struct {
	v uint256.Int
}

// ZeroU256 is the additive identity.
func ZeroU256() U256 { return U256{} }

// U256FromUint64 builds a U256 from a uint64.
func U256FromUint64(n uint64) U256 {
	var u U256
	u.v.SetUint64(n)
	return u
}

// U256FromBytes interprets b as a big-endian unsigned integer, truncating to
// the low 32 bytes if b is longer.
func U256FromBytes(b []byte) U256 {
	var u U256
	u.v.SetBytes(b)
	return u
}

// Bytes32 returns the big-endian 32-byte representation, matching the
// fixed-width encoding spec section 6 uses for amounts on the wire.
func (u U256) Bytes32() [32]byte {
	return u.v.Bytes32()
}

// Uint64 returns the low 64 bits, discarding any higher bits.
func (u U256) Uint64() uint64 { return u.v.Uint64() }

// IsZero reports whether u is zero.
func (u U256) IsZero() bool { return u.v.IsZero() }

// Cmp compares u and o, returning -1, 0, or 1.
func (u U256) Cmp(o U256) int { return u.v.Cmp(&o.v) }

// Add returns u+o, or an error if the sum overflows 256 bits. Grounded on
// the checked-arithmetic style the teacher's gas accounting relies on
// (core/common_structs.go's MeteredState), generalized here to the uint256
// library's explicit overflow flag rather than a manual bounds check.
func (u U256) Add(o U256) (U256, error) {
	var out U256
	_, overflow := out.v.AddOverflow(&u.v, &o.v)
	if overflow {
		return U256{}, ErrU256Overflow
	}
	return out, nil
}

// Sub returns u-o, or an error if o is greater than u.
func (u U256) Sub(o U256) (U256, error) {
	if u.v.Lt(&o.v) {
		return U256{}, ErrU256Overflow
	}
	var out U256
	out.v.Sub(&u.v, &o.v)
	return out, nil
}

// Mul returns u*o, or an error if the product overflows 256 bits.
func (u U256) Mul(o U256) (U256, error) {
	var out U256
	_, overflow := out.v.MulOverflow(&u.v, &o.v)
	if overflow {
		return U256{}, ErrU256Overflow
	}
	return out, nil
}

// String renders the decimal representation.
func (u U256) String() string { return u.v.Dec() }
