package primitives

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// Target is the compact PoW difficulty encoding from spec section 3: an
// exponent byte followed by a 3-byte mantissa, matching the genesis
// constant 0x20FFFFFF used throughout spec section 8's end-to-end scenarios.
type Target [4]byte

// maxTargetBytes bounds the expanded target to HashSize bytes so it stays
// comparable against a Hash by big-endian integer value.
const maxTargetBytes = HashSize

// Expand decodes the compact encoding into the full-width integer boundary:
// mantissa * 256^(exponent-3) for exponent > 3, mantissa right-shifted
// otherwise. This is the classic Bitcoin-style "nBits" scheme.
func (t Target) Expand() *big.Int {
	exponent := int(t[0])
	mantissa := new(big.Int).SetBytes(t[1:4])

	if exponent <= 3 {
		shift := uint(8 * (3 - exponent))
		return new(big.Int).Rsh(mantissa, shift)
	}
	shift := uint(8 * (exponent - 3))
	return new(big.Int).Lsh(mantissa, shift)
}

// CompactFromBig re-encodes a full-width integer boundary back into the
// compact 4-byte form, clamping the exponent to what 3 mantissa bytes can
// represent.
func CompactFromBig(n *big.Int) (Target, error) {
	if n.Sign() < 0 {
		return Target{}, errors.New("primitives: negative target")
	}
	b := n.Bytes()
	exponent := len(b)
	// Expand reads the mantissa as unsigned, so no sign-padding byte is
	// added. Short values are left-aligned to undo Expand's right shift.
	var mantissa [3]byte
	switch {
	case len(b) >= 3:
		copy(mantissa[:], b[:3])
	case len(b) > 0:
		copy(mantissa[:], b)
	}
	if exponent > 255 {
		return Target{}, errors.New("primitives: target exponent overflow")
	}
	return Target{byte(exponent), mantissa[0], mantissa[1], mantissa[2]}, nil
}

// MeetsTarget reports whether hash, read as a big-endian integer, is
// strictly less than the expanded target — the PoW acceptance check from
// spec section 4.4 ("hash(header) < expand(target)").
func (t Target) MeetsTarget(h Hash) bool {
	hv := new(big.Int).SetBytes(h[:])
	return hv.Cmp(t.Expand()) < 0
}

// Uint32 packs the compact target into the wire's 4-byte little-endian
// primitive encoding (spec section 6).
func (t Target) Uint32() uint32 {
	return binary.LittleEndian.Uint32(t[:])
}

// TargetFromUint32 unpacks a little-endian wire value into a Target.
func TargetFromUint32(v uint32) Target {
	var t Target
	binary.LittleEndian.PutUint32(t[:], v)
	return t
}

// maxTargetValue is the largest boundary a hash can be measured against
// (a HashSize-byte value of all ones), used as the numerator of the
// chain-weight formula below.
var maxTargetValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 8*maxTargetBytes), big.NewInt(1))

// Weight converts a block's PoW target into the chain-weight value
// AddAndUpdateView/CalWeight accumulate (spec section 4.3): the classic
// chainwork formula maxTarget/target, so a harder (smaller) target
// contributes more weight than an easier one.
func (t Target) Weight() U256 {
	expanded := t.Expand()
	if expanded.Sign() <= 0 {
		return U256FromBytes(maxTargetValue.Bytes())
	}
	return U256FromBytes(new(big.Int).Div(maxTargetValue, expanded).Bytes())
}

// WithinAdjustmentBand reports whether newTarget lies within [old/4, old*4]
// of oldTarget — the allowed per-retarget adjustment band from spec section
// 4.4, used directly by header validation.
func WithinAdjustmentBand(oldTarget, newTarget Target) bool {
	old := oldTarget.Expand()
	next := newTarget.Expand()
	lower := clampRetarget(old, big.NewInt(0))
	upper := clampRetarget(old, new(big.Int).Lsh(old, 64))
	return next.Cmp(lower) >= 0 && next.Cmp(upper) <= 0
}

// clampRetarget implements the adjustment-band check from spec section 4.4
// ("target is within the allowed adjustment band relative to parent"): the
// new target must lie within [old/4, old*4], cross-pack-grounded on
// rubin-protocol's RetargetV1 clamp.
func clampRetarget(oldTarget, proposed *big.Int) *big.Int {
	lower := new(big.Int).Rsh(new(big.Int).Set(oldTarget), 2)
	if lower.Sign() == 0 {
		lower = big.NewInt(1)
	}
	upper := new(big.Int).Lsh(new(big.Int).Set(oldTarget), 2)
	switch {
	case proposed.Cmp(lower) < 0:
		return lower
	case proposed.Cmp(upper) > 0:
		return upper
	default:
		return proposed
	}
}

// Retarget computes the next window's target given the elapsed wall-clock
// time for blockCount blocks against the configured target block time,
// clamped to a 4x adjustment band per call (spec section 4.4).
func Retarget(oldTarget Target, actualElapsedMillis, expectedElapsedMillis int64) (Target, error) {
	if expectedElapsedMillis <= 0 {
		return Target{}, errors.New("primitives: expected elapsed time must be positive")
	}
	if actualElapsedMillis <= 0 {
		actualElapsedMillis = 1
	}
	old := oldTarget.Expand()
	num := new(big.Int).Mul(old, big.NewInt(actualElapsedMillis))
	den := big.NewInt(expectedElapsedMillis)
	proposed := new(big.Int).Div(num, den)
	clamped := clampRetarget(old, proposed)
	maxVal := new(big.Int).Lsh(big.NewInt(1), 8*maxTargetBytes)
	if clamped.Cmp(maxVal) >= 0 {
		clamped = new(big.Int).Sub(maxVal, big.NewInt(1))
	}
	return CompactFromBig(clamped)
}
