package primitives

import (
	"math/big"
	"testing"
)

func TestGenesisTargetExpands(t *testing.T) {
	// 0x20FFFFFF: exponent 0x20 (32), mantissa 0xFFFFFF.
	target := Target{0x20, 0xFF, 0xFF, 0xFF}
	expanded := target.Expand()
	want := new(big.Int).Lsh(big.NewInt(0xFFFFFF), 8*uint(32-3))
	if expanded.Cmp(want) != 0 {
		t.Fatalf("Expand mismatch: got %s want %s", expanded, want)
	}
}

func TestCompactFromBigRoundTrip(t *testing.T) {
	target := Target{0x20, 0xFF, 0xFF, 0xFF}
	back, err := CompactFromBig(target.Expand())
	if err != nil {
		t.Fatalf("CompactFromBig: %v", err)
	}
	if back != target {
		t.Fatalf("round trip mismatch: got %v want %v", back, target)
	}
}

func TestMeetsTargetAcceptsAndRejects(t *testing.T) {
	target := Target{0x20, 0xFF, 0xFF, 0xFF}
	low := HashFromBytes([]byte{0x00, 0x01})
	if !target.MeetsTarget(low) {
		t.Fatalf("expected a near-zero hash to meet a wide-open target")
	}

	var high Hash
	for i := range high {
		high[i] = 0xFF
	}
	if target.MeetsTarget(high) {
		t.Fatalf("expected the maximal hash to fail the target check")
	}
}

func TestUint32RoundTrip(t *testing.T) {
	target := Target{0x20, 0xFF, 0xFF, 0xFF}
	back := TargetFromUint32(target.Uint32())
	if back != target {
		t.Fatalf("Uint32 round trip mismatch: got %v want %v", back, target)
	}
}

func TestRetargetClampsToBand(t *testing.T) {
	oldTarget := Target{0x20, 0x10, 0x00, 0x00}

	// Actual time far shorter than expected should push the target down,
	// but no further than old/4.
	tightened, err := Retarget(oldTarget, 1, 1000)
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	lowerBound := new(big.Int).Rsh(oldTarget.Expand(), 2)
	if tightened.Expand().Cmp(lowerBound) < 0 {
		t.Fatalf("retarget undershot the clamp band: got %s want >= %s", tightened.Expand(), lowerBound)
	}

	// Actual time far longer than expected should push the target up, but
	// no further than old*4.
	loosened, err := Retarget(oldTarget, 1000, 1)
	if err != nil {
		t.Fatalf("Retarget: %v", err)
	}
	upperBound := new(big.Int).Lsh(oldTarget.Expand(), 2)
	if loosened.Expand().Cmp(upperBound) > 0 {
		t.Fatalf("retarget overshot the clamp band: got %s want <= %s", loosened.Expand(), upperBound)
	}
}

func TestWithinAdjustmentBand(t *testing.T) {
	oldTarget := Target{0x20, 0x10, 0x00, 0x00}
	same := oldTarget
	if !WithinAdjustmentBand(oldTarget, same) {
		t.Fatalf("expected identical target to be within band")
	}

	tooLoose, err := CompactFromBig(new(big.Int).Lsh(oldTarget.Expand(), 4))
	if err != nil {
		t.Fatalf("CompactFromBig: %v", err)
	}
	if WithinAdjustmentBand(oldTarget, tooLoose) {
		t.Fatalf("expected a 16x loosened target to fall outside the band")
	}
}

func TestRetargetRejectsNonPositiveExpected(t *testing.T) {
	oldTarget := Target{0x20, 0xFF, 0xFF, 0xFF}
	if _, err := Retarget(oldTarget, 1000, 0); err == nil {
		t.Fatalf("expected error for non-positive expected elapsed time")
	}
}

func TestWeightIsHigherForHarderTargets(t *testing.T) {
	easy := Target{0x20, 0xFF, 0xFF, 0xFF}
	hard := Target{0x20, 0x10, 0x00, 0x00}
	if hard.Weight().Cmp(easy.Weight()) <= 0 {
		t.Fatalf("expected a smaller (harder) target to carry more weight")
	}
}
