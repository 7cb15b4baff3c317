package vm

import (
	"math/big"
	"testing"

	"github.com/shardflow/flownode/core/primitives"
)

func TestValueEqual(t *testing.T) {
	a := U256Value(primitives.U256FromUint64(7))
	b := U256Value(primitives.U256FromUint64(7))
	c := U256Value(primitives.U256FromUint64(8))
	if !a.Equal(b) {
		t.Fatal("equal U256 values should compare equal")
	}
	if a.Equal(c) {
		t.Fatal("unequal U256 values should not compare equal")
	}
}

func TestValueEqualDifferentKinds(t *testing.T) {
	a := BoolValue(true)
	b := I256Value(big.NewInt(1))
	if a.Equal(b) {
		t.Fatal("values of different kinds must never be equal")
	}
}

func TestValueAsWrongKind(t *testing.T) {
	v := BoolValue(true)
	if _, err := v.asU256(); err != ErrTypeMismatch {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}
