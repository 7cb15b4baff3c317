// Package vm implements the stack-based deterministic interpreter from spec
// section 4.5: typed values, a gas-metered stack machine, and the stateless
// (unlock-script) and stateful (contract-call) execution contexts.
package vm

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/shardflow/flownode/core/primitives"
)

// ValueKind tags the stack's value union (spec section 4.5: "Bool, I256,
// U256, ByteVec, Address. Fixed-size arrays are flattened on the stack").
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindI256
	KindU256
	KindByteVec
	KindAddress
)

// ErrTypeMismatch is returned when an opcode is applied to a Value of the
// wrong Kind.
var ErrTypeMismatch = errors.New("vm: operand type mismatch")

// Value is one entry on the VM's operand stack.
type Value struct {
	Kind    ValueKind
	Bool    bool
	I256    *big.Int
	U256    primitives.U256
	ByteVec []byte
	Address primitives.Address
}

func BoolValue(b bool) Value    { return Value{Kind: KindBool, Bool: b} }
func I256Value(n *big.Int) Value { return Value{Kind: KindI256, I256: n} }
func U256Value(n primitives.U256) Value { return Value{Kind: KindU256, U256: n} }
func ByteVecValue(b []byte) Value { return Value{Kind: KindByteVec, ByteVec: b} }
func AddressValue(a primitives.Address) Value { return Value{Kind: KindAddress, Address: a} }

func (v Value) asBool() (bool, error) {
	if v.Kind != KindBool {
		return false, ErrTypeMismatch
	}
	return v.Bool, nil
}

func (v Value) asI256() (*big.Int, error) {
	if v.Kind != KindI256 {
		return nil, ErrTypeMismatch
	}
	return v.I256, nil
}

func (v Value) asU256() (primitives.U256, error) {
	if v.Kind != KindU256 {
		return primitives.U256{}, ErrTypeMismatch
	}
	return v.U256, nil
}

func (v Value) asByteVec() ([]byte, error) {
	if v.Kind != KindByteVec {
		return nil, ErrTypeMismatch
	}
	return v.ByteVec, nil
}

// Equal reports whether two values of the same kind hold the same content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindI256:
		return v.I256.Cmp(o.I256) == 0
	case KindU256:
		return v.U256.Cmp(o.U256) == 0
	case KindByteVec:
		return bytes.Equal(v.ByteVec, o.ByteVec)
	case KindAddress:
		va, _ := v.Address.Encode()
		oa, _ := o.Address.Encode()
		return va == oa
	default:
		return false
	}
}
