package vm

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/shardflow/flownode/core/primitives"
)

func init() {
	Register(OpPush, execPush)
	Register(OpPop, execPop)
	Register(OpDup, execDup)

	Register(OpAdd, execCheckedArith(primitives.U256.Add))
	Register(OpSub, execCheckedArith(primitives.U256.Sub))
	Register(OpMul, execCheckedArith(primitives.U256.Mul))
	Register(OpDiv, execDivMod(func(a, b *big.Int) *big.Int { return new(big.Int).Div(a, b) }))
	Register(OpMod, execDivMod(func(a, b *big.Int) *big.Int { return new(big.Int).Mod(a, b) }))
	Register(OpAddMod, execTriArith(func(a, b, m *big.Int) *big.Int { return new(big.Int).Mod(new(big.Int).Add(a, b), m) }))
	Register(OpSubMod, execTriArith(func(a, b, m *big.Int) *big.Int { return new(big.Int).Mod(new(big.Int).Sub(a, b), m) }))
	Register(OpMulMod, execTriArith(func(a, b, m *big.Int) *big.Int { return new(big.Int).Mod(new(big.Int).Mul(a, b), m) }))

	Register(OpShl, execArith(func(a, b *big.Int) *big.Int { return new(big.Int).Lsh(a, uint(b.Uint64())) }))
	Register(OpShr, execArith(func(a, b *big.Int) *big.Int { return new(big.Int).Rsh(a, uint(b.Uint64())) }))
	Register(OpAnd, execArith(func(a, b *big.Int) *big.Int { return new(big.Int).And(a, b) }))
	Register(OpOr, execArith(func(a, b *big.Int) *big.Int { return new(big.Int).Or(a, b) }))
	Register(OpXor, execArith(func(a, b *big.Int) *big.Int { return new(big.Int).Xor(a, b) }))

	Register(OpEq, execCompare(func(c int) bool { return c == 0 }))
	Register(OpNeq, execCompare(func(c int) bool { return c != 0 }))
	Register(OpLt, execCompare(func(c int) bool { return c < 0 }))
	Register(OpLte, execCompare(func(c int) bool { return c <= 0 }))
	Register(OpGt, execCompare(func(c int) bool { return c > 0 }))
	Register(OpGte, execCompare(func(c int) bool { return c >= 0 }))

	Register(OpLogicalAnd, execLogicalBinary(func(a, b bool) bool { return a && b }))
	Register(OpLogicalOr, execLogicalBinary(func(a, b bool) bool { return a || b }))
	Register(OpLogicalNot, execLogicalNot)

	Register(OpConcat, execConcat)

	Register(OpJump, execJump)
	Register(OpJumpIf, execJumpIf)
	Register(OpCall, execCall)
	Register(OpContractCall, execContractCall)
	Register(OpReturn, execReturn)

	Register(OpLog, execLog)
	Register(OpApproveAsset, execApproveAsset)
	Register(OpTransferAsset, execTransferAsset)
	Register(OpCreateContract, execCreateContract)
	Register(OpDestroyContract, execDestroyContract)

	Register(OpLoadField, execLoadField)
	Register(OpStoreField, execStoreField)
}

func (ec *ExecContext) readByte() (byte, error) {
	if ec.PC >= len(ec.Code) {
		return 0, errors.New("vm: unexpected end of code")
	}
	b := ec.Code[ec.PC]
	ec.PC++
	return b, nil
}

func (ec *ExecContext) readUint32() (uint32, error) {
	if ec.PC+4 > len(ec.Code) {
		return 0, errors.New("vm: unexpected end of code")
	}
	v := binary.BigEndian.Uint32(ec.Code[ec.PC:])
	ec.PC += 4
	return v, nil
}

func (ec *ExecContext) readBytes(n int) ([]byte, error) {
	if n < 0 || ec.PC+n > len(ec.Code) {
		return nil, errors.New("vm: unexpected end of code")
	}
	b := ec.Code[ec.PC : ec.PC+n]
	ec.PC += n
	return b, nil
}

func u256ToBig(u primitives.U256) *big.Int {
	b := u.Bytes32()
	return new(big.Int).SetBytes(b[:])
}

// u256Modulus is 2^256, used to fold a math/big result back into the VM's
// fixed-width word for the bitwise/shift ops that still round-trip through
// math/big (execArith's remaining users: SHL, SHR, AND, OR, XOR).
var u256Modulus = new(big.Int).Lsh(big.NewInt(1), 256)

// bigToU256 folds n into a U256 by reducing it modulo 2^256 (Go's
// big.Int.Mod is Euclidean, so the result is always in [0, 2^256) even for
// negative n) instead of narrowing via FillBytes, which panics whenever the
// unreduced value doesn't fit in 32 bytes.
func bigToU256(n *big.Int) primitives.U256 {
	var b [32]byte
	reduced := new(big.Int).Mod(n, u256Modulus)
	reduced.FillBytes(b[:])
	return primitives.U256FromBytes(b[:])
}

// execCheckedArith wires a checked primitives.U256 binary op (Add, Sub, Mul)
// directly to the stack, replacing the math/big round trip execArith still
// uses for the bitwise/shift ops: overflow (or, for Sub, underflow) becomes
// an ErrU256Overflow failure instead of a silently wrapped or panicking
// result.
func execCheckedArith(f func(a, b primitives.U256) (primitives.U256, error)) OpcodeFunc {
	return func(ec *ExecContext) error {
		bv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		av, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		a, aerr := av.asU256()
		b, berr := bv.asU256()
		if aerr != nil || berr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		result, err := f(a, b)
		if err != nil {
			return ec.fail(err)
		}
		return ec.Stack.Push(U256Value(result))
	}
}

func execPush(ec *ExecContext) error {
	kind, err := ec.readByte()
	if err != nil {
		return ec.fail(err)
	}
	switch ValueKind(kind) {
	case KindBool:
		b, err := ec.readByte()
		if err != nil {
			return ec.fail(err)
		}
		return ec.Stack.Push(BoolValue(b != 0))
	case KindI256:
		sign, err := ec.readByte()
		if err != nil {
			return ec.fail(err)
		}
		n, err := ec.readUint32()
		if err != nil {
			return ec.fail(err)
		}
		raw, err := ec.readBytes(int(n))
		if err != nil {
			return ec.fail(err)
		}
		v := new(big.Int).SetBytes(raw)
		if sign != 0 {
			v.Neg(v)
		}
		return ec.Stack.Push(I256Value(v))
	case KindU256:
		raw, err := ec.readBytes(32)
		if err != nil {
			return ec.fail(err)
		}
		return ec.Stack.Push(U256Value(primitives.U256FromBytes(raw)))
	case KindByteVec:
		n, err := ec.readUint32()
		if err != nil {
			return ec.fail(err)
		}
		raw, err := ec.readBytes(int(n))
		if err != nil {
			return ec.fail(err)
		}
		return ec.Stack.Push(ByteVecValue(raw))
	case KindAddress:
		n, err := ec.readByte()
		if err != nil {
			return ec.fail(err)
		}
		raw, err := ec.readBytes(int(n))
		if err != nil {
			return ec.fail(err)
		}
		addr, err := primitives.DecodeAddress(string(raw))
		if err != nil {
			return ec.fail(err)
		}
		return ec.Stack.Push(AddressValue(addr))
	default:
		return ec.fail(errors.New("vm: unknown push value kind"))
	}
}

func execPop(ec *ExecContext) error {
	if _, err := ec.Stack.Pop(); err != nil {
		return ec.fail(err)
	}
	return nil
}

func execDup(ec *ExecContext) error {
	v, err := ec.Stack.Peek()
	if err != nil {
		return ec.fail(err)
	}
	return ec.Stack.Push(v)
}

func execArith(f func(a, b *big.Int) *big.Int) OpcodeFunc {
	return func(ec *ExecContext) error {
		bv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		av, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		a, aerr := av.asU256()
		b, berr := bv.asU256()
		if aerr != nil || berr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		return ec.Stack.Push(U256Value(bigToU256(f(u256ToBig(a), u256ToBig(b)))))
	}
}

func execDivMod(f func(a, b *big.Int) *big.Int) OpcodeFunc {
	return func(ec *ExecContext) error {
		bv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		av, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		a, aerr := av.asU256()
		b, berr := bv.asU256()
		if aerr != nil || berr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		if b.IsZero() {
			return ec.fail(errors.New("vm: division by zero"))
		}
		return ec.Stack.Push(U256Value(bigToU256(f(u256ToBig(a), u256ToBig(b)))))
	}
}

func execTriArith(f func(a, b, m *big.Int) *big.Int) OpcodeFunc {
	return func(ec *ExecContext) error {
		mv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		bv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		av, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		a, aerr := av.asU256()
		b, berr := bv.asU256()
		m, merr := mv.asU256()
		if aerr != nil || berr != nil || merr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		if m.IsZero() {
			return ec.fail(errors.New("vm: modulus by zero"))
		}
		return ec.Stack.Push(U256Value(bigToU256(f(u256ToBig(a), u256ToBig(b), u256ToBig(m)))))
	}
}

func execCompare(accept func(cmp int) bool) OpcodeFunc {
	return func(ec *ExecContext) error {
		bv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		av, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		a, aerr := av.asU256()
		b, berr := bv.asU256()
		if aerr != nil || berr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		return ec.Stack.Push(BoolValue(accept(a.Cmp(b))))
	}
}

func execLogicalBinary(f func(a, b bool) bool) OpcodeFunc {
	return func(ec *ExecContext) error {
		bv, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		av, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		a, aerr := av.asBool()
		b, berr := bv.asBool()
		if aerr != nil || berr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		return ec.Stack.Push(BoolValue(f(a, b)))
	}
}

func execLogicalNot(ec *ExecContext) error {
	v, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	b, err := v.asBool()
	if err != nil {
		return ec.fail(ErrTypeMismatch)
	}
	return ec.Stack.Push(BoolValue(!b))
}

func execConcat(ec *ExecContext) error {
	bv, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	av, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	a, aerr := av.asByteVec()
	b, berr := bv.asByteVec()
	if aerr != nil || berr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return ec.Stack.Push(ByteVecValue(out))
}

func execJump(ec *ExecContext) error {
	target, err := ec.readUint32()
	if err != nil {
		return ec.fail(err)
	}
	if int(target) > len(ec.Code) {
		return ec.fail(errors.New("vm: jump target out of bounds"))
	}
	ec.PC = int(target)
	return nil
}

func execJumpIf(ec *ExecContext) error {
	target, err := ec.readUint32()
	if err != nil {
		return ec.fail(err)
	}
	v, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	cond, err := v.asBool()
	if err != nil {
		return ec.fail(ErrTypeMismatch)
	}
	if cond {
		if int(target) > len(ec.Code) {
			return ec.fail(errors.New("vm: jump target out of bounds"))
		}
		ec.PC = int(target)
	}
	return nil
}

func execCall(ec *ExecContext) error {
	target, err := ec.readUint32()
	if err != nil {
		return ec.fail(err)
	}
	ec.callStack = append(ec.callStack, ec.PC)
	if int(target) > len(ec.Code) {
		return ec.fail(errors.New("vm: call target out of bounds"))
	}
	ec.PC = int(target)
	return nil
}

// execContractCall handles a cross-contract call by name (spec section
// 4.5, "contract call (cross-context)"): it charges the per-argument
// serialization cost and confirms the target contract exists via the
// injected StateAccess. It does not run the target method's code; it
// pushes an empty byte vector as the call's result.
func execContractCall(ec *ExecContext) error {
	if err := ec.requireStateful(); err != nil {
		return ec.fail(err)
	}
	argCountVal, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	argCount, aerr := argCountVal.asU256()
	if aerr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	n := int(argCount.Uint64())
	argBytes := 0
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		args[i] = v
		if v.Kind == KindByteVec {
			argBytes += len(v.ByteVec)
		} else {
			argBytes += 32
		}
	}
	if err := ec.Gas.ChargeArgs(argBytes); err != nil {
		return ec.fail(err)
	}
	methodV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	if _, err := methodV.asByteVec(); err != nil {
		return ec.fail(ErrTypeMismatch)
	}
	targetV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	targetBytes, err := targetV.asByteVec()
	if err != nil {
		return ec.fail(ErrTypeMismatch)
	}
	targetID := primitives.HashFromBytes(targetBytes)
	if _, _, err := ec.State.GetField(targetID, 0); err != nil {
		return ec.fail(err)
	}
	return ec.Stack.Push(ByteVecValue(nil))
}

func execReturn(ec *ExecContext) error {
	v, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	data, derr := v.asByteVec()
	if derr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	if len(ec.callStack) > 0 {
		ret := ec.callStack[len(ec.callStack)-1]
		ec.callStack = ec.callStack[:len(ec.callStack)-1]
		ec.PC = ret
		return nil
	}
	ec.returnData = data
	ec.halted = true
	return nil
}

func execLog(ec *ExecContext) error {
	if err := ec.requireStateful(); err != nil {
		return ec.fail(err)
	}
	dataV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	data, derr := dataV.asByteVec()
	if derr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	typeV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	typeBytes, terr := typeV.asByteVec()
	if terr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	_, err = ec.State.EmitLog(ec.ContractID, string(typeBytes), data)
	if err != nil {
		return ec.fail(err)
	}
	return nil
}

func approvalKey(a primitives.Address) string {
	s, err := a.Encode()
	if err != nil {
		return a.String()
	}
	return s
}

func execApproveAsset(ec *ExecContext) error {
	amountV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	amount, aerr := amountV.asU256()
	if aerr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	addrV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	if addrV.Kind != KindAddress {
		return ec.fail(ErrTypeMismatch)
	}
	key := approvalKey(addrV.Address)
	cur, ok := ec.approved[key]
	if !ok {
		cur = primitives.ZeroU256()
	}
	sum, err := cur.Add(amount)
	if err != nil {
		return ec.fail(err)
	}
	ec.approved[key] = sum
	return nil
}

func execTransferAsset(ec *ExecContext) error {
	amountV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	amount, aerr := amountV.asU256()
	if aerr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	addrV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	if addrV.Kind != KindAddress {
		return ec.fail(ErrTypeMismatch)
	}
	key := approvalKey(addrV.Address)
	cur, ok := ec.approved[key]
	if !ok || cur.Cmp(amount) < 0 {
		return ec.fail(errors.New("vm: asset transfer exceeds approved amount"))
	}
	remaining, err := cur.Sub(amount)
	if err != nil {
		return ec.fail(err)
	}
	ec.approved[key] = remaining
	return ec.Stack.Push(BoolValue(true))
}

func execCreateContract(ec *ExecContext) error {
	if err := ec.requireStateful(); err != nil {
		return ec.fail(err)
	}
	n, err := ec.readByte()
	if err != nil {
		return ec.fail(err)
	}
	fields := make([][]byte, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := ec.Stack.Pop()
		if err != nil {
			return ec.fail(err)
		}
		b, berr := v.asByteVec()
		if berr != nil {
			return ec.fail(ErrTypeMismatch)
		}
		fields[i] = b
	}
	lockupV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	lockup, lerr := lockupV.asByteVec()
	if lerr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	amountV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	amount, aerr := amountV.asU256()
	if aerr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	codeHashV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	codeHashBytes, cerr := codeHashV.asByteVec()
	if cerr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	codeHash := primitives.HashFromBytes(codeHashBytes)

	id, err := ec.State.CreateContract(ec.TxHash, uint32(ec.createCount), codeHash, fields, amount, lockup)
	if err != nil {
		return ec.fail(err)
	}
	ec.createCount++
	return ec.Stack.Push(ByteVecValue(id.Bytes()))
}

// execLoadField reads the contract-local field at the inline index operand
// and pushes its raw bytes, driving core/vm.StateAccess.GetField from
// bytecode (grounded on the original implementation's LoadMutField).
func execLoadField(ec *ExecContext) error {
	if err := ec.requireStateful(); err != nil {
		return ec.fail(err)
	}
	idx, err := ec.readByte()
	if err != nil {
		return ec.fail(err)
	}
	value, ok, err := ec.State.GetField(ec.ContractID, int(idx))
	if err != nil {
		return ec.fail(err)
	}
	if !ok {
		return ec.fail(errors.New("vm: unknown contract field"))
	}
	return ec.Stack.Push(ByteVecValue(value))
}

// execStoreField pops a byte-vector value and writes it to the contract-local
// field at the inline index operand, driving core/vm.StateAccess.SetField
// from bytecode (grounded on the original implementation's StoreMutField).
func execStoreField(ec *ExecContext) error {
	if err := ec.requireStateful(); err != nil {
		return ec.fail(err)
	}
	idx, err := ec.readByte()
	if err != nil {
		return ec.fail(err)
	}
	v, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	value, verr := v.asByteVec()
	if verr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	return ec.State.SetField(ec.ContractID, int(idx), value)
}

func execDestroyContract(ec *ExecContext) error {
	if err := ec.requireStateful(); err != nil {
		return ec.fail(err)
	}
	beneficiaryV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	beneficiary, berr := beneficiaryV.asByteVec()
	if berr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	idV, err := ec.Stack.Pop()
	if err != nil {
		return ec.fail(err)
	}
	idBytes, ierr := idV.asByteVec()
	if ierr != nil {
		return ec.fail(ErrTypeMismatch)
	}
	return ec.State.DestroyContract(primitives.HashFromBytes(idBytes), beneficiary)
}
