package vm

import "fmt"

// Opcode is the VM's instruction identifier, generalized from the
// teacher's 24-bit protocol-wide opcode space (opcode_dispatcher.go) down
// to this VM's own small, fixed instruction set (spec section 4.5).
type Opcode uint8

const (
	OpPush Opcode = iota
	OpPop
	OpDup

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAddMod
	OpSubMod
	OpMulMod

	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor

	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte

	OpLogicalAnd
	OpLogicalOr
	OpLogicalNot

	OpConcat

	OpJump
	OpJumpIf
	OpCall
	OpContractCall
	OpReturn

	OpLog
	OpApproveAsset
	OpTransferAsset
	OpCreateContract
	OpDestroyContract

	OpLoadField
	OpStoreField
)

var opcodeNames = map[Opcode]string{
	OpPush: "PUSH", OpPop: "POP", OpDup: "DUP",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD",
	OpAddMod: "ADDMOD", OpSubMod: "SUBMOD", OpMulMod: "MULMOD",
	OpShl: "SHL", OpShr: "SHR", OpAnd: "AND", OpOr: "OR", OpXor: "XOR",
	OpEq: "EQ", OpNeq: "NEQ", OpLt: "LT", OpLte: "LTE", OpGt: "GT", OpGte: "GTE",
	OpLogicalAnd: "LAND", OpLogicalOr: "LOR", OpLogicalNot: "LNOT",
	OpConcat: "CONCAT",
	OpJump:   "JUMP", OpJumpIf: "JUMPIF", OpCall: "CALL", OpContractCall: "CONTRACTCALL", OpReturn: "RETURN",
	OpLog: "LOG", OpApproveAsset: "APPROVEASSET", OpTransferAsset: "TRANSFERASSET",
	OpCreateContract: "CREATECONTRACT", OpDestroyContract: "DESTROYCONTRACT",
	OpLoadField: "LOADFIELD", OpStoreField: "STOREFIELD",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP(0x%02x)", uint8(op))
}

// gasPerArgByte is the per-argument serialization cost contract calls
// charge on top of the OpContractCall base cost (spec section 4.5).
const gasPerArgByte = 3

// opcodeGas assigns each opcode's fixed cost. Control flow and contract
// interaction cost more than plain stack arithmetic, mirroring the
// teacher's per-opcode GasCost table.
var opcodeGas = map[Opcode]uint64{
	OpPush: 3, OpPop: 2, OpDup: 3,
	OpAdd: 3, OpSub: 3, OpMul: 5, OpDiv: 5, OpMod: 5,
	OpAddMod: 8, OpSubMod: 8, OpMulMod: 8,
	OpShl: 3, OpShr: 3, OpAnd: 3, OpOr: 3, OpXor: 3,
	OpEq: 3, OpNeq: 3, OpLt: 3, OpLte: 3, OpGt: 3, OpGte: 3,
	OpLogicalAnd: 3, OpLogicalOr: 3, OpLogicalNot: 2,
	OpConcat: 5,
	OpJump:   8, OpJumpIf: 10, OpCall: 40, OpContractCall: 100, OpReturn: 0,
	OpLog: 375, OpApproveAsset: 20, OpTransferAsset: 20,
	OpCreateContract: 32000, OpDestroyContract: 5000,
	OpLoadField: 20, OpStoreField: 200,
}

// GasCost returns op's fixed gas cost.
func GasCost(op Opcode) uint64 {
	if c, ok := opcodeGas[op]; ok {
		return c
	}
	return 1
}

// OpcodeFunc is the handler invoked by Execute for one instruction,
// grounded on the teacher's OpcodeFunc/Register/Dispatch shape, generalized
// from a global Context interface to this package's *ExecContext.
type OpcodeFunc func(ec *ExecContext) error

var opcodeTable = make(map[Opcode]OpcodeFunc, 64)

// Register binds an opcode to its handler. Called from this package's
// init(); collisions are a programming error and panic immediately, as in
// the teacher's Register.
func Register(op Opcode, fn OpcodeFunc) {
	if _, exists := opcodeTable[op]; exists {
		panic(fmt.Sprintf("vm: opcode %s already registered", op))
	}
	opcodeTable[op] = fn
}

// Dispatch invokes op's registered handler.
func Dispatch(ec *ExecContext, op Opcode) error {
	fn, ok := opcodeTable[op]
	if !ok {
		return fmt.Errorf("vm: unknown opcode %s", op)
	}
	return fn(ec)
}
