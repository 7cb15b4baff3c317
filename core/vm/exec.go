package vm

import (
	"errors"

	"github.com/shardflow/flownode/core/primitives"
)

// ContextKind distinguishes the VM's two execution modes (spec section
// 4.5): Stateless has no contract storage access and is used for unlock
// scripts; Stateful has full world access and is used for tx scripts and
// contract methods.
type ContextKind uint8

const (
	ContextStateless ContextKind = iota
	ContextStateful
)

// StateAccess is the stateful-context seam into core/state, implemented by
// an adapter over a block's StagingWorldState/StagingLogStates and injected
// here so this package stays independent of core/state (the same
// dependency-inversion pattern as core/validation's UTXOView/ScriptVerifier
// and core/blockflow's StateCommitter).
type StateAccess interface {
	GetField(contractID primitives.Hash, index int) ([]byte, bool, error)
	SetField(contractID primitives.Hash, index int, value []byte) error
	CreateContract(creatingTx primitives.Hash, index uint32, codeHash primitives.Hash, fields [][]byte, initialAmount primitives.U256, initialLockupScript []byte) (primitives.Hash, error)
	DestroyContract(id primitives.Hash, beneficiaryLockupScript []byte) error
	EmitLog(contractID primitives.Hash, eventType string, data []byte) (uint64, error)
}

// RunStatus is the outcome of a completed Execute call (spec section 4.5's
// explicit Running/Halted/Failed states; Running never escapes Execute).
type RunStatus uint8

const (
	StatusHalted RunStatus = iota
	StatusFailed
)

// Result is what Execute returns: the teacher's Receipt, generalized with a
// typed RunStatus and this VM's own return/gas/error shape.
type Result struct {
	Status     RunStatus
	GasUsed    uint64
	ReturnData []byte
	Err        error
}

// ExecContext is the live state threaded through one Execute call: the
// typed stack, linear memory, gas meter, program counter, and (in a
// stateful context) the injected StateAccess and the contract the script
// is executing as.
type ExecContext struct {
	Kind       ContextKind
	TxHash     primitives.Hash
	ContractID primitives.Hash
	Code       []byte
	PC         int
	Stack      *Stack
	Memory     Memory
	Gas        *GasMeter
	State      StateAccess
	approved    map[string]primitives.U256
	callStack   []int
	createCount int
	halted      bool
	failErr     error
	returnData  []byte
}

// NewExecContext builds a fresh execution context over code with gasLimit
// available. state must be non-nil for kind == ContextStateful.
func NewExecContext(kind ContextKind, txHash primitives.Hash, contractID primitives.Hash, code []byte, gasLimit uint64, state StateAccess) *ExecContext {
	return &ExecContext{
		Kind:       kind,
		TxHash:     txHash,
		ContractID: contractID,
		Code:       code,
		Stack:      NewStack(),
		Memory:     NewMemory(),
		Gas:        NewGasMeter(gasLimit),
		State:      state,
		approved:   make(map[string]primitives.U256),
	}
}

func (ec *ExecContext) fail(err error) error {
	ec.halted = true
	ec.failErr = err
	return err
}

func (ec *ExecContext) requireStateful() error {
	if ec.Kind != ContextStateful || ec.State == nil {
		return errors.New("vm: opcode requires a stateful execution context")
	}
	return nil
}

// Execute runs code to completion: normal termination (RETURN or end of
// code) yields StatusHalted; a stack underflow, type mismatch, out-of-gas,
// or explicit abort yields StatusFailed with every staged state change left
// for the caller to discard (spec section 4.5's "per-tx staging is
// discarded" on failure). Grounded on the teacher's LightVM.Execute main
// loop (push/pop stack, per-opcode gas Consume, fail() short-circuit).
func Execute(ec *ExecContext) Result {
	for ec.PC < len(ec.Code) {
		op := Opcode(ec.Code[ec.PC])
		ec.PC++

		if err := ec.Gas.ChargeOpcode(op); err != nil {
			return Result{Status: StatusFailed, GasUsed: ec.Gas.Used(), Err: err}
		}
		if err := Dispatch(ec, op); err != nil {
			return Result{Status: StatusFailed, GasUsed: ec.Gas.Used(), Err: err}
		}
		if ec.halted {
			if ec.failErr != nil {
				return Result{Status: StatusFailed, GasUsed: ec.Gas.Used(), Err: ec.failErr}
			}
			return Result{Status: StatusHalted, GasUsed: ec.Gas.Used(), ReturnData: ec.returnData}
		}
	}
	return Result{Status: StatusHalted, GasUsed: ec.Gas.Used(), ReturnData: ec.returnData}
}
