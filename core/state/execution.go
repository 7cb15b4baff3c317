package state

import (
	"errors"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

// ExecutionState adapts a StagingWorldState and StagingLogStates pair to
// core/vm.StateAccess, the seam that keeps the VM independent of this
// package (the same dependency-inversion pattern as core/validation's
// UTXOView/ScriptVerifier and core/blockflow's StateCommitter). A script's
// field reads/writes, contract lifecycle calls, and log emissions all go
// to that one staging pair, so they commit or discard together.
type ExecutionState struct {
	World *StagingWorldState
	Logs  *StagingLogStates
}

// NewExecutionState builds an ExecutionState over a block's staged world
// state and log overlay.
func NewExecutionState(world *StagingWorldState, logs *StagingLogStates) *ExecutionState {
	return &ExecutionState{World: world, Logs: logs}
}

// GetField reads a contract's field at index, implementing core/vm.StateAccess.
func (e *ExecutionState) GetField(contractID primitives.Hash, index int) ([]byte, bool, error) {
	cs, ok, err := e.World.GetContract(contractID)
	if err != nil || !ok {
		return nil, ok, err
	}
	if index < 0 || index >= len(cs.Fields) {
		return nil, false, nil
	}
	return cs.Fields[index], true, nil
}

// SetField writes a contract's field at index, growing the field array if
// necessary, implementing core/vm.StateAccess.
func (e *ExecutionState) SetField(contractID primitives.Hash, index int, value []byte) error {
	cs, ok, err := e.World.GetContract(contractID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("state: unknown contract")
	}
	if index < 0 {
		return errors.New("state: negative field index")
	}
	if index >= len(cs.Fields) {
		grown := make([][]byte, index+1)
		copy(grown, cs.Fields)
		cs.Fields = grown
	}
	cs.Fields[index] = value
	return e.World.PutContract(contractID, cs)
}

// CreateContract stages a new contract, implementing core/vm.StateAccess.
func (e *ExecutionState) CreateContract(creatingTx primitives.Hash, index uint32, codeHash primitives.Hash, fields [][]byte, initialAmount primitives.U256, initialLockupScript []byte) (primitives.Hash, error) {
	asset := chain.AssetOutput{Amount: initialAmount, LockupScript: initialLockupScript}
	return e.World.CreateContract(creatingTx, index, codeHash, fields, asset)
}

// DestroyContract stages a contract's removal, implementing core/vm.StateAccess.
func (e *ExecutionState) DestroyContract(id primitives.Hash, beneficiaryLockupScript []byte) error {
	return e.World.DestroyContract(id, beneficiaryLockupScript)
}

// EmitLog appends an event to the contract's staged log, implementing
// core/vm.StateAccess.
func (e *ExecutionState) EmitLog(contractID primitives.Hash, eventType string, data []byte) (uint64, error) {
	return e.Logs.Append(contractID, eventType, data)
}
