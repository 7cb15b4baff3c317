package state

import (
	"testing"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

func TestStagingWorldStateContractLifecycle(t *testing.T) {
	ws := NewWorldState(nil)
	staged := NewStagingWorldState(ws)
	txHash := primitives.BlakeHash([]byte("creating-tx"))
	codeHash := primitives.BlakeHash([]byte("code"))
	asset := chain.AssetOutput{Amount: primitives.U256FromUint64(500), LockupScript: []byte("contract-lock")}

	id, err := staged.CreateContract(txHash, 0, codeHash, [][]byte{[]byte("field-0")}, asset)
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	// Invisible on the parent until Commit.
	if _, ok, err := ws.GetContract(id); err != nil || ok {
		t.Fatalf("expected staged contract to be invisible on parent, got ok=%v err=%v", ok, err)
	}

	if err := staged.DestroyContract(id, []byte("beneficiary")); err != nil {
		t.Fatalf("DestroyContract: %v", err)
	}
	staged.Commit()

	if _, ok, err := ws.GetContract(id); err != nil || ok {
		t.Fatalf("expected destroyed contract to stay absent after commit, got ok=%v err=%v", ok, err)
	}
}

func TestExecutionStateFields(t *testing.T) {
	ws := NewWorldState(nil)
	staged := NewStagingWorldState(ws)
	logs := NewStagingLogStates(NewCachedLogStates(nil))
	exec := NewExecutionState(staged, logs)

	txHash := primitives.BlakeHash([]byte("tx"))
	codeHash := primitives.BlakeHash([]byte("code"))
	id, err := exec.CreateContract(txHash, 0, codeHash, [][]byte{[]byte("zero")}, primitives.U256FromUint64(10), []byte("lockup"))
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	if err := exec.SetField(id, 2, []byte("grown")); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	v, ok, err := exec.GetField(id, 2)
	if err != nil || !ok {
		t.Fatalf("GetField: ok=%v err=%v", ok, err)
	}
	if string(v) != "grown" {
		t.Fatalf("field = %q, want %q", v, "grown")
	}

	v0, ok, err := exec.GetField(id, 0)
	if err != nil || !ok || string(v0) != "zero" {
		t.Fatalf("field 0 = %q ok=%v err=%v, want %q", v0, ok, err, "zero")
	}

	counter, err := exec.EmitLog(id, "Transfer", []byte("payload"))
	if err != nil {
		t.Fatalf("EmitLog: %v", err)
	}
	if counter != 0 {
		t.Fatalf("counter = %d, want 0", counter)
	}
	entries, err := Range(logs, id, "", 0, 10)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(entries) != 1 || entries[0].EventType != "Transfer" {
		t.Fatalf("entries = %v, want one Transfer entry", entries)
	}
}

func TestExecutionStateSetFieldUnknownContract(t *testing.T) {
	ws := NewWorldState(nil)
	staged := NewStagingWorldState(ws)
	logs := NewStagingLogStates(NewCachedLogStates(nil))
	exec := NewExecutionState(staged, logs)

	if err := exec.SetField(primitives.Hash{}, 0, []byte("x")); err == nil {
		t.Fatal("expected error writing a field on a nonexistent contract")
	}
}
