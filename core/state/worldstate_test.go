package state

import (
	"testing"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

func assetOutput(amount uint64, lockup string) chain.TxOutput {
	return chain.TxOutput{Kind: chain.TxOutputAsset, Asset: chain.AssetOutput{
		Amount:       primitives.U256FromUint64(amount),
		LockupScript: []byte(lockup),
	}}
}

func TestWorldStatePutGetOutput(t *testing.T) {
	ws := NewWorldState(nil)
	ref := chain.OutputRef{Key: primitives.BlakeHash([]byte("ref-a"))}
	out := assetOutput(100, "lockup-a")

	if err := ws.PutOutput(ref, out); err != nil {
		t.Fatalf("PutOutput: %v", err)
	}
	got, ok, err := ws.GetOutput(ref)
	if err != nil || !ok {
		t.Fatalf("GetOutput: %v %v", ok, err)
	}
	if got.Amount().Cmp(out.Amount()) != 0 {
		t.Fatalf("amount mismatch: got %v want %v", got.Amount(), out.Amount())
	}
}

func TestWorldStateSpendOutputChangesRoot(t *testing.T) {
	ws := NewWorldState(nil)
	ref := chain.OutputRef{Key: primitives.BlakeHash([]byte("ref-a"))}
	if err := ws.PutOutput(ref, assetOutput(100, "lockup-a")); err != nil {
		t.Fatalf("PutOutput: %v", err)
	}
	withOutput := ws.RootHash()

	if err := ws.SpendOutput(ref); err != nil {
		t.Fatalf("SpendOutput: %v", err)
	}
	withoutOutput := ws.RootHash()
	if withOutput == withoutOutput {
		t.Fatalf("expected root to change after spending the only output")
	}
	if _, ok, err := ws.GetOutput(ref); err != nil || ok {
		t.Fatalf("expected spent output to be absent, got ok=%v err=%v", ok, err)
	}
}

func TestWorldStateContractLifecycle(t *testing.T) {
	ws := NewWorldState(nil)
	txHash := primitives.BlakeHash([]byte("creating-tx"))
	codeHash := primitives.BlakeHash([]byte("code"))
	asset := chain.AssetOutput{Amount: primitives.U256FromUint64(500), LockupScript: []byte("contract-lock")}

	id, err := ws.CreateContract(txHash, 0, codeHash, [][]byte{[]byte("field-0")}, asset)
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	cs, ok, err := ws.GetContract(id)
	if err != nil || !ok {
		t.Fatalf("GetContract: %v %v", ok, err)
	}
	if cs.CodeHash != codeHash {
		t.Fatalf("code hash mismatch")
	}

	if err := ws.DestroyContract(id, []byte("beneficiary")); err != nil {
		t.Fatalf("DestroyContract: %v", err)
	}
	if _, ok, err := ws.GetContract(id); err != nil || ok {
		t.Fatalf("expected destroyed contract to be absent, got ok=%v err=%v", ok, err)
	}
}

func TestStagingWorldStateCommit(t *testing.T) {
	ws := NewWorldState(nil)
	ref := chain.OutputRef{Key: primitives.BlakeHash([]byte("ref-a"))}

	staged := NewStagingWorldState(ws)
	if err := staged.PutOutput(ref, assetOutput(100, "lockup-a")); err != nil {
		t.Fatalf("PutOutput: %v", err)
	}

	// Not visible on the parent until Commit.
	if _, ok, err := ws.GetOutput(ref); err != nil || ok {
		t.Fatalf("expected staged write to be invisible on parent before commit, got ok=%v err=%v", ok, err)
	}

	staged.Commit()

	got, ok, err := ws.GetOutput(ref)
	if err != nil || !ok {
		t.Fatalf("expected committed output to be visible on parent, got ok=%v err=%v", ok, err)
	}
	if got.Amount().Uint64() != 100 {
		t.Fatalf("amount mismatch after commit: got %d", got.Amount().Uint64())
	}
	if ws.RootHash() != staged.Root() {
		t.Fatalf("expected parent root to match staged root after commit")
	}
}

func TestStagingWorldStateDiscard(t *testing.T) {
	ws := NewWorldState(nil)
	ref := chain.OutputRef{Key: primitives.BlakeHash([]byte("ref-a"))}
	before := ws.RootHash()

	staged := NewStagingWorldState(ws)
	if err := staged.PutOutput(ref, assetOutput(100, "lockup-a")); err != nil {
		t.Fatalf("PutOutput: %v", err)
	}
	staged.Discard()

	if ws.RootHash() != before {
		t.Fatalf("expected discard to leave the parent root unchanged")
	}
	if _, ok, err := ws.GetOutput(ref); err != nil || ok {
		t.Fatalf("expected discarded write to be invisible on parent, got ok=%v err=%v", ok, err)
	}
}

func TestCommitPostStateAppliesTransactionEffects(t *testing.T) {
	ws := NewWorldState(nil)
	ref := chain.OutputRef{Key: primitives.BlakeHash([]byte("ref-a"))}
	if err := ws.PutOutput(ref, assetOutput(1000, "lockup-a")); err != nil {
		t.Fatalf("PutOutput: %v", err)
	}
	before := ws.RootHash()

	tx := chain.Transaction{Unsigned: chain.TxUnsigned{
		Inputs:       []chain.TxInput{{OutputRef: ref}},
		FixedOutputs: []chain.AssetOutput{{Amount: primitives.U256FromUint64(900), LockupScript: []byte("dest")}},
	}}

	root, err := ws.CommitPostState(nil, []chain.Transaction{tx})
	if err != nil {
		t.Fatalf("CommitPostState: %v", err)
	}
	if root == before {
		t.Fatalf("expected CommitPostState to reflect the spend/create effects in its root")
	}
	// CommitPostState must not mutate the parent.
	if ws.RootHash() != before {
		t.Fatalf("expected CommitPostState to leave the parent world state untouched")
	}
}
