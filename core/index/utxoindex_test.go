package index

import (
	"testing"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

func txHash(seed string) primitives.Hash { return primitives.BlakeHash([]byte(seed)) }

func TestUTXOIndexApplyAddsGeneratedOutputs(t *testing.T) {
	idx := New()
	script := []byte("alice-lockup")

	coinbase := chain.Transaction{Unsigned: chain.TxUnsigned{
		FixedOutputs: []chain.AssetOutput{{Amount: primitives.U256FromUint64(100), LockupScript: script}},
	}}
	block := chain.Block{Transactions: []chain.Transaction{coinbase}}
	chainIdx := chain.ChainIndex{From: 0, To: 0}

	idx.Apply(chainIdx, block)

	entries, err := idx.OutputsByLockupScript(script)
	if err != nil {
		t.Fatalf("OutputsByLockupScript: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	if entries[0].Output.Amount().Uint64() != 100 {
		t.Fatalf("want amount 100, got %v", entries[0].Output.Amount())
	}

	loc, ok := idx.LocateTx(coinbase.Hash())
	if !ok {
		t.Fatal("expected coinbase tx to be located")
	}
	if loc.ChainIdx != chainIdx {
		t.Fatalf("want chainIdx %v, got %v", chainIdx, loc.ChainIdx)
	}
	if loc.TxIndex != 0 {
		t.Fatalf("want txIndex 0, got %d", loc.TxIndex)
	}
}

func TestUTXOIndexApplyRemovesSpentOutputs(t *testing.T) {
	idx := New()
	script := []byte("bob-lockup")

	funding := chain.Transaction{Unsigned: chain.TxUnsigned{
		FixedOutputs: []chain.AssetOutput{{Amount: primitives.U256FromUint64(50), LockupScript: script}},
	}}
	block1 := chain.Block{Transactions: []chain.Transaction{funding}}
	idx.Apply(chain.ChainIndex{From: 0, To: 0}, block1)

	entries, err := idx.OutputsByLockupScript(script)
	if err != nil {
		t.Fatalf("OutputsByLockupScript: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry after funding, got %d", len(entries))
	}
	spentRef := entries[0].Ref

	spend := chain.Transaction{Unsigned: chain.TxUnsigned{
		Inputs: []chain.TxInput{{OutputRef: spentRef}},
	}}
	block2 := chain.Block{Transactions: []chain.Transaction{spend}}
	idx.Apply(chain.ChainIndex{From: 0, To: 0}, block2)

	entries, err = idx.OutputsByLockupScript(script)
	if err != nil {
		t.Fatalf("OutputsByLockupScript after spend: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("want 0 entries after spend, got %d", len(entries))
	}
}

func TestUTXOIndexLocateTxUnknown(t *testing.T) {
	idx := New()
	if _, ok := idx.LocateTx(txHash("nowhere")); ok {
		t.Fatal("expected unknown tx to be unlocated")
	}
}

func TestUTXOIndexOutputsByLockupScriptEmpty(t *testing.T) {
	idx := New()
	entries, err := idx.OutputsByLockupScript([]byte("nobody"))
	if err != nil {
		t.Fatalf("OutputsByLockupScript: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("want 0 entries, got %d", len(entries))
	}
}
