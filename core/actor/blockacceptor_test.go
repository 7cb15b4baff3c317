package actor

import (
	"context"
	"testing"
	"time"

	"github.com/shardflow/flownode/core/blockflow"
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/validation"
)

// easyTarget meets almost any hash, avoiding a real mining search in tests
// (same constant the validation package's own tests use).
var easyTarget = primitives.Target{0x20, 0xFF, 0xFF, 0xFF}

type fixedCommitter struct{ h primitives.Hash }

func (f fixedCommitter) CommitPostState(deps []primitives.Hash, txs []chain.Transaction) (primitives.Hash, error) {
	return f.h, nil
}

type nullView struct{}

func (nullView) GetOutput(ref chain.OutputRef) (chain.TxOutput, bool, error) {
	return chain.TxOutput{}, false, nil
}

func hashTransactionsForTest(txs []chain.Transaction) primitives.Hash {
	e := primitives.NewEncoder()
	for _, tx := range txs {
		e.PutHash(tx.Hash())
	}
	return primitives.BlakeHash(e.Bytes())
}

func coinbaseOnlyBlock(t *testing.T, deps []primitives.Hash, depStateHash primitives.Hash, amount uint64, lockup []byte, timestamp int64) chain.Block {
	t.Helper()
	coinbase := chain.Transaction{Unsigned: chain.TxUnsigned{
		FixedOutputs: []chain.AssetOutput{{Amount: primitives.U256FromUint64(amount), LockupScript: lockup}},
	}}
	txs := []chain.Transaction{coinbase}
	header := chain.BlockHeader{
		Version:      1,
		BlockDeps:    deps,
		DepStateHash: depStateHash,
		TxsHash:      hashTransactionsForTest(txs),
		Timestamp:    timestamp,
		Target:       easyTarget,
	}
	return chain.Block{Header: header, Transactions: txs}
}

func newTestAcceptor(t *testing.T) (*BlockAcceptor, *blockflow.BlockFlow) {
	t.Helper()
	committer := fixedCommitter{h: primitives.BlakeHash([]byte("fixed-post-state"))}
	bf := blockflow.New(1, 10, committer)
	rules := validation.BlockRules{
		Header:        validation.HeaderRules{GroupCount: 1, ClockDriftTolerance: time.Minute},
		BlockGasLimit: 1_000_000,
	}
	reward := RewardSchedule{InitialReward: primitives.U256FromUint64(1000)}
	acc := NewBlockAcceptor(bf, committer, nullView{}, nil, nil, rules, reward, 1, nil)
	return acc, bf
}

func TestBlockAcceptorAcceptsGenesisThenChild(t *testing.T) {
	acc, bf := newTestAcceptor(t)
	postState := primitives.BlakeHash([]byte("fixed-post-state"))

	genesis := coinbaseOnlyBlock(t, []primitives.Hash{primitives.ZeroHash}, postState, 1000, []byte("miner"), 1)
	acc.accept(genesis)

	if _, ok := bf.GetBestTip(chain.ChainIndex{From: 0, To: 0}); !ok {
		t.Fatal("expected genesis to be accepted as the chain's tip")
	}

	child := coinbaseOnlyBlock(t, []primitives.Hash{genesis.Hash()}, postState, 1000, []byte("miner"), 2)
	acc.accept(child)

	tip, ok := bf.GetBestTip(chain.ChainIndex{From: 0, To: 0})
	if !ok || tip != child.Hash() {
		t.Fatalf("expected child to become the new tip, got tip=%s ok=%v", tip, ok)
	}
}

func TestBlockAcceptorBuffersMissingParentThenApplies(t *testing.T) {
	acc, bf := newTestAcceptor(t)
	postState := primitives.BlakeHash([]byte("fixed-post-state"))

	genesis := coinbaseOnlyBlock(t, []primitives.Hash{primitives.ZeroHash}, postState, 1000, []byte("miner"), 1)
	child := coinbaseOnlyBlock(t, []primitives.Hash{genesis.Hash()}, postState, 1000, []byte("miner"), 2)

	// Submit the child before its parent exists: it should be buffered,
	// not rejected outright.
	acc.accept(child)
	if _, ok := bf.GetBestTip(chain.ChainIndex{From: 0, To: 0}); ok {
		t.Fatal("expected no tip before genesis arrives")
	}

	acc.accept(genesis)
	acc.retryPending()

	tip, ok := bf.GetBestTip(chain.ChainIndex{From: 0, To: 0})
	if !ok || tip != child.Hash() {
		t.Fatalf("expected buffered child to apply once its parent arrived, got tip=%s ok=%v", tip, ok)
	}
}

func TestBlockAcceptorRejectsBadCoinbaseAmount(t *testing.T) {
	acc, bf := newTestAcceptor(t)
	postState := primitives.BlakeHash([]byte("fixed-post-state"))

	bad := coinbaseOnlyBlock(t, []primitives.Hash{primitives.ZeroHash}, postState, 1, []byte("miner"), 1)
	acc.accept(bad)

	if _, ok := bf.GetBestTip(chain.ChainIndex{From: 0, To: 0}); ok {
		t.Fatal("expected block with wrong coinbase amount to be rejected")
	}
}

func TestBlockAcceptorSubmitDropsWhenMailboxFull(t *testing.T) {
	acc, _ := newTestAcceptor(t)
	block := coinbaseOnlyBlock(t, []primitives.Hash{primitives.ZeroHash}, primitives.Hash{}, 1000, []byte("miner"), 1)
	for i := 0; i < blockAcceptorMailboxSize; i++ {
		if !acc.Submit(block) {
			t.Fatalf("mailbox reported full before reaching its capacity, at %d", i)
		}
	}
	if acc.Submit(block) {
		t.Fatal("expected Submit to report false once the mailbox is full")
	}
}

func TestBlockAcceptorRunAppliesSubmittedBlocks(t *testing.T) {
	acc, bf := newTestAcceptor(t)
	postState := primitives.BlakeHash([]byte("fixed-post-state"))
	genesis := coinbaseOnlyBlock(t, []primitives.Hash{primitives.ZeroHash}, postState, 1000, []byte("miner"), 1)

	sub, cancel := acc.Subscribe(1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- acc.Run(ctx) }()

	acc.Submit(genesis)

	select {
	case applied := <-sub:
		if applied.Hash() != genesis.Hash() {
			t.Fatalf("subscription delivered wrong block")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for applied-block notification")
	}

	stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to stop")
	}

	if _, ok := bf.GetBestTip(chain.ChainIndex{From: 0, To: 0}); !ok {
		t.Fatal("expected genesis to be applied via Run")
	}
}
