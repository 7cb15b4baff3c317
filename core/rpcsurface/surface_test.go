package rpcsurface

import (
	"context"
	"testing"
	"time"

	"github.com/shardflow/flownode/core/actor"
	"github.com/shardflow/flownode/core/blockflow"
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/validation"
)

var easyTarget = primitives.Target{0x20, 0xFF, 0xFF, 0xFF}

type fixedCommitter struct{ h primitives.Hash }

func (f fixedCommitter) CommitPostState(deps []primitives.Hash, txs []chain.Transaction) (primitives.Hash, error) {
	return f.h, nil
}

type mapUTXOIndex struct {
	byScript map[string][]UTXOEntry
}

func (m *mapUTXOIndex) OutputsByLockupScript(script []byte) ([]UTXOEntry, error) {
	return m.byScript[string(script)], nil
}

type mapTxLocator struct {
	locations map[primitives.Hash]TxLocation
}

func (m *mapTxLocator) LocateTx(txID primitives.Hash) (TxLocation, bool) {
	loc, ok := m.locations[txID]
	return loc, ok
}

func hashTransactionsForTest(txs []chain.Transaction) primitives.Hash {
	e := primitives.NewEncoder()
	for _, tx := range txs {
		e.PutHash(tx.Hash())
	}
	return primitives.BlakeHash(e.Bytes())
}

func coinbaseOnlyBlock(deps []primitives.Hash, depStateHash primitives.Hash, amount uint64, lockup []byte, timestamp int64) chain.Block {
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

func newTestSurface(t *testing.T) (*Surface, *blockflow.BlockFlow, *actor.BlockAcceptor) {
	t.Helper()
	committer := fixedCommitter{h: primitives.BlakeHash([]byte("fixed-post-state"))}
	bf := blockflow.New(1, 10, committer)
	rules := validation.BlockRules{
		Header:        validation.HeaderRules{GroupCount: 1, ClockDriftTolerance: time.Minute},
		BlockGasLimit: 1_000_000,
	}
	reward := actor.RewardSchedule{InitialReward: primitives.U256FromUint64(1000)}
	acceptor := actor.NewBlockAcceptor(bf, committer, nil, nil, nil, rules, reward, 1, nil)
	mempool := actor.NewMempool(nil, nil, nil, nil)
	idx := &mapUTXOIndex{byScript: make(map[string][]UTXOEntry)}
	loc := &mapTxLocator{locations: make(map[primitives.Hash]TxLocation)}
	clique := CliqueInfo{BrokerID: 0, BrokerNum: 1, GroupCount: 1}
	s := New(bf, mempool, acceptor, idx, loc, clique, nil)
	return s, bf, acceptor
}

func runAcceptorAndSubmit(t *testing.T, acceptor *actor.BlockAcceptor, block chain.Block) {
	t.Helper()
	sub, cancel := acceptor.Subscribe(1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go acceptor.Run(ctx)

	acceptor.Submit(block)
	select {
	case <-sub:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for block to be applied")
	}
}

func TestGetBlockFindsAcceptedBlock(t *testing.T) {
	s, _, acceptor := newTestSurface(t)
	postState := primitives.BlakeHash([]byte("fixed-post-state"))
	genesis := coinbaseOnlyBlock([]primitives.Hash{primitives.ZeroHash}, postState, 1000, []byte("miner"), 1)

	runAcceptorAndSubmit(t, acceptor, genesis)

	idx := chain.ChainIndex{From: 0, To: 0}
	block, ok := s.GetBlock(idx, genesis.Hash())
	if !ok || block.Hash() != genesis.Hash() {
		t.Fatalf("expected to find accepted genesis block, ok=%v", ok)
	}

	if _, ok := s.GetBlock(idx, primitives.BlakeHash([]byte("unknown"))); ok {
		t.Fatal("expected unknown hash to be absent")
	}
}

func TestGetChainInfoReportsTipHeight(t *testing.T) {
	s, _, acceptor := newTestSurface(t)
	postState := primitives.BlakeHash([]byte("fixed-post-state"))
	genesis := coinbaseOnlyBlock([]primitives.Hash{primitives.ZeroHash}, postState, 1000, []byte("miner"), 1)
	runAcceptorAndSubmit(t, acceptor, genesis)

	info := s.GetChainInfo(0, 0)
	if !info.HasTip || info.Tip != genesis.Hash() || info.Height != 0 {
		t.Fatalf("unexpected chain info: %+v", info)
	}
}

func TestGetBalanceSplitsLockedAndUnlocked(t *testing.T) {
	s, _, _ := newTestSurface(t)
	addr := primitives.NewP2PKH(primitives.KeccakHash([]byte("owner-key")))
	script, err := addr.RawBytes()
	if err != nil {
		t.Fatalf("RawBytes: %v", err)
	}

	far := time.Now().Add(time.Hour).UnixMilli()
	entries := []UTXOEntry{
		{Ref: chain.OutputRef{Key: primitives.BlakeHash([]byte("a"))}, Output: chain.TxOutput{
			Kind: chain.TxOutputAsset, Asset: chain.AssetOutput{Amount: primitives.U256FromUint64(100)},
		}},
		{Ref: chain.OutputRef{Key: primitives.BlakeHash([]byte("b"))}, Output: chain.TxOutput{
			Kind: chain.TxOutputAsset, Asset: chain.AssetOutput{Amount: primitives.U256FromUint64(50), LockTime: far},
		}},
	}
	s.utxoIndex.(*mapUTXOIndex).byScript[string(script)] = entries

	bal, err := s.GetBalance(addr)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.UTXOCount != 2 {
		t.Fatalf("UTXOCount = %d, want 2", bal.UTXOCount)
	}
	if bal.Alph.Cmp(primitives.U256FromUint64(100)) != 0 {
		t.Fatalf("Alph = %s, want 100", bal.Alph)
	}
	if bal.LockedAlph.Cmp(primitives.U256FromUint64(50)) != 0 {
		t.Fatalf("LockedAlph = %s, want 50", bal.LockedAlph)
	}
}

func TestBuildTransferTxSelectsUTXOsAndAddsChange(t *testing.T) {
	s, _, _ := newTestSurface(t)
	fromPub := []byte("sender-pubkey")
	fromAddr := primitives.NewP2PKH(primitives.KeccakHash(fromPub))
	fromScript, err := fromAddr.RawBytes()
	if err != nil {
		t.Fatalf("RawBytes: %v", err)
	}

	s.utxoIndex.(*mapUTXOIndex).byScript[string(fromScript)] = []UTXOEntry{
		{Ref: chain.OutputRef{Key: primitives.BlakeHash([]byte("u1"))}, Output: chain.TxOutput{
			Kind: chain.TxOutputAsset, Asset: chain.AssetOutput{Amount: primitives.U256FromUint64(700)},
		}},
	}

	dest := primitives.NewP2PKH(primitives.KeccakHash([]byte("recipient-key")))
	unsigned, err := s.BuildTransferTx(fromPub, []Destination{{Address: dest, Amount: primitives.U256FromUint64(500)}}, GasOptions{
		GasAmount: 100, GasPrice: primitives.U256FromUint64(1),
	})
	if err != nil {
		t.Fatalf("BuildTransferTx: %v", err)
	}
	if len(unsigned.Inputs) != 1 {
		t.Fatalf("expected exactly one selected input, got %d", len(unsigned.Inputs))
	}
	if len(unsigned.FixedOutputs) != 2 {
		t.Fatalf("expected destination + change output, got %d", len(unsigned.FixedOutputs))
	}
	change := unsigned.FixedOutputs[1]
	if change.Amount.Cmp(primitives.U256FromUint64(100)) != 0 {
		t.Fatalf("change = %s, want 100 (700 - 500 - 100 gas)", change.Amount)
	}
}

func TestBuildTransferTxRejectsInsufficientFunds(t *testing.T) {
	s, _, _ := newTestSurface(t)
	fromPub := []byte("poor-sender")
	dest := primitives.NewP2PKH(primitives.KeccakHash([]byte("recipient-key")))
	_, err := s.BuildTransferTx(fromPub, []Destination{{Address: dest, Amount: primitives.U256FromUint64(1)}}, GasOptions{})
	if err == nil {
		t.Fatal("expected an error for a sender with no spendable outputs")
	}
}

func TestGetTxStatusReportsNotFoundForUnknownTx(t *testing.T) {
	s, _, _ := newTestSurface(t)
	txID := primitives.BlakeHash([]byte("never-submitted"))
	status := s.GetTxStatus(txID, 0, 0)
	if status.Kind != TxStatusNotFound {
		t.Fatalf("expected NotFound, got %v", status.Kind)
	}
}

func TestRecordAndGetMisbehaviors(t *testing.T) {
	s, _, _ := newTestSurface(t)
	s.RecordMisbehavior("peer-1", "malformed header")
	s.RecordMisbehavior("peer-2", "serde error")

	got := s.GetMisbehaviors()
	if len(got) != 2 {
		t.Fatalf("expected 2 recorded demerits, got %d", len(got))
	}
}

func TestSubscribeReceivesAppliedBlocks(t *testing.T) {
	s, _, acceptor := newTestSurface(t)
	sub, cancel := s.Subscribe(1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go acceptor.Run(ctx)

	postState := primitives.BlakeHash([]byte("fixed-post-state"))
	genesis := coinbaseOnlyBlock([]primitives.Hash{primitives.ZeroHash}, postState, 1000, []byte("miner"), 1)
	acceptor.Submit(genesis)

	select {
	case applied := <-sub:
		if applied.Hash() != genesis.Hash() {
			t.Fatal("expected subscription to deliver the submitted block")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for applied-block notification")
	}
}
