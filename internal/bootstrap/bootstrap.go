// Package bootstrap wires a flownode process's storage, state, BlockFlow
// grid, and actor set from on-disk configuration — the construction
// sequence cmd/node (which runs it continuously) and cmd/cli (which
// queries it for one invocation) both need, kept in one place so the two
// binaries can't drift apart on how a node is assembled.
package bootstrap

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shardflow/flownode/config"
	"github.com/shardflow/flownode/core/actor"
	"github.com/shardflow/flownode/core/blockflow"
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/state"
	"github.com/shardflow/flownode/core/store"
	"github.com/shardflow/flownode/core/validation"
	"github.com/shardflow/flownode/core/vm"
)

// BlockGasLimit bounds the total gas a block's non-coinbase transactions
// may spend (spec section 4.4).
const BlockGasLimit = 8_000_000

// genesisReward is the coinbase amount the first block on every chain pays
// (spec section 4.3's reward schedule, before any halving).
var genesisReward = actor.RewardSchedule{
	InitialReward:   primitives.U256FromUint64(1_000_000_000),
	HalvingInterval: 210_000,
}

// Node bundles every long-lived component a flownode process needs,
// constructed once at startup and shared by the actor supervisor and (for
// a one-shot CLI invocation) core/rpcsurface.
type Node struct {
	Config  *config.ChainConfig
	Genesis *config.GenesisConfig

	KV    *store.KeyValueStore
	World *state.WorldState

	BlockFlow  *blockflow.BlockFlow
	Mempool    *actor.Mempool
	Acceptor   *actor.BlockAcceptor
	Writer     *actor.StorageWriter
	Miner      *actor.MinerAPI
	Supervisor *actor.Supervisor

	Reward actor.RewardSchedule
}

// Open loads configPath/genesisPath, opens dataDir's on-disk store, seeds
// every chain's genesis block, and wires the full actor set. The actors
// are not yet running; call Node.Supervisor.Run to start them.
func Open(configPath, genesisPath, dataDir string, log *logrus.Entry) (*Node, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: loading config: %w", err)
	}
	genesis, err := config.LoadGenesis(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: loading genesis: %w", err)
	}

	kv, err := store.Open(dataDir, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: opening storage: %w", err)
	}

	world := state.NewWorldState(kv)
	logStates := state.NewCachedLogStates(kv)

	// The VM needs a mutable StateAccess to run contract scripts, but
	// core/actor's BlockAcceptor never commits or discards a staging
	// overlay per block (see DESIGN.md's BlockAcceptor entry) — so this
	// opens one staging pair for the process lifetime rather than one per
	// block.
	staging := state.NewStagingWorldState(world)
	stagingLogs := state.NewStagingLogStates(logStates)
	execState := state.NewExecutionState(staging, stagingLogs)
	interp := vm.NewInterpreter(BlockGasLimit, execState)

	bf := blockflow.New(genesis.GroupCount, cfg.Consensus.BlockConfirmNum, world)
	if err := seedGenesis(bf, genesis, genesisReward); err != nil {
		kv.Close()
		return nil, fmt.Errorf("bootstrap: seeding genesis: %w", err)
	}

	rules := validation.BlockRules{
		Header: validation.HeaderRules{
			GroupCount:          genesis.GroupCount,
			ClockDriftTolerance: 30 * time.Second,
		},
		BlockGasLimit: BlockGasLimit,
	}

	mempool := actor.NewMempool(world, interp, interp, log)
	acceptor := actor.NewBlockAcceptor(bf, world, world, interp, interp, rules, genesisReward, genesis.GroupCount, log)
	writer := actor.NewStorageWriter(log)
	miner := actor.NewMinerAPI(bf, mempool, acceptor, BlockGasLimit, genesisReward, log)
	supervisor := actor.NewSupervisor(acceptor, mempool, writer, miner, log)

	return &Node{
		Config:  cfg,
		Genesis: genesis,

		KV:    kv,
		World: world,

		BlockFlow:  bf,
		Mempool:    mempool,
		Acceptor:   acceptor,
		Writer:     writer,
		Miner:      miner,
		Supervisor: supervisor,

		Reward: genesisReward,
	}, nil
}

// Close releases the node's on-disk storage handle.
func (n *Node) Close() error { return n.KV.Close() }

// seedGenesis builds and roots one genesis block per chain index in the
// groupCount x groupCount grid, bypassing validation.ValidateBlock: a
// genesis block is trusted by construction rather than mined, so it only
// needs its hash to route to the chain index it roots (per
// chain.ChainIndexOf), not to satisfy its own declared PoW target the way
// every subsequent block must.
func seedGenesis(bf *blockflow.BlockFlow, genesis *config.GenesisConfig, reward actor.RewardSchedule) error {
	groupCount := genesis.GroupCount
	for from := uint32(0); from < groupCount; from++ {
		for to := uint32(0); to < groupCount; to++ {
			idx := chain.ChainIndex{From: from, To: to}
			block, err := genesisBlock(genesis, reward, idx)
			if err != nil {
				return fmt.Errorf("mining genesis nonce for chain %s: %w", idx.String(), err)
			}
			weight := block.Header.Target.Weight()
			if _, err := bf.AddAndUpdateView(block, primitives.ZeroHash, weight); err != nil {
				return fmt.Errorf("seeding genesis for chain %s: %w", idx.String(), err)
			}
		}
	}
	return nil
}

// maxGenesisNonceAttempts bounds the nonce search below: each attempt has a
// 1/groupCount^2 chance of routing to the wanted chain index, so even a
// 16x16 grid converges in a few hundred tries on average.
const maxGenesisNonceAttempts = 1_000_000

func genesisBlock(genesis *config.GenesisConfig, reward actor.RewardSchedule, idx chain.ChainIndex) (chain.Block, error) {
	coinbase := chain.Transaction{Unsigned: chain.TxUnsigned{
		FixedOutputs: []chain.AssetOutput{{Amount: reward.AmountAt(0)}},
	}}
	txs := []chain.Transaction{coinbase}
	header := chain.BlockHeader{
		Version:   1,
		TxsHash:   hashGenesisTransactions(txs),
		Timestamp: genesis.GenesisTimestamp,
		Target:    genesis.Target(),
	}
	for n := uint64(0); n < maxGenesisNonceAttempts; n++ {
		binary.LittleEndian.PutUint64(header.Nonce[:8], n)
		if chain.ChainIndexOf(header.Hash(), genesis.GroupCount) == idx {
			return chain.Block{Header: header, Transactions: txs}, nil
		}
	}
	return chain.Block{}, fmt.Errorf("no nonce routed to chain %s within %d attempts", idx.String(), maxGenesisNonceAttempts)
}

// hashGenesisTransactions mirrors core/validation's unexported
// hashTransactions: a block's declared TxsHash commits to the BLAKE3 hash
// of its transactions' own hashes, in order.
func hashGenesisTransactions(txs []chain.Transaction) primitives.Hash {
	e := primitives.NewEncoder()
	for _, tx := range txs {
		e.PutHash(tx.Hash())
	}
	return primitives.BlakeHash(e.Bytes())
}
