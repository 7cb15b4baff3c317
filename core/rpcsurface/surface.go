// Package rpcsurface exposes the thin, in-process operations an (external,
// out-of-scope) RPC/REST/WebSocket layer calls into (spec section 6):
// getBlock, getBalance, buildTransferTx, submitTx, getTxStatus,
// getSelfClique, getChainInfo, getMisbehaviors, and a subscription stream
// of newly-applied blocks. No HTTP/WS/JSON-RPC framing lives here — every
// method is a plain Go call a framing layer can wrap however it likes.
package rpcsurface

import (
	"github.com/sirupsen/logrus"

	"github.com/shardflow/flownode/core/actor"
	"github.com/shardflow/flownode/core/blockflow"
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

// UTXOIndex resolves every unspent output locked to a given lockup script.
// WorldState's trie is keyed by OutputRef for point lookups (spec section
// 6's worldState column family); scanning by owner needs a secondary
// index, supplied here as a seam so rpcsurface stays independent of the
// concrete index (core/index.UTXOIndex, wired in by the caller).
type UTXOIndex interface {
	OutputsByLockupScript(lockupScript []byte) ([]UTXOEntry, error)
}

// UTXOEntry pairs a resolvable output reference with its current value.
type UTXOEntry struct {
	Ref    chain.OutputRef
	Output chain.TxOutput
}

// TxLocator finds where a confirmed transaction landed, for GetTxStatus.
type TxLocator interface {
	LocateTx(txID primitives.Hash) (TxLocation, bool)
}

// TxLocation is a confirmed transaction's position within a block.
type TxLocation struct {
	ChainIdx  chain.ChainIndex
	BlockHash primitives.Hash
	TxIndex   int
}

// CliqueInfo describes this node's broker identity within its clique
// (spec section 6's broker.{brokerNum,brokerId} configuration, glossary
// "Clique").
type CliqueInfo struct {
	BrokerID   uint32
	BrokerNum  uint32
	GroupCount uint32
}

// Surface is the core's exported operation set. It holds no framing state
// of its own — every field is a dependency the node wiring supplies.
type Surface struct {
	bf        *blockflow.BlockFlow
	mempool   *actor.Mempool
	acceptor  *actor.BlockAcceptor
	utxoIndex UTXOIndex
	txLocator TxLocator
	clique    CliqueInfo

	misbehaviors *misbehaviorLog
	log          *logrus.Entry
}

// New builds a Surface over the node's running actors and indices.
func New(
	bf *blockflow.BlockFlow,
	mempool *actor.Mempool,
	acceptor *actor.BlockAcceptor,
	utxoIndex UTXOIndex,
	txLocator TxLocator,
	clique CliqueInfo,
	log *logrus.Entry,
) *Surface {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Surface{
		bf:           bf,
		mempool:      mempool,
		acceptor:     acceptor,
		utxoIndex:    utxoIndex,
		txLocator:    txLocator,
		clique:       clique,
		misbehaviors: newMisbehaviorLog(),
		log:          log.WithField("component", "rpc-surface"),
	}
}

// GetBlock returns the block with the given hash, if this node holds it.
func (s *Surface) GetBlock(idx chain.ChainIndex, hash primitives.Hash) (chain.Block, bool) {
	tree := s.bf.Tree(idx)
	if tree == nil {
		return chain.Block{}, false
	}
	if !tree.Contains(hash) {
		return chain.Block{}, false
	}
	return tree.GetBlock(hash), true
}

// GetSelfClique reports this node's broker identity.
func (s *Surface) GetSelfClique() CliqueInfo {
	return s.clique
}

// ChainInfo reports a single chain's current tip height.
type ChainInfo struct {
	ChainIdx chain.ChainIndex
	Height   uint64
	Tip      primitives.Hash
	HasTip   bool
}

// GetChainInfo reports the (from,to) chain's current tip and height.
func (s *Surface) GetChainInfo(from, to uint32) ChainInfo {
	idx := chain.ChainIndex{From: from, To: to}
	info := ChainInfo{ChainIdx: idx}
	tip, ok := s.bf.GetBestTip(idx)
	if !ok {
		return info
	}
	tree := s.bf.Tree(idx)
	info.Tip = tip
	info.HasTip = true
	info.Height = tree.GetHeight(tip)
	return info
}

// Subscribe streams newly-applied blocks, per spec section 6's
// "Subscription stream of newly-applied blocks".
func (s *Surface) Subscribe(buffer int) (<-chan chain.Block, func()) {
	return s.acceptor.Subscribe(buffer)
}
