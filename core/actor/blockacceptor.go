package actor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shardflow/flownode/core/blockflow"
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/forktree"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/validation"
)

// blockAcceptorMailboxSize bounds the acceptor's inbox; per spec section 5
// ("the block-acceptor actor bounds its mailbox; excess inbound blocks are
// dropped and re-requested later"), a full mailbox drops new sends rather
// than blocking the sender.
const blockAcceptorMailboxSize = 256

// stateCommitter is a local mirror of blockflow.StateCommitter: both
// methods take only concrete types, so BlockAcceptor can depend on this
// seam without importing core/blockflow's internals beyond BlockFlow
// itself (same reasoning as blockflow.StateCommitter/vm.StateAccess).
type stateCommitter interface {
	CommitPostState(deps []primitives.Hash, txs []chain.Transaction) (primitives.Hash, error)
}

// BlockAcceptor is the sole actor permitted to mutate the BlockFlow grid's
// fork trees and, transitively, world state (spec section 5: these are
// "owned by the BlockFlow actor; no other actor mutates them"). It
// validates inbound blocks in dependency order, holding blocks whose
// parent-in-chain hasn't arrived yet in a small retry buffer.
type BlockAcceptor struct {
	bf         *blockflow.BlockFlow
	committer  stateCommitter
	view       validation.UTXOView
	verifier   validation.ScriptVerifier
	executor   validation.ScriptExecutor
	rules      validation.BlockRules
	reward     RewardSchedule
	groupCount uint32

	inbox   chan chain.Block
	applied *blockFanout
	log     *logrus.Entry

	mu      sync.Mutex
	pending map[primitives.Hash]chain.Block
}

// NewBlockAcceptor builds a BlockAcceptor. committer computes the
// depStateHash commitment the same way blockflow does when assembling its
// own templates, so externally received blocks are checked against the
// same post-state function used to build them.
func NewBlockAcceptor(
	bf *blockflow.BlockFlow,
	committer stateCommitter,
	view validation.UTXOView,
	verifier validation.ScriptVerifier,
	executor validation.ScriptExecutor,
	rules validation.BlockRules,
	reward RewardSchedule,
	groupCount uint32,
	log *logrus.Entry,
) *BlockAcceptor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &BlockAcceptor{
		bf:         bf,
		committer:  committer,
		view:       view,
		verifier:   verifier,
		executor:   executor,
		rules:      rules,
		reward:     reward,
		groupCount: groupCount,
		inbox:      make(chan chain.Block, blockAcceptorMailboxSize),
		applied:    newBlockFanout(),
		log:        log.WithField("actor", "block-acceptor"),
		pending:    make(map[primitives.Hash]chain.Block),
	}
}

// Submit enqueues block for acceptance. It never blocks: when the mailbox
// is full the block is dropped, matching spec section 5's backpressure
// rule (the caller is expected to re-request it later).
func (a *BlockAcceptor) Submit(block chain.Block) bool {
	select {
	case a.inbox <- block:
		return true
	default:
		a.log.WithField("hash", block.Hash()).Warn("block acceptor mailbox full, dropping block")
		return false
	}
}

// Subscribe registers for newly-applied blocks (spec section 6).
func (a *BlockAcceptor) Subscribe(buffer int) (<-chan chain.Block, func()) {
	return a.applied.Subscribe(buffer)
}

// Run drains the mailbox until ctx is cancelled, applying each block in
// turn. It returns nil on clean shutdown so it composes with an
// errgroup.Group (the first non-nil return from any actor cancels the
// group's context and is surfaced to the caller).
func (a *BlockAcceptor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case block := <-a.inbox:
			a.accept(block)
			a.retryPending()
		}
	}
}

func (a *BlockAcceptor) accept(block chain.Block) {
	idx := chain.ChainIndexOf(block.Hash(), a.groupCount)
	tree := a.bf.Tree(idx)
	if tree == nil {
		a.log.WithField("chain", idx.String()).Warn("rejecting block for unknown chain index")
		return
	}

	var parentHash primitives.Hash
	if len(block.Header.BlockDeps) > 0 {
		parentHash = block.Header.BlockDeps[0]
	}

	if parentHash != primitives.ZeroHash && !tree.Contains(parentHash) {
		a.mu.Lock()
		a.pending[block.Hash()] = block
		a.mu.Unlock()
		a.log.WithField("hash", block.Hash()).Debug("holding block for missing parent dependency")
		return
	}

	var parentHeader *chain.BlockHeader
	var parentWeight primitives.U256
	height := uint64(0)
	if parentHash != primitives.ZeroHash {
		parent := tree.GetBlock(parentHash)
		parentHeader = &parent.Header
		parentWeight = tree.GetWeight(parentHash)
		height = tree.GetHeight(parentHash) + 1
	}

	nonCoinbase := block.Transactions
	if len(nonCoinbase) > 0 {
		nonCoinbase = nonCoinbase[1:]
	}
	depStateHash, err := a.committer.CommitPostState(block.Header.BlockDeps, nonCoinbase)
	if err != nil {
		a.log.WithError(err).Warn("rejecting block: post-state commitment failed")
		return
	}

	minerLockupScript := coinbaseLockupScript(block)
	blockReward := a.reward.AmountAt(height)

	if err := validation.ValidateBlock(
		block, idx, parentHeader, a.rules, depStateHash, minerLockupScript, blockReward,
		a.view, a.verifier, a.executor, time.Now(),
	); err != nil {
		a.log.WithError(err).WithField("hash", block.Hash()).Warn("rejecting invalid block")
		return
	}

	weight, err := parentWeight.Add(block.Header.Target.Weight())
	if err != nil {
		a.log.WithError(err).Warn("rejecting block: weight overflow")
		return
	}

	result, err := a.bf.AddAndUpdateView(block, parentHash, weight)
	if err != nil {
		a.log.WithError(err).Warn("rejecting block: fork tree insertion failed")
		return
	}
	if result != forktree.Success {
		return
	}

	a.mu.Lock()
	delete(a.pending, block.Hash())
	a.mu.Unlock()
	a.applied.publish(block)
}

// retryPending re-attempts every buffered block once; a block that's still
// missing its dependency stays buffered for the next call.
func (a *BlockAcceptor) retryPending() {
	a.mu.Lock()
	waiting := make([]chain.Block, 0, len(a.pending))
	for _, b := range a.pending {
		waiting = append(waiting, b)
	}
	a.mu.Unlock()
	for _, b := range waiting {
		a.accept(b)
	}
}

func coinbaseLockupScript(block chain.Block) []byte {
	if len(block.Transactions) == 0 || len(block.Transactions[0].Unsigned.FixedOutputs) == 0 {
		return nil
	}
	return block.Transactions[0].Unsigned.FixedOutputs[0].LockupScript
}
