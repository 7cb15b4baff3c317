package rpcsurface

import (
	"context"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

// TxResult reports the outcome of a submitTx call (spec section 6).
type TxResult struct {
	TxID primitives.Hash
}

// SubmitTx attaches the caller-supplied input signatures to unsigned and
// hands the transaction to the mempool actor, returning the mempool's
// error if it rejects it (spec section 6).
func (s *Surface) SubmitTx(ctx context.Context, unsigned chain.TxUnsigned, signatures [][64]byte) (TxResult, error) {
	tx := chain.Transaction{Unsigned: unsigned, InputSignatures: signatures}
	if err := s.mempool.Submit(ctx, tx); err != nil {
		s.log.WithError(err).WithField("txID", tx.Hash()).Debug("submitTx rejected")
		return TxResult{}, err
	}
	return TxResult{TxID: tx.Hash()}, nil
}

// TxStatusKind distinguishes GetTxStatus's three-way result (spec section
// 6's {MemPooled | Confirmed(...) | NotFound}).
type TxStatusKind int

const (
	TxStatusNotFound TxStatusKind = iota
	TxStatusMemPooled
	TxStatusConfirmed
)

// TxStatus is getTxStatus's result. Only the fields matching Kind are
// meaningful; ChainConfirmations/FromConfirmations/ToConfirmations are
// populated only for TxStatusConfirmed, counting confirmations on the
// transaction's own chain and the two chain indices ("from","to") a
// cross-shard caller passes in (spec section 6: "chainConf, fromConf,
// toConf").
type TxStatus struct {
	Kind               TxStatusKind
	BlockHash          primitives.Hash
	TxIndex            int
	ChainConfirmations uint64
	FromConfirmations  uint64
	ToConfirmations    uint64
}

// GetTxStatus reports where a transaction currently stands: still pooled,
// confirmed at some depth within its own chain and the caller-supplied
// from/to chains, or unknown to this node.
func (s *Surface) GetTxStatus(txID primitives.Hash, from, to uint32) TxStatus {
	if loc, ok := s.txLocator.LocateTx(txID); ok {
		tree := s.bf.Tree(loc.ChainIdx)
		status := TxStatus{
			Kind:      TxStatusConfirmed,
			BlockHash: loc.BlockHash,
			TxIndex:   loc.TxIndex,
		}
		if tree != nil {
			status.ChainConfirmations = confirmationsOf(tree, loc.BlockHash)
		}
		if fromTree := s.bf.Tree(chain.ChainIndex{From: from, To: from}); fromTree != nil {
			status.FromConfirmations = confirmationsOf(fromTree, loc.BlockHash)
		}
		if toTree := s.bf.Tree(chain.ChainIndex{From: to, To: to}); toTree != nil {
			status.ToConfirmations = confirmationsOf(toTree, loc.BlockHash)
		}
		return status
	}
	if _, ok := s.mempool.Get(txID); ok {
		return TxStatus{Kind: TxStatusMemPooled}
	}
	return TxStatus{Kind: TxStatusNotFound}
}

func confirmationsOf(tree confirmationTree, hash primitives.Hash) uint64 {
	if !tree.Contains(hash) {
		return 0
	}
	tip, ok := tree.GetBestTip()
	if !ok {
		return 0
	}
	blockHeight := tree.GetHeight(hash)
	tipHeight := tree.GetHeight(tip)
	if tipHeight < blockHeight {
		return 0
	}
	return tipHeight - blockHeight + 1
}

// confirmationTree is the subset of *forktree.ForkTree confirmationsOf
// needs, kept narrow so it's trivially satisfied by the real tree.
type confirmationTree interface {
	Contains(hash primitives.Hash) bool
	GetBestTip() (primitives.Hash, bool)
	GetHeight(hash primitives.Hash) uint64
}
