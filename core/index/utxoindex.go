// Package index maintains in-memory secondary indices over the stream of
// newly-applied blocks: unspent outputs keyed by owning lockup script, and
// confirmed transaction locations. core/state's trie is keyed by
// OutputRef/contract ID only (spec section 6's worldState column family),
// so core/rpcsurface's getBalance/buildTransferTx/getTxStatus need this
// seam supplied externally rather than scanning the trie directly — the
// same dependency-inversion shape as core/blockflow.StateCommitter.
package index

import (
	"sync"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/rpcsurface"
)

// UTXOIndex implements rpcsurface.UTXOIndex and rpcsurface.TxLocator by
// replaying the BlockAcceptor's applied-block stream, the same way
// core/actor.Supervisor wires Mempool.Remove to that stream.
type UTXOIndex struct {
	mu        sync.RWMutex
	byScript  map[string]map[chain.OutputRef]chain.TxOutput
	locations map[primitives.Hash]rpcsurface.TxLocation
}

// New returns an empty UTXOIndex.
func New() *UTXOIndex {
	return &UTXOIndex{
		byScript:  make(map[string]map[chain.OutputRef]chain.TxOutput),
		locations: make(map[primitives.Hash]rpcsurface.TxLocation),
	}
}

// Apply folds a newly-confirmed block into the index: every input's
// referenced output is removed, every fixed and generated output is added under its
// owning lockup script, and every included transaction's confirmed
// location is recorded.
func (idx *UTXOIndex) Apply(chainIdx chain.ChainIndex, block chain.Block) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	blockHash := block.Hash()
	for txIndex, tx := range block.Transactions {
		for _, in := range tx.Unsigned.Inputs {
			idx.removeLocked(in.OutputRef)
		}
		for outIndex, out := range tx.Unsigned.FixedOutputs {
			ref := outputRef(tx.Hash(), outIndex)
			idx.putLocked(ref, chain.TxOutput{Kind: chain.TxOutputAsset, Asset: out})
		}
		for genIndex, out := range tx.GeneratedOutputs {
			ref := outputRef(tx.Hash(), len(tx.Unsigned.FixedOutputs)+genIndex)
			idx.putLocked(ref, out)
		}
		idx.locations[tx.Hash()] = rpcsurface.TxLocation{
			ChainIdx:  chainIdx,
			BlockHash: blockHash,
			TxIndex:   txIndex,
		}
	}
}

func (idx *UTXOIndex) putLocked(ref chain.OutputRef, out chain.TxOutput) {
	script := string(out.LockupScript())
	bucket, ok := idx.byScript[script]
	if !ok {
		bucket = make(map[chain.OutputRef]chain.TxOutput)
		idx.byScript[script] = bucket
	}
	bucket[ref] = out
}

func (idx *UTXOIndex) removeLocked(ref chain.OutputRef) {
	for script, bucket := range idx.byScript {
		if _, ok := bucket[ref]; ok {
			delete(bucket, ref)
			if len(bucket) == 0 {
				delete(idx.byScript, script)
			}
			return
		}
	}
}

// OutputsByLockupScript implements rpcsurface.UTXOIndex.
func (idx *UTXOIndex) OutputsByLockupScript(lockupScript []byte) ([]rpcsurface.UTXOEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bucket := idx.byScript[string(lockupScript)]
	out := make([]rpcsurface.UTXOEntry, 0, len(bucket))
	for ref, entry := range bucket {
		out = append(out, rpcsurface.UTXOEntry{Ref: ref, Output: entry})
	}
	return out, nil
}

// LocateTx implements rpcsurface.TxLocator.
func (idx *UTXOIndex) LocateTx(txID primitives.Hash) (rpcsurface.TxLocation, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	loc, ok := idx.locations[txID]
	return loc, ok
}

// outputRef derives a stable reference for a transaction's Nth output
// (fixed outputs first, then generated ones). The ref is stable within
// this process only; it does not match the keys that
// core/state.WorldState.CommitPostState derives for the same outputs.
func outputRef(txHash primitives.Hash, n int) chain.OutputRef {
	e := primitives.NewEncoder()
	e.PutHash(txHash)
	e.PutUint32(uint32(n))
	return chain.OutputRef{Key: primitives.BlakeHash(e.Bytes())}
}
