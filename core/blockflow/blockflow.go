// Package blockflow composes the G x G grid of per-chain fork trees from
// spec section 4.3: selecting each chain's canonical cross-chain
// dependencies (bestDeps), building block templates, and answering the
// cross-chain weight/ancestry queries the validator and miner consume.
package blockflow

import (
	"sort"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/forktree"
	"github.com/shardflow/flownode/core/primitives"
)

// StateCommitter computes the post-state commitment hash for a proposed
// block's chosen deps and transactions. It is implemented by core/state and
// injected here so blockflow stays decoupled from the world-state/VM layer
// (spec section 2's "leaves-first" layering).
type StateCommitter interface {
	CommitPostState(deps []primitives.Hash, txs []chain.Transaction) (primitives.Hash, error)
}

// hashStateCommitter is the fallback used when no StateCommitter is wired,
// e.g. in isolated blockflow unit tests: it commits to a hash of its inputs
// rather than a real world-state root.
type hashStateCommitter struct{}

func (hashStateCommitter) CommitPostState(deps []primitives.Hash, txs []chain.Transaction) (primitives.Hash, error) {
	e := primitives.NewEncoder()
	for _, d := range deps {
		e.PutHash(d)
	}
	for _, tx := range txs {
		e.PutHash(tx.Hash())
	}
	return primitives.BlakeHash(e.Bytes()), nil
}

// BlockFlow composes one ForkTree per chain index into the coherent
// multi-chain view described in spec section 4.3.
type BlockFlow struct {
	groupCount   uint32
	confirmDepth uint64
	trees        map[chain.ChainIndex]*forktree.ForkTree
	committer    StateCommitter
}

// New creates an empty BlockFlow over a groupCount x groupCount grid.
func New(groupCount uint32, confirmDepth uint64, committer StateCommitter) *BlockFlow {
	if committer == nil {
		committer = hashStateCommitter{}
	}
	bf := &BlockFlow{
		groupCount:   groupCount,
		confirmDepth: confirmDepth,
		trees:        make(map[chain.ChainIndex]*forktree.ForkTree),
		committer:    committer,
	}
	for i := uint32(0); i < groupCount; i++ {
		for j := uint32(0); j < groupCount; j++ {
			idx := chain.ChainIndex{From: i, To: j}
			bf.trees[idx] = forktree.New(idx, confirmDepth)
		}
	}
	return bf
}

// Tree returns the ForkTree for a chain index, or nil if idx is out of
// range for this grid.
func (bf *BlockFlow) Tree(idx chain.ChainIndex) *forktree.ForkTree { return bf.trees[idx] }

// relatedChains returns the 2G-2 chains that share idx's "from" group or
// "to" group, excluding idx itself — the set bestDeps draws its
// other-than-own-chain entries from (spec section 3: "2G-1 parent hashes,
// one per other chain group plus the previous block in-chain").
func relatedChains(idx chain.ChainIndex, groupCount uint32) []chain.ChainIndex {
	out := make([]chain.ChainIndex, 0, 2*int(groupCount)-2)
	for k := uint32(0); k < groupCount; k++ {
		if k != idx.To {
			out = append(out, chain.ChainIndex{From: idx.From, To: k})
		}
	}
	for k := uint32(0); k < groupCount; k++ {
		if k != idx.From {
			out = append(out, chain.ChainIndex{From: k, To: idx.To})
		}
	}
	return out
}

// GetBestTip returns the canonical head of chain idx.
func (bf *BlockFlow) GetBestTip(idx chain.ChainIndex) (primitives.Hash, bool) {
	t := bf.trees[idx]
	if t == nil {
		return primitives.Hash{}, false
	}
	return t.GetBestTip()
}

// GetAllTips returns every tip of chain idx.
func (bf *BlockFlow) GetAllTips(idx chain.ChainIndex) []primitives.Hash {
	t := bf.trees[idx]
	if t == nil {
		return nil
	}
	return t.GetAllTips()
}

// IsBefore reports whether a is an ancestor of b within the chain that
// owns both hashes. Cross-chain ancestry (through transitively-implied
// blockDeps) is not considered.
func (bf *BlockFlow) IsBefore(idx chain.ChainIndex, a, b primitives.Hash) bool {
	t := bf.trees[idx]
	if t == nil {
		return false
	}
	return t.IsBefore(a, b)
}

type weightedTip struct {
	chainIdx chain.ChainIndex
	hash     primitives.Hash
	weight   primitives.U256
}

// BestDeps selects the 2G-1 dependency hashes for chain idx's next block:
// its own chain's current best tip, plus one tip per related chain chosen
// by a greedy descending-weight consistency scan (spec section 4.3).
func (bf *BlockFlow) BestDeps(idx chain.ChainIndex) ([]primitives.Hash, error) {
	ownTree := bf.trees[idx]
	if ownTree == nil {
		return nil, errs.NewValidationError(errs.InvalidChainIndex, idx.String())
	}
	ownTip, ok := ownTree.GetBestTip()
	if !ok {
		return nil, errs.NewIoError("BestDeps", errNoGenesis(idx))
	}

	related := relatedChains(idx, bf.groupCount)
	var candidates []weightedTip
	for _, c := range related {
		t := bf.trees[c]
		if t == nil {
			continue
		}
		for _, tip := range t.GetAllTips() {
			candidates = append(candidates, weightedTip{chainIdx: c, hash: tip, weight: t.GetWeight(tip)})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weight.Cmp(candidates[j].weight) > 0
	})

	accepted := make(map[chain.ChainIndex]primitives.Hash, len(related))
	for _, cand := range candidates {
		if _, taken := accepted[cand.chainIdx]; taken {
			continue
		}
		if bf.consistentWithAccepted(cand, accepted) {
			accepted[cand.chainIdx] = cand.hash
		}
	}
	// Any related chain without an accepted candidate (e.g. genesis not yet
	// mined on that chain) falls back to its current best tip.
	for _, c := range related {
		if _, ok := accepted[c]; ok {
			continue
		}
		if t := bf.trees[c]; t != nil {
			if tip, ok := t.GetBestTip(); ok {
				accepted[c] = tip
			}
		}
	}

	deps := make([]primitives.Hash, 0, chain.NumChainDeps(bf.groupCount))
	deps = append(deps, ownTip)
	for _, c := range related {
		if h, ok := accepted[c]; ok {
			deps = append(deps, h)
		}
	}
	return deps, nil
}

// consistentWithAccepted checks the conflict rule from spec section 4.3:
// deps are consistent iff for every chain c, deps[c] is either an ancestor
// of or equal to what every other chosen dep implies for c. A candidate's
// own header.BlockDeps are what it "implies" for the chains those hashes
// belong to.
func (bf *BlockFlow) consistentWithAccepted(cand weightedTip, accepted map[chain.ChainIndex]primitives.Hash) bool {
	implied := bf.impliedDeps(cand)
	for c, h := range implied {
		existing, ok := accepted[c]
		if !ok {
			continue
		}
		if existing == h {
			continue
		}
		t := bf.trees[c]
		if t == nil {
			return false
		}
		if !t.IsBefore(existing, h) && !t.IsBefore(h, existing) {
			return false
		}
	}
	return true
}

// impliedDeps resolves a candidate tip's own recorded header.BlockDeps into
// a per-chain hash map, by looking up which chain each referenced hash was
// mined on.
func (bf *BlockFlow) impliedDeps(cand weightedTip) map[chain.ChainIndex]primitives.Hash {
	t := bf.trees[cand.chainIdx]
	out := map[chain.ChainIndex]primitives.Hash{cand.chainIdx: cand.hash}
	if t == nil || !t.Contains(cand.hash) {
		return out
	}
	block := t.GetBlock(cand.hash)
	for _, dep := range block.Header.BlockDeps {
		depIdx := bf.chainIndexOf(dep)
		if depIdx == nil {
			continue
		}
		out[*depIdx] = dep
	}
	return out
}

// chainIndexOf finds which chain's tree currently contains hash.
func (bf *BlockFlow) chainIndexOf(hash primitives.Hash) *chain.ChainIndex {
	for idx, t := range bf.trees {
		if t.Contains(hash) {
			return &idx
		}
	}
	return nil
}

// CalWeight sums the cumulative weight each dep hash carries in its owning
// chain (spec section 4.3).
func (bf *BlockFlow) CalWeight(deps []primitives.Hash) primitives.U256 {
	total := primitives.ZeroU256()
	for _, d := range deps {
		idx := bf.chainIndexOf(d)
		if idx == nil {
			continue
		}
		if sum, err := total.Add(bf.trees[*idx].GetWeight(d)); err == nil {
			total = sum
		}
	}
	return total
}

// AddAndUpdateView appends block to the ForkTree for its own chain index
// (spec section 4.3). parentHash is the block's previous-in-chain
// dependency, i.e. deps[0] from BestDeps.
func (bf *BlockFlow) AddAndUpdateView(block chain.Block, parentHash primitives.Hash, weight primitives.U256) (forktree.AddResult, error) {
	idx := chain.ChainIndexOf(block.Hash(), bf.groupCount)
	t := bf.trees[idx]
	if t == nil {
		return forktree.MissingDepsResult, errs.NewValidationError(errs.InvalidChainIndex, idx.String())
	}
	if parentHash == primitives.ZeroHash {
		return t.AddRoot(block, weight)
	}
	return t.Add(block, parentHash, weight)
}

// BlockTemplate is the output of PrepareBlockFlowUnsafe: everything a miner
// needs to assemble and mine a new block (spec section 4.3).
type BlockTemplate struct {
	ChainIdx        chain.ChainIndex
	Deps            []primitives.Hash
	Transactions    []chain.Transaction
	CoinbaseOutput  chain.AssetOutput
	DepStateHash    primitives.Hash
}

// PrepareBlockFlowUnsafe builds a block template: chosen deps, mempool
// transactions ordered by gas price within gasLimit, a coinbase paying
// blockReward+fees to minerLockupScript, and the depStateHash commitment
// (spec section 4.3). It is "unsafe" in the sense the spec uses the word:
// it does not itself validate the resulting block, only assembles it.
func (bf *BlockFlow) PrepareBlockFlowUnsafe(
	idx chain.ChainIndex,
	minerLockupScript []byte,
	mempool []chain.Transaction,
	gasLimit uint64,
	blockReward primitives.U256,
) (BlockTemplate, error) {
	deps, err := bf.BestDeps(idx)
	if err != nil {
		return BlockTemplate{}, err
	}

	selected := selectByGasPrice(mempool, gasLimit)

	fees := primitives.ZeroU256()
	for _, tx := range selected {
		fee, err := primitives.U256FromUint64(tx.Unsigned.GasAmount).Mul(tx.Unsigned.GasPrice)
		if err != nil {
			return BlockTemplate{}, errs.NewValidationError(errs.OutOfGas, "fee overflow")
		}
		if fees, err = fees.Add(fee); err != nil {
			return BlockTemplate{}, errs.NewValidationError(errs.OutOfGas, "fee accumulation overflow")
		}
	}
	coinbaseAmount, err := blockReward.Add(fees)
	if err != nil {
		return BlockTemplate{}, errs.NewValidationError(errs.OutOfGas, "coinbase amount overflow")
	}

	depStateHash, err := bf.committer.CommitPostState(deps, selected)
	if err != nil {
		return BlockTemplate{}, err
	}

	return BlockTemplate{
		ChainIdx:     idx,
		Deps:         deps,
		Transactions: selected,
		CoinbaseOutput: chain.AssetOutput{
			Amount:       coinbaseAmount,
			LockupScript: minerLockupScript,
		},
		DepStateHash: depStateHash,
	}, nil
}

// selectByGasPrice orders mempool transactions by descending gas price and
// greedily takes as many as fit within gasLimit (spec section 4.3).
func selectByGasPrice(mempool []chain.Transaction, gasLimit uint64) []chain.Transaction {
	ordered := append([]chain.Transaction(nil), mempool...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Unsigned.GasPrice.Cmp(ordered[j].Unsigned.GasPrice) > 0
	})
	var out []chain.Transaction
	var used uint64
	for _, tx := range ordered {
		if used+tx.Unsigned.GasAmount > gasLimit {
			continue
		}
		out = append(out, tx)
		used += tx.Unsigned.GasAmount
	}
	return out
}

type genesisMissingError struct{ idx chain.ChainIndex }

func (e *genesisMissingError) Error() string { return "blockflow: no genesis tip for " + e.idx.String() }

func errNoGenesis(idx chain.ChainIndex) error { return &genesisMissingError{idx: idx} }
