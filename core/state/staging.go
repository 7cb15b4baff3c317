package state

import (
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/store"
)

// StagingWorldState is the per-block transient overlay from spec section
// 4.5 ("every transaction executes against a fresh Staging overlay above
// the BlockFlow's current world-state Cache"): reads fall through to the
// parent WorldState, writes stay in memory until Commit, and the trie is
// simulated the same way so Root() reflects the staged effects without
// touching the parent's nodes Cache.
type StagingWorldState struct {
	parent    *WorldState
	outputs   *store.Staging[chain.OutputRef, chain.TxOutput]
	contracts *store.Staging[primitives.Hash, ContractState]
	nodes     *store.Staging[primitives.Hash, trieNode]
	trie      *Trie
}

// NewStagingWorldState opens a staging overlay atop parent.
func NewStagingWorldState(parent *WorldState) *StagingWorldState {
	nodes := store.NewStaging(parent.nodes)
	return &StagingWorldState{
		parent:    parent,
		outputs:   store.NewStaging(parent.outputs),
		contracts: store.NewStaging(parent.contracts),
		nodes:     nodes,
		trie:      NewTrieAt(nodes, parent.RootHash()),
	}
}

// Root returns the staged trie's commitment.
func (s *StagingWorldState) Root() primitives.Hash { return s.trie.Root() }

// GetOutput implements core/validation.UTXOView against the staged view.
func (s *StagingWorldState) GetOutput(ref chain.OutputRef) (chain.TxOutput, bool, error) {
	return s.outputs.Get(ref)
}

// PutOutput stages a new unspent output.
func (s *StagingWorldState) PutOutput(ref chain.OutputRef, out chain.TxOutput) error {
	s.outputs.Put(ref, out)
	path, leaf := trieLeaf(namespaceOutput, ref.Key, encodeTxOutput(out))
	_, err := s.trie.Put(path, leaf)
	return err
}

// SpendOutput stages the removal of ref from the unspent set.
func (s *StagingWorldState) SpendOutput(ref chain.OutputRef) error {
	s.outputs.Remove(ref)
	path, _ := trieLeaf(namespaceOutput, ref.Key, nil)
	_, err := s.trie.Remove(path)
	return err
}

// GetContract reads a contract's state through the staged view.
func (s *StagingWorldState) GetContract(id primitives.Hash) (ContractState, bool, error) {
	return s.contracts.Get(id)
}

// PutContract stages a contract state write.
func (s *StagingWorldState) PutContract(id primitives.Hash, cs ContractState) error {
	s.contracts.Put(id, cs)
	path, leaf := trieLeaf(namespaceContract, id, encodeContractState(cs))
	_, err := s.trie.Put(path, leaf)
	return err
}

// RemoveContract stages a contract state removal.
func (s *StagingWorldState) RemoveContract(id primitives.Hash) error {
	s.contracts.Remove(id)
	path, _ := trieLeaf(namespaceContract, id, nil)
	_, err := s.trie.Remove(path)
	return err
}

// CreateContract allocates a fresh ContractId and stages its initial state,
// mirroring WorldState.CreateContract but against the staged overlay so a
// failed transaction's contract creation can be discarded with the rest of
// its staged effects.
func (s *StagingWorldState) CreateContract(creatingTx primitives.Hash, index uint32, codeHash primitives.Hash, fields [][]byte, initialAsset chain.AssetOutput) (primitives.Hash, error) {
	e := primitives.NewEncoder()
	e.PutHash(creatingTx)
	e.PutUint32(index)
	id := primitives.KeccakHash(e.Bytes())
	cs := ContractState{CodeHash: codeHash, Fields: fields, Asset: initialAsset}
	if err := s.PutContract(id, cs); err != nil {
		return primitives.Hash{}, err
	}
	return id, nil
}

// DestroyContract stages id's removal and the beneficiary payout, mirroring
// WorldState.DestroyContract against the staged overlay.
func (s *StagingWorldState) DestroyContract(id primitives.Hash, beneficiaryLockupScript []byte) error {
	cs, ok, err := s.GetContract(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.RemoveContract(id); err != nil {
		return err
	}
	e := primitives.NewEncoder()
	e.PutHash(id)
	e.PutBytes(beneficiaryLockupScript)
	ref := chain.OutputRef{Key: primitives.KeccakHash(e.Bytes())}
	out := chain.TxOutput{Kind: chain.TxOutputAsset, Asset: chain.AssetOutput{
		Amount:       cs.Asset.Amount,
		LockupScript: beneficiaryLockupScript,
	}}
	return s.PutOutput(ref, out)
}

// Commit merges every staged output/contract/trie-node write into the
// parent WorldState and moves the parent's trie root to the staged root,
// so parent.RootHash() reflects the merged writes. The parent is left
// dirty; a later Persist writes it to disk.
func (s *StagingWorldState) Commit() {
	s.outputs.Commit()
	s.contracts.Commit()
	s.nodes.Commit()
	s.parent.trie.root = s.trie.root
}

// Discard drops every staged mutation, leaving the parent untouched. Used
// when a transaction's script execution fails (spec section 4.5: "the
// per-tx staging is discarded and the tx is marked scriptExecutionOk=false").
func (s *StagingWorldState) Discard() {
	s.outputs.Discard()
	s.contracts.Discard()
	s.nodes.Discard()
}
