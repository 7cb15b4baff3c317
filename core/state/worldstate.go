package state

import (
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/store"
)

// ContractState is the persisted shape of a deployed contract (spec section
// 4.5): its code hash, mutable storage fields, and locked asset.
type ContractState struct {
	CodeHash primitives.Hash
	Fields   [][]byte
	Asset    chain.AssetOutput
}

func encodeContractState(c ContractState) []byte {
	e := primitives.NewEncoder()
	e.PutHash(c.CodeHash)
	e.PutUint32(uint32(len(c.Fields)))
	for _, f := range c.Fields {
		e.PutBytes(f)
	}
	amt := c.Asset.Amount.Bytes32()
	e.PutFixed(amt[:])
	e.PutBytes(c.Asset.LockupScript)
	return e.Bytes()
}

func decodeContractState(b []byte) (ContractState, error) {
	d := primitives.NewDecoder(b)
	codeHash, err := d.Hash()
	if err != nil {
		return ContractState{}, err
	}
	n, err := d.Uint32()
	if err != nil {
		return ContractState{}, err
	}
	fields := make([][]byte, n)
	for i := range fields {
		f, err := d.Bytes()
		if err != nil {
			return ContractState{}, err
		}
		fields[i] = f
	}
	amtBytes, err := d.Fixed(32)
	if err != nil {
		return ContractState{}, err
	}
	lockup, err := d.Bytes()
	if err != nil {
		return ContractState{}, err
	}
	return ContractState{
		CodeHash: codeHash,
		Fields:   fields,
		Asset:    chain.AssetOutput{Amount: primitives.U256FromBytes(amtBytes), LockupScript: lockup},
	}, nil
}

func encodeTxOutput(o chain.TxOutput) []byte {
	e := primitives.NewEncoder()
	e.PutUint8(uint8(o.Kind))
	amt := o.Amount().Bytes32()
	e.PutFixed(amt[:])
	e.PutBytes(o.LockupScript())
	return e.Bytes()
}

// outputRefKey and contractKey namespace the two output-layer key spaces
// before the fixed-width OutputRef.Key / contract-id hash reaches the
// backing KeyValueStore, so they never collide on disk.
func outputRefKey(ref chain.OutputRef) []byte {
	e := primitives.NewEncoder()
	e.PutUint8(0)
	e.PutHash(ref.Key)
	return e.Bytes()
}

func contractIDKey(id primitives.Hash) []byte {
	e := primitives.NewEncoder()
	e.PutUint8(1)
	e.PutHash(id)
	return e.Bytes()
}

// trieLeaf is the namespaced path + content hash committed to the world
// state trie for one key/value pair.
func trieLeaf(namespace byte, key primitives.Hash, value []byte) (path, leaf primitives.Hash) {
	e := primitives.NewEncoder()
	e.PutUint8(namespace)
	e.PutHash(key)
	path = primitives.KeccakHash(e.Bytes())
	leaf = primitives.KeccakHash(value)
	return path, leaf
}

const (
	namespaceOutput   byte = 0
	namespaceContract byte = 1
)

// WorldState is the persistent authenticated key-value store from spec
// section 4.5: OutputRef -> TxOutput and ContractId -> ContractState, both
// backed by a core/store.Cache and committed into a single Trie whose root
// is the block's depStateHash. CachedLogStates (logs.go) tracks emitted
// events alongside it but is not part of the trie commitment, mirroring
// the teacher's event log being a separate indexed store from ledger state.
type WorldState struct {
	outputs   *store.Cache[chain.OutputRef, chain.TxOutput]
	contracts *store.Cache[primitives.Hash, ContractState]
	nodes     *store.Cache[primitives.Hash, trieNode]
	trie      *Trie
}

var outputCodec = store.Codec[chain.OutputRef, chain.TxOutput]{
	EncodeKey:   outputRefKey,
	EncodeValue: encodeTxOutput,
	DecodeValue: func(b []byte) (chain.TxOutput, error) {
		d := primitives.NewDecoder(b)
		kind, err := d.Uint8()
		if err != nil {
			return chain.TxOutput{}, err
		}
		amtBytes, err := d.Fixed(32)
		if err != nil {
			return chain.TxOutput{}, err
		}
		lockup, err := d.Bytes()
		if err != nil {
			return chain.TxOutput{}, err
		}
		amount := primitives.U256FromBytes(amtBytes)
		if chain.TxOutputKind(kind) == chain.TxOutputContract {
			return chain.TxOutput{Kind: chain.TxOutputContract, Contract: chain.ContractOutput{Amount: amount, LockupScript: lockup}}, nil
		}
		return chain.TxOutput{Kind: chain.TxOutputAsset, Asset: chain.AssetOutput{Amount: amount, LockupScript: lockup}}, nil
	},
}

var contractCodec = store.Codec[primitives.Hash, ContractState]{
	EncodeKey:   contractIDKey,
	EncodeValue: encodeContractState,
	DecodeValue: decodeContractState,
}

// NewWorldState opens a WorldState layered over kv. kv may be nil for a
// purely in-memory world state, used by tests.
func NewWorldState(kv *store.KeyValueStore) *WorldState {
	nodes := store.NewCache(kv, trieNodeCodec)
	return &WorldState{
		outputs:   store.NewCache(kv, outputCodec),
		contracts: store.NewCache(kv, contractCodec),
		nodes:     nodes,
		trie:      NewTrie(nodes),
	}
}

// RootHash returns the trie's current commitment, the depStateHash a block
// built on this world state must declare.
func (w *WorldState) RootHash() primitives.Hash { return w.trie.Root() }

// GetOutput implements core/validation.UTXOView.
func (w *WorldState) GetOutput(ref chain.OutputRef) (chain.TxOutput, bool, error) {
	return w.outputs.Get(ref)
}

// PutOutput records a new unspent output and folds it into the trie.
func (w *WorldState) PutOutput(ref chain.OutputRef, out chain.TxOutput) error {
	w.outputs.Put(ref, out)
	path, leaf := trieLeaf(namespaceOutput, ref.Key, encodeTxOutput(out))
	_, err := w.trie.Put(path, leaf)
	return err
}

// SpendOutput removes ref from the unspent set.
func (w *WorldState) SpendOutput(ref chain.OutputRef) error {
	w.outputs.Remove(ref)
	path, _ := trieLeaf(namespaceOutput, ref.Key, nil)
	_, err := w.trie.Remove(path)
	return err
}

// GetContract looks up a contract's persisted state.
func (w *WorldState) GetContract(id primitives.Hash) (ContractState, bool, error) {
	return w.contracts.Get(id)
}

// PutContract records a contract's state and folds it into the trie.
func (w *WorldState) PutContract(id primitives.Hash, cs ContractState) error {
	w.contracts.Put(id, cs)
	path, leaf := trieLeaf(namespaceContract, id, encodeContractState(cs))
	_, err := w.trie.Put(path, leaf)
	return err
}

// RemoveContract deletes a contract's state.
func (w *WorldState) RemoveContract(id primitives.Hash) error {
	w.contracts.Remove(id)
	path, _ := trieLeaf(namespaceContract, id, nil)
	_, err := w.trie.Remove(path)
	return err
}

// CreateContract allocates a fresh ContractId (Keccak of the creating
// transaction's hash and output index, per spec section 4.5), writes its
// initial state, and returns the id.
func (w *WorldState) CreateContract(creatingTx primitives.Hash, index uint32, codeHash primitives.Hash, fields [][]byte, initialAsset chain.AssetOutput) (primitives.Hash, error) {
	e := primitives.NewEncoder()
	e.PutHash(creatingTx)
	e.PutUint32(index)
	id := primitives.KeccakHash(e.Bytes())
	cs := ContractState{CodeHash: codeHash, Fields: fields, Asset: initialAsset}
	if err := w.PutContract(id, cs); err != nil {
		return primitives.Hash{}, err
	}
	return id, nil
}

// DestroyContract removes id's state and transfers its remaining asset to
// beneficiaryLockupScript as a new unspent output (spec section 4.5).
func (w *WorldState) DestroyContract(id primitives.Hash, beneficiaryLockupScript []byte) error {
	cs, ok, err := w.GetContract(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := w.RemoveContract(id); err != nil {
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
	return w.PutOutput(ref, out)
}

// Persist flushes every dirty output, contract, and trie node to disk in
// one pass. Each underlying Cache.Persist is itself atomic (spec section
// 4.1); callers that need the whole flush to be atomic should wrap kv in a
// single WriteBatch at a higher layer.
func (w *WorldState) Persist() error {
	if err := w.outputs.Persist(); err != nil {
		return err
	}
	if err := w.contracts.Persist(); err != nil {
		return err
	}
	return w.nodes.Persist()
}

// CommitPostState implements core/blockflow.StateCommitter: it simulates
// the given transactions' UTXO-level effects (spending declared inputs,
// creating declared fixed outputs) against a Staging overlay of this world
// state and returns the resulting root, without mutating the persistent
// Cache. Contract-state mutations driven by script execution are not
// included; this commitment covers the asset-settlement layer every
// transaction touches regardless of whether it carries a script.
func (w *WorldState) CommitPostState(deps []primitives.Hash, txs []chain.Transaction) (primitives.Hash, error) {
	staging := NewStagingWorldState(w)
	for _, tx := range txs {
		for _, in := range tx.Unsigned.Inputs {
			if err := staging.SpendOutput(in.OutputRef); err != nil {
				return primitives.Hash{}, err
			}
		}
		for i, out := range tx.Unsigned.FixedOutputs {
			ref := chain.OutputRef{Key: primitives.BlakeHash(append(tx.Hash().Bytes(), byte(i)))}
			if err := staging.PutOutput(ref, chain.TxOutput{Kind: chain.TxOutputAsset, Asset: out}); err != nil {
				return primitives.Hash{}, err
			}
		}
	}
	return staging.Root(), nil
}
