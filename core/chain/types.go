// Package chain defines the data-model entities from spec section 3:
// BlockHeader, Block, the unsigned/signed Transaction shapes, OutputRef,
// and the two TxOutput variants, together with their canonical
// (de)serialization through core/primitives' encoding helpers.
package chain

import (
	"fmt"
	"math/big"

	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
)

// ChainIndex identifies one cell of the G×G shard grid: a (from, to) group
// pair. Total chains in a network of group count G is G² (spec section 3).
type ChainIndex struct {
	From uint32
	To   uint32
}

// String renders the index as "(from,to)".
func (c ChainIndex) String() string { return fmt.Sprintf("(%d,%d)", c.From, c.To) }

// NumChainDeps returns 2G-1: one parent hash per other chain group plus the
// previous in-chain block, the fixed length of BlockHeader.BlockDeps for a
// network with groupCount shard groups.
func NumChainDeps(groupCount uint32) int { return int(2*groupCount - 1) }

// BlockHeader is the PoW-mined portion of a Block (spec section 3).
type BlockHeader struct {
	Version      uint8
	BlockDeps    []primitives.Hash
	DepStateHash primitives.Hash
	TxsHash      primitives.Hash
	Timestamp    int64 // milliseconds since epoch
	Target       primitives.Target
	Nonce        [24]byte
}

// Hash returns the header's identity hash, which is also the block's
// identity (spec section 3: "Identity = hash(header)").
func (h BlockHeader) Hash() primitives.Hash {
	return primitives.BlakeHash(h.encode())
}

func (h BlockHeader) encode() []byte {
	e := primitives.NewEncoder()
	e.PutUint8(h.Version)
	e.PutUint32(uint32(len(h.BlockDeps)))
	for _, d := range h.BlockDeps {
		e.PutHash(d)
	}
	e.PutHash(h.DepStateHash)
	e.PutHash(h.TxsHash)
	e.PutUint64(uint64(h.Timestamp))
	e.PutFixed(h.Target[:])
	e.PutFixed(h.Nonce[:])
	return e.Bytes()
}

// Encode serializes the header canonically.
func (h BlockHeader) Encode() []byte { return h.encode() }

// DecodeBlockHeader parses a canonically-encoded header.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	d := primitives.NewDecoder(b)
	var h BlockHeader
	var err error
	if h.Version, err = d.Uint8(); err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.Version", err)
	}
	n, err := d.Uint32()
	if err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.BlockDeps length", err)
	}
	h.BlockDeps = make([]primitives.Hash, n)
	for i := range h.BlockDeps {
		if h.BlockDeps[i], err = d.Hash(); err != nil {
			return BlockHeader{}, errs.NewSerdeError("BlockHeader.BlockDeps", err)
		}
	}
	if h.DepStateHash, err = d.Hash(); err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.DepStateHash", err)
	}
	if h.TxsHash, err = d.Hash(); err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.TxsHash", err)
	}
	ts, err := d.Uint64()
	if err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.Timestamp", err)
	}
	h.Timestamp = int64(ts)
	targetBytes, err := d.Fixed(4)
	if err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.Target", err)
	}
	copy(h.Target[:], targetBytes)
	nonceBytes, err := d.Fixed(24)
	if err != nil {
		return BlockHeader{}, errs.NewSerdeError("BlockHeader.Nonce", err)
	}
	copy(h.Nonce[:], nonceBytes)
	return h, nil
}

// Block is a mined header plus its ordered transactions (spec section 3).
// Once constructed it is never mutated; it may only be pruned as a whole.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// Hash returns the block's identity, equal to its header's hash.
func (b Block) Hash() primitives.Hash { return b.Header.Hash() }

// ChainIndexOf derives the chain a block's hash commits to:
// (hash % G, (hash / G) % G), per spec section 3. Mining searches the
// header's nonce until this holds for the header's own hash.
func ChainIndexOf(h primitives.Hash, groupCount uint32) ChainIndex {
	v := new(big.Int).SetBytes(h.Bytes())
	g := big.NewInt(int64(groupCount))
	from := new(big.Int).Mod(v, g)
	div := new(big.Int).Div(v, g)
	to := new(big.Int).Mod(div, g)
	return ChainIndex{From: uint32(from.Uint64()), To: uint32(to.Uint64())}
}

// OutputRef identifies a transaction output: a routing hint for its
// destination shard group plus the key that identifies it in world state
// (spec section 3).
type OutputRef struct {
	Hint int32
	Key  primitives.Hash
}

// AssetOutput is a plain value-transfer output, optionally carrying
// secondary tokens, a lock time, and an opaque message (spec section 3).
type AssetOutput struct {
	Amount        primitives.U256
	LockupScript  []byte
	Tokens        []TokenAmount
	LockTime      int64
	Message       []byte
}

// ContractOutput locks funds to a contract (a P2C lockup script) and may
// carry secondary tokens (spec section 3).
type ContractOutput struct {
	Amount       primitives.U256
	LockupScript []byte
	Tokens       []TokenAmount
}

// TokenAmount pairs a token identifier with a quantity, used by both output
// variants' Tokens field.
type TokenAmount struct {
	TokenID primitives.Hash
	Amount  primitives.U256
}

// TxOutputKind distinguishes the TxOutput union's two variants.
type TxOutputKind uint8

const (
	TxOutputAsset    TxOutputKind = 0
	TxOutputContract TxOutputKind = 1
)

// TxOutput is the tagged union {AssetOutput, ContractOutput} from spec
// section 3. Only the field matching Kind is populated.
type TxOutput struct {
	Kind     TxOutputKind
	Asset    AssetOutput
	Contract ContractOutput
}

// Amount returns the output's value regardless of variant.
func (o TxOutput) Amount() primitives.U256 {
	if o.Kind == TxOutputContract {
		return o.Contract.Amount
	}
	return o.Asset.Amount
}

// LockupScript returns the output's lockup script regardless of variant.
func (o TxOutput) LockupScript() []byte {
	if o.Kind == TxOutputContract {
		return o.Contract.LockupScript
	}
	return o.Asset.LockupScript
}

// TxInput references a prior output and supplies the data to unlock it
// (spec section 3).
type TxInput struct {
	OutputRef    OutputRef
	UnlockScript []byte
}

// TxUnsigned is the unsigned body of a Transaction (spec section 3); its
// hash is the transaction's identity.
type TxUnsigned struct {
	Version       uint8
	NetworkID     uint32
	ScriptOpt     []byte // optional execution script; nil/empty means absent
	GasAmount     uint64
	GasPrice      primitives.U256
	Inputs        []TxInput
	FixedOutputs  []AssetOutput
}

// Hash returns the unsigned body's identity hash.
func (u TxUnsigned) Hash() primitives.Hash {
	return primitives.BlakeHash(u.encode())
}

func (u TxUnsigned) encode() []byte {
	e := primitives.NewEncoder()
	e.PutUint8(u.Version)
	e.PutUint32(u.NetworkID)
	e.PutBytes(u.ScriptOpt)
	e.PutUint64(u.GasAmount)
	gp := u.GasPrice.Bytes32()
	e.PutFixed(gp[:])
	e.PutUint32(uint32(len(u.Inputs)))
	for _, in := range u.Inputs {
		e.PutUint32(uint32(in.OutputRef.Hint))
		e.PutHash(in.OutputRef.Key)
		e.PutBytes(in.UnlockScript)
	}
	e.PutUint32(uint32(len(u.FixedOutputs)))
	for _, out := range u.FixedOutputs {
		encodeAssetOutput(e, out)
	}
	return e.Bytes()
}

func encodeAssetOutput(e *primitives.Encoder, out AssetOutput) {
	amt := out.Amount.Bytes32()
	e.PutFixed(amt[:])
	e.PutBytes(out.LockupScript)
	e.PutUint32(uint32(len(out.Tokens)))
	for _, tok := range out.Tokens {
		e.PutHash(tok.TokenID)
		tamt := tok.Amount.Bytes32()
		e.PutFixed(tamt[:])
	}
	e.PutUint64(uint64(out.LockTime))
	e.PutBytes(out.Message)
}

// Transaction is the full signed transaction shape from spec section 3:
// an unsigned body plus execution results and signatures.
type Transaction struct {
	Unsigned          TxUnsigned
	ScriptExecutionOk bool
	ContractInputs    []OutputRef
	GeneratedOutputs  []TxOutput
	InputSignatures   [][64]byte
	ScriptSignatures  [][64]byte
}

// Hash returns the transaction's identity, equal to its unsigned body's
// hash — signatures and execution results are not part of identity (spec
// section 3).
func (t Transaction) Hash() primitives.Hash { return t.Unsigned.Hash() }

// IsCoinbase reports whether t is a coinbase transaction: no inputs (spec
// section 4.4, "exactly one coinbase tx ... no inputs").
func (t Transaction) IsCoinbase() bool { return len(t.Unsigned.Inputs) == 0 }
