package chain

import (
	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
)

// Encode serializes a full signed transaction canonically.
func (t Transaction) Encode() []byte {
	e := primitives.NewEncoder()
	e.PutFixed(t.Unsigned.encode())
	if t.ScriptExecutionOk {
		e.PutUint8(1)
	} else {
		e.PutUint8(0)
	}
	e.PutUint32(uint32(len(t.ContractInputs)))
	for _, ref := range t.ContractInputs {
		e.PutUint32(uint32(ref.Hint))
		e.PutHash(ref.Key)
	}
	e.PutUint32(uint32(len(t.GeneratedOutputs)))
	for _, out := range t.GeneratedOutputs {
		encodeTxOutput(e, out)
	}
	e.PutUint32(uint32(len(t.InputSignatures)))
	for _, sig := range t.InputSignatures {
		e.PutFixed(sig[:])
	}
	e.PutUint32(uint32(len(t.ScriptSignatures)))
	for _, sig := range t.ScriptSignatures {
		e.PutFixed(sig[:])
	}
	return e.Bytes()
}

func encodeTxOutput(e *primitives.Encoder, out TxOutput) {
	e.PutUint8(uint8(out.Kind))
	switch out.Kind {
	case TxOutputContract:
		amt := out.Contract.Amount.Bytes32()
		e.PutFixed(amt[:])
		e.PutBytes(out.Contract.LockupScript)
		e.PutUint32(uint32(len(out.Contract.Tokens)))
		for _, tok := range out.Contract.Tokens {
			e.PutHash(tok.TokenID)
			tamt := tok.Amount.Bytes32()
			e.PutFixed(tamt[:])
		}
	default:
		encodeAssetOutput(e, out.Asset)
	}
}

// DecodeTransaction parses a canonically-encoded transaction. Since
// TxUnsigned.encode doesn't self-delimit its length, callers that decode a
// sequence of transactions must wrap each with a Bytes()-style length
// prefix at the container level (see Block's encoding below).
func DecodeTransaction(b []byte) (Transaction, error) {
	d := primitives.NewDecoder(b)
	unsigned, err := decodeTxUnsigned(d)
	if err != nil {
		return Transaction{}, err
	}
	okByte, err := d.Uint8()
	if err != nil {
		return Transaction{}, errs.NewSerdeError("Transaction.ScriptExecutionOk", err)
	}
	t := Transaction{Unsigned: unsigned, ScriptExecutionOk: okByte != 0}

	n, err := d.Uint32()
	if err != nil {
		return Transaction{}, errs.NewSerdeError("Transaction.ContractInputs length", err)
	}
	t.ContractInputs = make([]OutputRef, n)
	for i := range t.ContractInputs {
		hint, err := d.Uint32()
		if err != nil {
			return Transaction{}, errs.NewSerdeError("Transaction.ContractInputs", err)
		}
		key, err := d.Hash()
		if err != nil {
			return Transaction{}, errs.NewSerdeError("Transaction.ContractInputs", err)
		}
		t.ContractInputs[i] = OutputRef{Hint: int32(hint), Key: key}
	}

	n, err = d.Uint32()
	if err != nil {
		return Transaction{}, errs.NewSerdeError("Transaction.GeneratedOutputs length", err)
	}
	t.GeneratedOutputs = make([]TxOutput, n)
	for i := range t.GeneratedOutputs {
		out, err := decodeTxOutput(d)
		if err != nil {
			return Transaction{}, err
		}
		t.GeneratedOutputs[i] = out
	}

	t.InputSignatures, err = decodeSigs(d)
	if err != nil {
		return Transaction{}, err
	}
	t.ScriptSignatures, err = decodeSigs(d)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func decodeSigs(d *primitives.Decoder) ([][64]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, errs.NewSerdeError("signature list length", err)
	}
	out := make([][64]byte, n)
	for i := range out {
		b, err := d.Fixed(64)
		if err != nil {
			return nil, errs.NewSerdeError("signature", err)
		}
		copy(out[i][:], b)
	}
	return out, nil
}

func decodeTxUnsigned(d *primitives.Decoder) (TxUnsigned, error) {
	var u TxUnsigned
	var err error
	if u.Version, err = d.Uint8(); err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.Version", err)
	}
	if u.NetworkID, err = d.Uint32(); err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.NetworkID", err)
	}
	if u.ScriptOpt, err = d.Bytes(); err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.ScriptOpt", err)
	}
	if u.GasAmount, err = d.Uint64(); err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.GasAmount", err)
	}
	gp, err := d.Fixed(32)
	if err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.GasPrice", err)
	}
	u.GasPrice = primitives.U256FromBytes(gp)

	n, err := d.Uint32()
	if err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.Inputs length", err)
	}
	u.Inputs = make([]TxInput, n)
	for i := range u.Inputs {
		hint, err := d.Uint32()
		if err != nil {
			return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.Inputs", err)
		}
		key, err := d.Hash()
		if err != nil {
			return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.Inputs", err)
		}
		unlock, err := d.Bytes()
		if err != nil {
			return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.Inputs", err)
		}
		u.Inputs[i] = TxInput{OutputRef: OutputRef{Hint: int32(hint), Key: key}, UnlockScript: unlock}
	}

	n, err = d.Uint32()
	if err != nil {
		return TxUnsigned{}, errs.NewSerdeError("TxUnsigned.FixedOutputs length", err)
	}
	u.FixedOutputs = make([]AssetOutput, n)
	for i := range u.FixedOutputs {
		out, err := decodeAssetOutput(d)
		if err != nil {
			return TxUnsigned{}, err
		}
		u.FixedOutputs[i] = out
	}
	return u, nil
}

func decodeAssetOutput(d *primitives.Decoder) (AssetOutput, error) {
	var out AssetOutput
	amt, err := d.Fixed(32)
	if err != nil {
		return AssetOutput{}, errs.NewSerdeError("AssetOutput.Amount", err)
	}
	out.Amount = primitives.U256FromBytes(amt)
	if out.LockupScript, err = d.Bytes(); err != nil {
		return AssetOutput{}, errs.NewSerdeError("AssetOutput.LockupScript", err)
	}
	n, err := d.Uint32()
	if err != nil {
		return AssetOutput{}, errs.NewSerdeError("AssetOutput.Tokens length", err)
	}
	out.Tokens = make([]TokenAmount, n)
	for i := range out.Tokens {
		id, err := d.Hash()
		if err != nil {
			return AssetOutput{}, errs.NewSerdeError("AssetOutput.Tokens", err)
		}
		tamt, err := d.Fixed(32)
		if err != nil {
			return AssetOutput{}, errs.NewSerdeError("AssetOutput.Tokens", err)
		}
		out.Tokens[i] = TokenAmount{TokenID: id, Amount: primitives.U256FromBytes(tamt)}
	}
	lt, err := d.Uint64()
	if err != nil {
		return AssetOutput{}, errs.NewSerdeError("AssetOutput.LockTime", err)
	}
	out.LockTime = int64(lt)
	if out.Message, err = d.Bytes(); err != nil {
		return AssetOutput{}, errs.NewSerdeError("AssetOutput.Message", err)
	}
	return out, nil
}

func decodeTxOutput(d *primitives.Decoder) (TxOutput, error) {
	kind, err := d.Uint8()
	if err != nil {
		return TxOutput{}, errs.NewSerdeError("TxOutput.Kind", err)
	}
	switch TxOutputKind(kind) {
	case TxOutputContract:
		amt, err := d.Fixed(32)
		if err != nil {
			return TxOutput{}, errs.NewSerdeError("ContractOutput.Amount", err)
		}
		lockup, err := d.Bytes()
		if err != nil {
			return TxOutput{}, errs.NewSerdeError("ContractOutput.LockupScript", err)
		}
		n, err := d.Uint32()
		if err != nil {
			return TxOutput{}, errs.NewSerdeError("ContractOutput.Tokens length", err)
		}
		tokens := make([]TokenAmount, n)
		for i := range tokens {
			id, err := d.Hash()
			if err != nil {
				return TxOutput{}, errs.NewSerdeError("ContractOutput.Tokens", err)
			}
			tamt, err := d.Fixed(32)
			if err != nil {
				return TxOutput{}, errs.NewSerdeError("ContractOutput.Tokens", err)
			}
			tokens[i] = TokenAmount{TokenID: id, Amount: primitives.U256FromBytes(tamt)}
		}
		return TxOutput{Kind: TxOutputContract, Contract: ContractOutput{
			Amount: primitives.U256FromBytes(amt), LockupScript: lockup, Tokens: tokens,
		}}, nil
	default:
		out, err := decodeAssetOutput(d)
		if err != nil {
			return TxOutput{}, err
		}
		return TxOutput{Kind: TxOutputAsset, Asset: out}, nil
	}
}

// Encode serializes a Block: its header followed by a u32-counted sequence
// of length-prefixed transactions.
func (b Block) Encode() []byte {
	e := primitives.NewEncoder()
	e.PutFixed(b.Header.encode())
	e.PutUint32(uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		e.PutBytes(tx.Encode())
	}
	return e.Bytes()
}

// DecodeBlock parses a canonically-encoded Block. The header has no
// self-delimiting length, so it must be decoded first and the remainder
// handed to the transaction sequence; this mirrors the fixed-header /
// variable-body split every block-oriented wire format in the corpus uses.
func DecodeBlock(b []byte) (Block, error) {
	headerLen, err := headerEncodedLen(b)
	if err != nil {
		return Block{}, err
	}
	header, err := DecodeBlockHeader(b[:headerLen])
	if err != nil {
		return Block{}, err
	}
	d := primitives.NewDecoder(b[headerLen:])
	n, err := d.Uint32()
	if err != nil {
		return Block{}, errs.NewSerdeError("Block.Transactions length", err)
	}
	txs := make([]Transaction, n)
	for i := range txs {
		raw, err := d.Bytes()
		if err != nil {
			return Block{}, errs.NewSerdeError("Block.Transactions", err)
		}
		tx, err := DecodeTransaction(raw)
		if err != nil {
			return Block{}, err
		}
		txs[i] = tx
	}
	return Block{Header: header, Transactions: txs}, nil
}

// headerEncodedLen re-decodes just enough of b to learn how many bytes the
// fixed+variable BlockHeader prefix occupies, since BlockHeader.encode has
// no outer length prefix of its own (Block is the only container that
// embeds it directly).
func headerEncodedLen(b []byte) (int, error) {
	d := primitives.NewDecoder(b)
	if _, err := d.Uint8(); err != nil {
		return 0, errs.NewSerdeError("BlockHeader.Version", err)
	}
	n, err := d.Uint32()
	if err != nil {
		return 0, errs.NewSerdeError("BlockHeader.BlockDeps length", err)
	}
	if _, err := d.Fixed(int(n) * 32); err != nil {
		return 0, errs.NewSerdeError("BlockHeader.BlockDeps", err)
	}
	if _, err := d.Fixed(32 + 32 + 8 + 4 + 24); err != nil {
		return 0, errs.NewSerdeError("BlockHeader tail", err)
	}
	return len(b) - d.Remaining(), nil
}
