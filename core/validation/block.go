package validation

import (
	"time"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
)

// BlockRules bundles the network parameters block validation needs.
type BlockRules struct {
	Header       HeaderRules
	BlockGasLimit uint64
}

// ValidateBlock runs the stateful block checks from spec section 4.4:
// header validity, txsHash/depStateHash agreement, per-tx validation, the
// block gas limit, and the coinbase shape. computedDepStateHash is the
// post-state commitment the caller (core/state, via BlockFlow's
// StateCommitter) already computed for this block's chosen deps and
// transactions.
func ValidateBlock(
	block chain.Block,
	declared chain.ChainIndex,
	parentHeader *chain.BlockHeader,
	rules BlockRules,
	computedDepStateHash primitives.Hash,
	minerLockupScript []byte,
	blockReward primitives.U256,
	view UTXOView,
	verifier ScriptVerifier,
	executor ScriptExecutor,
	now time.Time,
) error {
	if err := ValidateHeader(block.Header, parentHeader, declared, rules.Header, now); err != nil {
		return err
	}

	if block.Header.TxsHash != hashTransactions(block.Transactions) {
		return errs.NewValidationError(errs.InvalidTxHash, "txsHash does not match computed transaction hash")
	}
	if block.Header.DepStateHash != computedDepStateHash {
		return errs.NewValidationError(errs.InvalidStateCommitment, "depStateHash does not match computed post-state")
	}

	if len(block.Transactions) == 0 {
		return errs.NewValidationError(errs.MissingInput, "block has no coinbase transaction")
	}
	coinbase := block.Transactions[0]
	if !coinbase.IsCoinbase() {
		return errs.NewValidationError(errs.MissingInput, "first transaction is not a coinbase")
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return errs.NewValidationError(errs.MissingInput, "coinbase transaction must be first and unique")
		}
	}

	var totalGas uint64
	totalFees := primitives.ZeroU256()
	for _, tx := range block.Transactions[1:] {
		totalGas += tx.Unsigned.GasAmount
		if err := ValidateTransaction(tx, view, verifier, executor); err != nil {
			return err
		}
		fee, err := primitives.U256FromUint64(tx.Unsigned.GasAmount).Mul(tx.Unsigned.GasPrice)
		if err != nil {
			return errs.NewValidationError(errs.OutOfGas, "fee overflow")
		}
		if totalFees, err = totalFees.Add(fee); err != nil {
			return errs.NewValidationError(errs.OutOfGas, "fee accumulation overflow")
		}
	}
	if totalGas > rules.BlockGasLimit {
		return errs.NewValidationError(errs.OutOfGas, "total tx gas exceeds block gas limit")
	}

	if len(coinbase.Unsigned.Inputs) != 0 {
		return errs.NewValidationError(errs.MissingInput, "coinbase must have no inputs")
	}
	if len(coinbase.Unsigned.FixedOutputs) != 1 {
		return errs.NewValidationError(errs.InvalidStateCommitment, "coinbase must pay exactly one output")
	}
	wantCoinbase, err := blockReward.Add(totalFees)
	if err != nil {
		return errs.NewValidationError(errs.OutOfGas, "coinbase amount overflow")
	}
	out := coinbase.Unsigned.FixedOutputs[0]
	if out.Amount.Cmp(wantCoinbase) != 0 {
		return errs.NewValidationError(errs.InvalidStateCommitment, "coinbase amount does not equal blockReward(height)+sum(txFees)")
	}
	if string(out.LockupScript) != string(minerLockupScript) {
		return errs.NewValidationError(errs.InvalidStateCommitment, "coinbase does not pay the declared miner lockup script")
	}

	return nil
}

func hashTransactions(txs []chain.Transaction) primitives.Hash {
	e := primitives.NewEncoder()
	for _, tx := range txs {
		h := tx.Hash()
		e.PutHash(h)
	}
	return primitives.BlakeHash(e.Bytes())
}
