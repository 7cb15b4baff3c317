package validation

import (
	"strconv"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
)

// UTXOView resolves the unspent outputs a transaction's inputs reference.
// It is implemented by core/state's world-state view and injected here so
// this package stays independent of the state/VM layer (spec section 2's
// leaves-first layering; same seam as core/blockflow.StateCommitter).
type UTXOView interface {
	GetOutput(ref chain.OutputRef) (chain.TxOutput, bool, error)
}

// ScriptVerifier checks that a TxInput's unlockScript satisfies its
// referenced output's lockupScript: a signature/multisig check for
// P2PKH/P2MPKH, or VM execution for P2SH/P2C.
type ScriptVerifier interface {
	VerifyUnlock(txHash primitives.Hash, lockupScript, unlockScript []byte, sigs [][64]byte) (bool, error)
}

// ScriptExecutor re-executes a transaction's declared script, used to
// confirm that the tx's recorded ScriptExecutionOk/GeneratedOutputs are
// reproducible — every honest node must derive the same result (spec
// section 4.5, "deterministic VM").
type ScriptExecutor interface {
	Execute(tx chain.Transaction, view UTXOView) (ok bool, generated []chain.TxOutput, err error)
}

// ValidateTransaction runs the non-coinbase transaction checks from spec
// section 4.4: input existence, balance + token conservation, unlock-script
// satisfaction, and (when wired) script-execution reproducibility.
func ValidateTransaction(tx chain.Transaction, view UTXOView, verifier ScriptVerifier, executor ScriptExecutor) error {
	if tx.IsCoinbase() {
		return errs.NewValidationError(errs.MissingInput, "non-coinbase validation called on a coinbase tx")
	}

	seen := make(map[chain.OutputRef]struct{}, len(tx.Unsigned.Inputs))
	inputTotal := primitives.ZeroU256()
	inputTokens := make(map[primitives.Hash]primitives.U256)

	for i, in := range tx.Unsigned.Inputs {
		if _, dup := seen[in.OutputRef]; dup {
			return errs.NewValidationError(errs.DuplicateInput, in.OutputRef.Key.String())
		}
		seen[in.OutputRef] = struct{}{}

		out, ok, err := view.GetOutput(in.OutputRef)
		if err != nil {
			return err
		}
		if !ok {
			return errs.NewValidationError(errs.MissingInput, in.OutputRef.Key.String())
		}

		var sum error
		if inputTotal, sum = inputTotal.Add(out.Amount()); sum != nil {
			return errs.NewValidationError(errs.InsufficientFunds, "input amount overflow")
		}
		for _, tok := range tokensOf(out) {
			accumulateToken(inputTokens, tok)
		}

		if verifier != nil {
			ok, err := verifier.VerifyUnlock(tx.Hash(), out.LockupScript(), in.UnlockScript, tx.InputSignatures)
			if err != nil {
				return err
			}
			if !ok {
				return errs.NewValidationError(errs.InvalidSignature, "input "+strconv.Itoa(i)+" unlock script rejected")
			}
		}
	}

	outputTotal := primitives.ZeroU256()
	outputTokens := make(map[primitives.Hash]primitives.U256)
	for _, out := range tx.Unsigned.FixedOutputs {
		var sum error
		if outputTotal, sum = outputTotal.Add(out.Amount); sum != nil {
			return errs.NewValidationError(errs.InsufficientFunds, "output amount overflow")
		}
		for _, tok := range out.Tokens {
			accumulateToken(outputTokens, tok)
		}
	}

	gasCost, err := primitives.U256FromUint64(tx.Unsigned.GasAmount).Mul(tx.Unsigned.GasPrice)
	if err != nil {
		return errs.NewValidationError(errs.OutOfGas, "gas cost overflow")
	}
	required, err := outputTotal.Add(gasCost)
	if err != nil {
		return errs.NewValidationError(errs.InsufficientFunds, "required amount overflow")
	}
	if inputTotal.Cmp(required) != 0 {
		return errs.NewValidationError(errs.InsufficientFunds, "sum(inputs) != sum(outputs) + gasAmount*gasPrice")
	}

	hasScript := len(tx.Unsigned.ScriptOpt) > 0
	if !hasScript {
		if !tokensEqual(inputTokens, outputTokens) {
			return errs.NewValidationError(errs.TokenImbalance, "token amounts not conserved")
		}
	} else if executor != nil {
		ok, generated, err := executor.Execute(tx, view)
		if err != nil {
			return errs.NewValidationError(errs.ScriptExecutionFailed, err.Error())
		}
		if ok != tx.ScriptExecutionOk {
			return errs.NewValidationError(errs.ScriptExecutionFailed, "recorded result does not match re-execution")
		}
		if ok && !outputsEqual(generated, tx.GeneratedOutputs) {
			return errs.NewValidationError(errs.ScriptExecutionFailed, "recorded generated outputs do not match re-execution")
		}
	}

	return nil
}

func tokensOf(out chain.TxOutput) []chain.TokenAmount {
	if out.Kind == chain.TxOutputContract {
		return out.Contract.Tokens
	}
	return out.Asset.Tokens
}

func accumulateToken(m map[primitives.Hash]primitives.U256, tok chain.TokenAmount) {
	cur, ok := m[tok.TokenID]
	if !ok {
		cur = primitives.ZeroU256()
	}
	if sum, err := cur.Add(tok.Amount); err == nil {
		m[tok.TokenID] = sum
	}
}

func tokensEqual(a, b map[primitives.Hash]primitives.U256) bool {
	if len(a) != len(b) {
		return false
	}
	for id, amt := range a {
		other, ok := b[id]
		if !ok || other.Cmp(amt) != 0 {
			return false
		}
	}
	return true
}

func outputsEqual(a, b []chain.TxOutput) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Amount().Cmp(b[i].Amount()) != 0 {
			return false
		}
	}
	return true
}
