package rpcsurface

import (
	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
)

// Destination is one payment leg of a transfer (spec section 6's
// buildTransferTx "destinations[]").
type Destination struct {
	Address  primitives.Address
	Amount   primitives.U256
	Tokens   []chain.TokenAmount
	LockTime int64
}

// GasOptions caps the gas a built transaction may spend.
type GasOptions struct {
	GasAmount uint64
	GasPrice  primitives.U256
}

// BuildTransferTx assembles an unsigned transaction paying destinations
// from fromPubKey's P2PKH UTXOs, adapted from the teacher's HD-wallet
// balance-scan-then-sign shape (NewHDWallet's pubKeyToAddress,
// HDWallet.SignTx) to this module's UTXO model: instead of one account
// balance, it greedily selects unspent outputs until their sum covers
// destinations plus the gas cost, then returns any excess as a change
// output back to the sender (spec section 4.4 requires
// sum(inputs) == sum(outputs) + gasAmount*gasPrice exactly).
func (s *Surface) BuildTransferTx(fromPubKey []byte, destinations []Destination, gas GasOptions) (chain.TxUnsigned, error) {
	if len(destinations) == 0 {
		return chain.TxUnsigned{}, errs.NewValidationError(errs.InsufficientFunds, "no destinations supplied")
	}

	fromAddr := primitives.NewP2PKH(primitives.KeccakHash(fromPubKey))
	lockupScript, err := fromAddr.RawBytes()
	if err != nil {
		return chain.TxUnsigned{}, err
	}

	outputTotal := primitives.ZeroU256()
	outputs := make([]chain.AssetOutput, 0, len(destinations))
	for _, dest := range destinations {
		destScript, err := dest.Address.RawBytes()
		if err != nil {
			return chain.TxUnsigned{}, err
		}
		outputs = append(outputs, chain.AssetOutput{
			Amount:       dest.Amount,
			LockupScript: destScript,
			Tokens:       dest.Tokens,
			LockTime:     dest.LockTime,
		})
		var sumErr error
		if outputTotal, sumErr = outputTotal.Add(dest.Amount); sumErr != nil {
			return chain.TxUnsigned{}, errs.NewValidationError(errs.InsufficientFunds, "destination amount overflow")
		}
	}

	gasCost, err := primitives.U256FromUint64(gas.GasAmount).Mul(gas.GasPrice)
	if err != nil {
		return chain.TxUnsigned{}, errs.NewValidationError(errs.OutOfGas, "gas cost overflow")
	}
	required, err := outputTotal.Add(gasCost)
	if err != nil {
		return chain.TxUnsigned{}, errs.NewValidationError(errs.InsufficientFunds, "required amount overflow")
	}

	entries, err := s.utxoIndex.OutputsByLockupScript(lockupScript)
	if err != nil {
		return chain.TxUnsigned{}, err
	}

	inputs := make([]chain.TxInput, 0, len(entries))
	inputTotal := primitives.ZeroU256()
	for _, entry := range entries {
		if inputTotal.Cmp(required) >= 0 {
			break
		}
		inputs = append(inputs, chain.TxInput{OutputRef: entry.Ref})
		var sumErr error
		if inputTotal, sumErr = inputTotal.Add(entry.Output.Amount()); sumErr != nil {
			return chain.TxUnsigned{}, errs.NewValidationError(errs.InsufficientFunds, "input amount overflow")
		}
	}
	if inputTotal.Cmp(required) < 0 {
		return chain.TxUnsigned{}, errs.NewValidationError(errs.InsufficientFunds, "insufficient funds for transfer")
	}

	if change, err := inputTotal.Sub(required); err == nil && !change.IsZero() {
		outputs = append(outputs, chain.AssetOutput{Amount: change, LockupScript: lockupScript})
	}

	return chain.TxUnsigned{
		GasAmount:    gas.GasAmount,
		GasPrice:     gas.GasPrice,
		Inputs:       inputs,
		FixedOutputs: outputs,
	}, nil
}
