package rpcsurface

import (
	"time"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

// Balance reports the funds locked to a single address, split by whether a
// lock time has already elapsed (spec section 6's getBalance shape).
type Balance struct {
	Alph         primitives.U256
	LockedAlph   primitives.U256
	Tokens       []chain.TokenAmount
	LockedTokens []chain.TokenAmount
	UTXOCount    int
}

// GetBalance scans every unspent output locked to address and sums their
// value, splitting out anything still subject to an unexpired LockTime.
func (s *Surface) GetBalance(address primitives.Address) (Balance, error) {
	lockupScript, err := address.RawBytes()
	if err != nil {
		return Balance{}, err
	}
	entries, err := s.utxoIndex.OutputsByLockupScript(lockupScript)
	if err != nil {
		return Balance{}, err
	}

	bal := Balance{Alph: primitives.ZeroU256(), LockedAlph: primitives.ZeroU256()}
	now := time.Now().UnixMilli()
	tokenTotals := make(map[primitives.Hash]primitives.U256)
	lockedTokenTotals := make(map[primitives.Hash]primitives.U256)

	for _, entry := range entries {
		bal.UTXOCount++
		locked := isLocked(entry.Output, now)

		if locked {
			bal.LockedAlph, _ = bal.LockedAlph.Add(entry.Output.Amount())
		} else {
			bal.Alph, _ = bal.Alph.Add(entry.Output.Amount())
		}
		for _, tok := range tokensOf(entry.Output) {
			if locked {
				accumulate(lockedTokenTotals, tok)
			} else {
				accumulate(tokenTotals, tok)
			}
		}
	}

	bal.Tokens = flatten(tokenTotals)
	bal.LockedTokens = flatten(lockedTokenTotals)
	return bal, nil
}

func isLocked(out chain.TxOutput, nowMillis int64) bool {
	if out.Kind != chain.TxOutputAsset {
		return false
	}
	return out.Asset.LockTime > nowMillis
}

func tokensOf(out chain.TxOutput) []chain.TokenAmount {
	if out.Kind == chain.TxOutputContract {
		return out.Contract.Tokens
	}
	return out.Asset.Tokens
}

func accumulate(m map[primitives.Hash]primitives.U256, tok chain.TokenAmount) {
	cur, ok := m[tok.TokenID]
	if !ok {
		cur = primitives.ZeroU256()
	}
	if sum, err := cur.Add(tok.Amount); err == nil {
		m[tok.TokenID] = sum
	}
}

func flatten(m map[primitives.Hash]primitives.U256) []chain.TokenAmount {
	out := make([]chain.TokenAmount, 0, len(m))
	for id, amt := range m {
		out = append(out, chain.TokenAmount{TokenID: id, Amount: amt})
	}
	return out
}
