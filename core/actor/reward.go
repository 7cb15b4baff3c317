package actor

import "github.com/shardflow/flownode/core/primitives"

// RewardSchedule computes the block subsidy paid to a chain's coinbase at a
// given height (spec section 4.4: "blockReward(height) + sum(txFees)"). The
// spec leaves the schedule itself unspecified; this mirrors the teacher's
// fixed-supply-constant shape (core/coin.go's GenesisAlloc/MaxSupply) with a
// halving interval, defaulting to a flat reward when HalvingInterval is 0.
type RewardSchedule struct {
	InitialReward   primitives.U256
	HalvingInterval uint64
}

// AmountAt returns the subsidy for a block at the given chain height.
func (r RewardSchedule) AmountAt(height uint64) primitives.U256 {
	if r.HalvingInterval == 0 {
		return r.InitialReward
	}
	halvings := height / r.HalvingInterval
	amount := r.InitialReward
	for i := uint64(0); i < halvings && !amount.IsZero(); i++ {
		amount = halve(amount)
	}
	return amount
}

// halve divides a U256 by two via its big-endian byte representation,
// since U256 does not expose a division operator.
func halve(u primitives.U256) primitives.U256 {
	b := u.Bytes32()
	carry := byte(0)
	for i := 0; i < len(b); i++ {
		cur := b[i]
		b[i] = (cur >> 1) | (carry << 7)
		carry = cur & 1
	}
	return primitives.U256FromBytes(b[:])
}
