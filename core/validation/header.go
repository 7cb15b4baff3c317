// Package validation implements the stateless header checks and stateful
// block/transaction checks from spec section 4.4, producing the exact
// ValidationError variants the rest of the system classifies errors by.
package validation

import (
	"time"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
)

// HeaderRules bundles the network parameters header validation needs.
type HeaderRules struct {
	GroupCount          uint32
	ClockDriftTolerance time.Duration
}

// ValidateHeader runs every stateless header check from spec section 4.4.
// parent is nil for a chain's genesis header, in which case the
// target-adjustment-band check is skipped.
func ValidateHeader(h chain.BlockHeader, parent *chain.BlockHeader, declared chain.ChainIndex, rules HeaderRules, now time.Time) error {
	hash := h.Hash()

	if !h.Target.MeetsTarget(hash) {
		return errs.NewValidationError(errs.InvalidPoW, "hash does not satisfy declared target")
	}

	if parent != nil && !primitives.WithinAdjustmentBand(parent.Target, h.Target) {
		return errs.NewValidationError(errs.InvalidTarget, "target outside allowed adjustment band")
	}

	if got := chain.ChainIndexOf(hash, rules.GroupCount); got != declared {
		return errs.NewValidationError(errs.InvalidChainIndex, "header hash resolves to "+got.String()+", declared "+declared.String())
	}

	nowMillis := now.UnixMilli()
	driftMillis := rules.ClockDriftTolerance.Milliseconds()
	if h.Timestamp > nowMillis+driftMillis {
		return errs.NewValidationError(errs.InvalidTimestamp, "timestamp too far in the future")
	}

	wantDeps := chain.NumChainDeps(rules.GroupCount)
	if len(h.BlockDeps) != wantDeps {
		return errs.NewValidationError(errs.InvalidDeps, "blockDeps has the wrong length")
	}
	seen := make(map[primitives.Hash]struct{}, len(h.BlockDeps))
	for _, d := range h.BlockDeps {
		if _, dup := seen[d]; dup {
			return errs.NewValidationError(errs.InvalidDeps, "duplicate blockDeps entry")
		}
		seen[d] = struct{}{}
	}

	return nil
}
