package vm

import "fmt"

// ErrOutOfGas is returned when an opcode's cost would exceed the remaining
// gas budget, grounded on the teacher's GasMeter.Consume.
type ErrOutOfGas struct {
	Used, Limit uint64
}

func (e *ErrOutOfGas) Error() string {
	return fmt.Sprintf("vm: out of gas (%d/%d)", e.Used, e.Limit)
}

// GasMeter tracks gas usage and enforces the execution gas limit (spec
// section 4.5: "every opcode charges a fixed cost; contract calls charge
// per-argument serialization cost; out-of-gas aborts execution").
type GasMeter struct {
	used  uint64
	limit uint64
}

// NewGasMeter constructs a GasMeter with the given gas limit.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Used returns the gas consumed so far.
func (g *GasMeter) Used() uint64 { return g.used }

// Remaining returns the gas still available.
func (g *GasMeter) Remaining() uint64 { return g.limit - g.used }

// Consume charges cost against the remaining budget, failing if it would
// exceed the limit.
func (g *GasMeter) Consume(cost uint64) error {
	if g.used+cost > g.limit {
		return &ErrOutOfGas{Used: g.used + cost, Limit: g.limit}
	}
	g.used += cost
	return nil
}

// ChargeOpcode consumes the fixed cost for op.
func (g *GasMeter) ChargeOpcode(op Opcode) error {
	return g.Consume(GasCost(op))
}

// ChargeArgs consumes a per-argument serialization cost, used by contract
// calls (spec section 4.5).
func (g *GasMeter) ChargeArgs(argBytes int) error {
	return g.Consume(uint64(argBytes) * gasPerArgByte)
}
