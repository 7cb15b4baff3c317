package vm

import "testing"

func TestGasMeterConsume(t *testing.T) {
	g := NewGasMeter(100)
	if err := g.Consume(40); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if g.Used() != 40 {
		t.Fatalf("used = %d, want 40", g.Used())
	}
	if g.Remaining() != 60 {
		t.Fatalf("remaining = %d, want 60", g.Remaining())
	}
}

func TestGasMeterOutOfGas(t *testing.T) {
	g := NewGasMeter(10)
	if err := g.Consume(11); err == nil {
		t.Fatal("expected out-of-gas error")
	}
	if g.Used() != 0 {
		t.Fatalf("used = %d, want 0 (failed charge must not apply)", g.Used())
	}
}

func TestGasMeterChargeOpcode(t *testing.T) {
	g := NewGasMeter(2)
	if err := g.ChargeOpcode(OpPop); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if err := g.ChargeOpcode(OpPop); err == nil {
		t.Fatal("expected out-of-gas on second charge")
	}
}

func TestGasMeterChargeArgs(t *testing.T) {
	g := NewGasMeter(1000)
	if err := g.ChargeArgs(10); err != nil {
		t.Fatalf("charge args: %v", err)
	}
	if g.Used() != 10*gasPerArgByte {
		t.Fatalf("used = %d, want %d", g.Used(), 10*gasPerArgByte)
	}
}
