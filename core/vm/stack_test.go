package vm

import "testing"

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	if err := s.Push(BoolValue(true)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	v, err := s.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if b, _ := v.asBool(); !b {
		t.Fatalf("popped value = %v, want true", b)
	}
	if s.Len() != 0 {
		t.Fatalf("len after pop = %d, want 0", s.Len())
	}
}

func TestStackUnderflow(t *testing.T) {
	s := NewStack()
	if _, err := s.Pop(); err != ErrStackUnderflow {
		t.Fatalf("err = %v, want ErrStackUnderflow", err)
	}
	if _, err := s.Peek(); err != ErrStackUnderflow {
		t.Fatalf("err = %v, want ErrStackUnderflow", err)
	}
}

func TestStackOverflow(t *testing.T) {
	s := NewStack()
	for i := 0; i < maxStackDepth; i++ {
		if err := s.Push(BoolValue(true)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := s.Push(BoolValue(true)); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestStackPeekDoesNotRemove(t *testing.T) {
	s := NewStack()
	_ = s.Push(BoolValue(false))
	if _, err := s.Peek(); err != nil {
		t.Fatalf("peek: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}
