package errs

import (
	"errors"
	"testing"
)

func TestIoErrorUnwrap(t *testing.T) {
	underlying := errors.New("disk full")
	err := NewIoError("WriteBatch", underlying)
	if !errors.Is(err, underlying) {
		t.Fatalf("expected IoError to unwrap to underlying error")
	}
	if CodeOf(err) != CodeIoError {
		t.Fatalf("expected CodeIoError, got %s", CodeOf(err))
	}
	if HTTPClass(err) != 500 {
		t.Fatalf("expected 500-class, got %d", HTTPClass(err))
	}
}

func TestNewIoErrorNilPassthrough(t *testing.T) {
	if NewIoError("op", nil) != nil {
		t.Fatalf("expected nil for nil underlying error")
	}
}

func TestValidationErrorClassification(t *testing.T) {
	err := NewValidationError(InsufficientFunds, "need 10, have 3")
	if CodeOf(err) != CodeValidationError {
		t.Fatalf("expected CodeValidationError, got %s", CodeOf(err))
	}
	if HTTPClass(err) != 400 {
		t.Fatalf("expected 400-class, got %d", HTTPClass(err))
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected errors.As to unwrap ValidationError")
	}
	if ve.Variant != InsufficientFunds {
		t.Fatalf("got variant %s", ve.Variant)
	}
}

func TestMissingDepsClassification(t *testing.T) {
	err := NewMissingDeps([][]byte{{0x01}, {0x02}})
	if CodeOf(err) != CodeMissingDeps {
		t.Fatalf("expected CodeMissingDeps, got %s", CodeOf(err))
	}
	if HTTPClass(err) != 404 {
		t.Fatalf("expected 404-class, got %d", HTTPClass(err))
	}
}

func TestAlreadyExistsClassification(t *testing.T) {
	if CodeOf(ErrAlreadyExists) != CodeAlreadyExists {
		t.Fatalf("expected CodeAlreadyExists")
	}
	if HTTPClass(ErrAlreadyExists) != 200 {
		t.Fatalf("expected 200-class, got %d", HTTPClass(ErrAlreadyExists))
	}
}

func TestCompilerErrorClassification(t *testing.T) {
	err := NewCompilerError(errors.New("unexpected token"))
	if CodeOf(err) != CodeCompilerError {
		t.Fatalf("expected CodeCompilerError, got %s", CodeOf(err))
	}
	if HTTPClass(err) != 400 {
		t.Fatalf("expected 400-class, got %d", HTTPClass(err))
	}
}

func TestSerdeErrorClassification(t *testing.T) {
	err := NewSerdeError("block header", errors.New("short read"))
	if CodeOf(err) != CodeSerdeError {
		t.Fatalf("expected CodeSerdeError, got %s", CodeOf(err))
	}
	if HTTPClass(err) != 500 {
		t.Fatalf("expected 500-class, got %d", HTTPClass(err))
	}
}

func TestUnrecognizedErrorDefaultsToIoError(t *testing.T) {
	err := errors.New("something unclassified")
	if CodeOf(err) != CodeIoError {
		t.Fatalf("expected default CodeIoError, got %s", CodeOf(err))
	}
}
