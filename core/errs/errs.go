// Package errs defines the exhaustive error taxonomy from spec section 7:
// stable, structured error codes distinguishing disk/wire failures from
// consensus-validation rejections from recoverable conditions, so that
// every layer — the actors, the RPC surface, the CLI — can propagate and
// classify errors by code rather than by matching message strings.
package errs

import (
	"errors"
	"fmt"
)

// Code is a stable, API-visible error identifier. Unlike an error message,
// a Code is safe to switch on and safe to keep stable across releases.
type Code string

const (
	// CodeIoError marks disk read/write or encoding corruption. Fatal for
	// the affected batch.
	CodeIoError Code = "IO_ERROR"
	// CodeSerdeError marks malformed wire or disk bytes.
	CodeSerdeError Code = "SERDE_ERROR"
	// CodeValidationError marks a rejected block or transaction; see
	// ValidationVariant for the specific reason.
	CodeValidationError Code = "VALIDATION_ERROR"
	// CodeMissingDeps marks a block parked pending dependency arrival.
	CodeMissingDeps Code = "MISSING_DEPS"
	// CodeAlreadyExists marks a benign, idempotent duplicate add.
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	// CodeCompilerError marks a contract compilation failure surfaced only
	// to API callers, never to consensus.
	CodeCompilerError Code = "COMPILER_ERROR"
)

// ValidationVariant enumerates the exhaustive set of block/transaction
// rejection reasons from spec section 7.
type ValidationVariant string

const (
	InvalidPoW              ValidationVariant = "InvalidPoW"
	InvalidTarget            ValidationVariant = "InvalidTarget"
	InvalidChainIndex        ValidationVariant = "InvalidChainIndex"
	InvalidTimestamp         ValidationVariant = "InvalidTimestamp"
	InvalidDeps              ValidationVariant = "InvalidDeps"
	InvalidTxHash            ValidationVariant = "InvalidTxHash"
	InvalidStateCommitment   ValidationVariant = "InvalidStateCommitment"
	InvalidSignature         ValidationVariant = "InvalidSignature"
	InsufficientFunds        ValidationVariant = "InsufficientFunds"
	TokenImbalance           ValidationVariant = "TokenImbalance"
	ScriptExecutionFailed    ValidationVariant = "ScriptExecutionFailed"
	OutOfGas                 ValidationVariant = "OutOfGas"
	DuplicateInput           ValidationVariant = "DuplicateInput"
	MissingInput             ValidationVariant = "MissingInput"
)

// IoError wraps a disk failure. The originating operation is aborted and
// the actor surfaces it upward; persistent IO errors trigger node
// shutdown (spec section 7).
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("io error during %s", e.Op)
	}
	return fmt.Sprintf("io error during %s: %s", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// NewIoError builds an IoError for the given operation name.
func NewIoError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Op: op, Err: err}
}

// SerdeError wraps malformed wire or disk bytes. Peer input escalates to a
// misbehavior demerit; disk input escalates to IoError (spec section 7).
type SerdeError struct {
	Context string
	Err     error
}

func (e *SerdeError) Error() string {
	return fmt.Sprintf("malformed encoding in %s: %s", e.Context, e.Err)
}

func (e *SerdeError) Unwrap() error { return e.Err }

// NewSerdeError builds a SerdeError for the given context.
func NewSerdeError(context string, err error) error {
	if err == nil {
		return nil
	}
	return &SerdeError{Context: context, Err: err}
}

// ValidationError rejects a block or transaction without any state change
// (spec section 7). Reason carries the specific variant-dependent detail,
// e.g. the opcode a ScriptExecutionFailed failed on.
type ValidationError struct {
	Variant ValidationVariant
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return string(e.Variant)
	}
	return fmt.Sprintf("%s: %s", e.Variant, e.Reason)
}

// NewValidationError builds a ValidationError for the given variant.
func NewValidationError(variant ValidationVariant, reason string) error {
	return &ValidationError{Variant: variant, Reason: reason}
}

// MissingDeps marks a block parked pending the arrival of the listed
// dependency hashes. The caller re-requests them and retries the add once
// they arrive.
type MissingDeps struct {
	Hashes [][]byte
}

func (e *MissingDeps) Error() string {
	return fmt.Sprintf("missing %d dependency hash(es)", len(e.Hashes))
}

// NewMissingDeps builds a MissingDeps error for the given hashes.
func NewMissingDeps(hashes [][]byte) error {
	return &MissingDeps{Hashes: hashes}
}

// ErrAlreadyExists marks a benign, idempotent duplicate add.
var ErrAlreadyExists = errors.New(string(CodeAlreadyExists))

// CompilerError wraps a contract compilation failure. It is a boundary
// error: surfaced to API callers only, never to consensus (spec section 7).
type CompilerError struct {
	Err error
}

func (e *CompilerError) Error() string { return fmt.Sprintf("compilation failed: %s", e.Err) }

func (e *CompilerError) Unwrap() error { return e.Err }

// NewCompilerError builds a CompilerError.
func NewCompilerError(err error) error {
	if err == nil {
		return nil
	}
	return &CompilerError{Err: err}
}

// CodeOf classifies err by its Code, defaulting to CodeIoError for any
// unrecognized error — the conservative choice, since an unclassified
// failure should trigger the same escalation path as a disk failure
// rather than being silently treated as benign.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case asIoError(err) != nil:
		return CodeIoError
	case asSerdeError(err) != nil:
		return CodeSerdeError
	case asValidationError(err) != nil:
		return CodeValidationError
	case asMissingDeps(err) != nil:
		return CodeMissingDeps
	case asCompilerError(err) != nil:
		return CodeCompilerError
	default:
		return CodeIoError
	}
}

func asIoError(err error) *IoError {
	var e *IoError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func asSerdeError(err error) *SerdeError {
	var e *SerdeError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func asValidationError(err error) *ValidationError {
	var e *ValidationError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func asMissingDeps(err error) *MissingDeps {
	var e *MissingDeps
	if errors.As(err, &e) {
		return e
	}
	return nil
}

func asCompilerError(err error) *CompilerError {
	var e *CompilerError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// HTTPClass returns the API-visible response class for err, per spec
// section 7: validation failures and compiler errors are 400-class, "not
// found" is 404, AlreadyExists is reported as success (200) because a
// duplicate submission is benign, and everything else is 500-class.
func HTTPClass(err error) int {
	switch CodeOf(err) {
	case CodeValidationError:
		return 400
	case CodeMissingDeps:
		return 404
	case CodeAlreadyExists:
		return 200
	case CodeCompilerError:
		return 400
	default:
		return 500
	}
}
