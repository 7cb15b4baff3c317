// Package primitives' encoding helpers implement the canonical wire/disk
// format from spec section 6: fixed-width little-endian integers, u32
// length-prefixed byte sequences, and u8-tagged unions. Every other
// package's (De)Serialize methods are built out of these primitives so the
// format stays consistent across block headers, transactions, and store
// keys.
package primitives

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a decoding method is given fewer bytes
// than the value it's decoding requires.
var ErrShortBuffer = errors.New("primitives: buffer too short")

// Encoder accumulates a canonical byte encoding.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// PutUint8 appends a single byte.
func (e *Encoder) PutUint8(v uint8) { e.buf = append(e.buf, v) }

// PutUint32 appends a 4-byte little-endian integer.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutUint64 appends an 8-byte little-endian integer.
func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutBytes appends a u32 length prefix followed by raw bytes — the
// variable-length encoding used for scripts, signatures, and contract code.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// PutFixed appends raw bytes with no length prefix, for fields whose width
// is already fixed by their type (Hash, Target, Address payloads).
func (e *Encoder) PutFixed(b []byte) { e.buf = append(e.buf, b...) }

// PutHash appends a Hash's raw 32 bytes.
func (e *Encoder) PutHash(h Hash) { e.PutFixed(h[:]) }

// Decoder reads a canonical byte encoding sequentially, tracking position
// and surfacing short-buffer errors instead of panicking on malformed
// input — decoded bytes arrive over the wire from untrusted peers.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for sequential decoding.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Remaining returns the number of undecoded bytes left.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) take(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, ErrShortBuffer
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// Uint8 decodes a single byte.
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 decodes a 4-byte little-endian integer.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 decodes an 8-byte little-endian integer.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Bytes decodes a u32-length-prefixed byte sequence, capped at
// maxBytesFieldLen to bound allocation from a hostile length prefix.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > maxBytesFieldLen {
		return nil, fmt.Errorf("primitives: encoded field length %d exceeds limit", n)
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Fixed decodes exactly n raw bytes with no length prefix.
func (d *Decoder) Fixed(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Hash decodes a fixed 32-byte Hash.
func (d *Decoder) Hash() (Hash, error) {
	b, err := d.take(HashSize)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(b), nil
}

// maxBytesFieldLen bounds a single length-prefixed field to 16MiB, well
// above any legitimate script or contract-code payload, to stop a malformed
// length prefix from driving an unbounded allocation.
const maxBytesFieldLen = 16 << 20
