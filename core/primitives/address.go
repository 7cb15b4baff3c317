package primitives

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressType tags the four address shapes spec section 3 describes.
type AddressType byte

const (
	// AddressP2PKH pays to a single public-key hash.
	AddressP2PKH AddressType = 0
	// AddressP2MPKH pays to an m-of-n set of public-key hashes.
	AddressP2MPKH AddressType = 1
	// AddressP2SH pays to a redeem-script hash.
	AddressP2SH AddressType = 2
	// AddressP2C pays to a contract id.
	AddressP2C AddressType = 3
)

func (t AddressType) String() string {
	switch t {
	case AddressP2PKH:
		return "P2PKH"
	case AddressP2MPKH:
		return "P2MPKH"
	case AddressP2SH:
		return "P2SH"
	case AddressP2C:
		return "P2C"
	default:
		return fmt.Sprintf("AddressType(%d)", byte(t))
	}
}

// Address is the tagged union described in spec section 3: P2PKH(pubkey
// hash), P2MPKH(m, hashes), P2SH(script hash), P2C(contract id). Only the
// fields relevant to Type are populated; the rest are zero.
type Address struct {
	Type AddressType

	// PubKeyHash is populated for AddressP2PKH.
	PubKeyHash Hash

	// Threshold (m) and PubKeyHashes (the n hashes) are populated for
	// AddressP2MPKH.
	Threshold    uint8
	PubKeyHashes []Hash

	// ScriptHash is populated for AddressP2SH.
	ScriptHash Hash

	// ContractID is populated for AddressP2C.
	ContractID Hash
}

// NewP2PKH builds a single public-key-hash address.
func NewP2PKH(h Hash) Address { return Address{Type: AddressP2PKH, PubKeyHash: h} }

// NewP2SH builds a script-hash address.
func NewP2SH(h Hash) Address { return Address{Type: AddressP2SH, ScriptHash: h} }

// NewP2C builds a contract address.
func NewP2C(id Hash) Address { return Address{Type: AddressP2C, ContractID: id} }

// NewP2MPKH builds an m-of-n multisig address. It returns an error if m is
// zero, exceeds n, or n exceeds 255 (the encoded count is a single byte).
func NewP2MPKH(m uint8, hashes []Hash) (Address, error) {
	if m == 0 || int(m) > len(hashes) {
		return Address{}, fmt.Errorf("primitives: invalid multisig threshold %d of %d", m, len(hashes))
	}
	if len(hashes) > 255 {
		return Address{}, errors.New("primitives: multisig address supports at most 255 keys")
	}
	cp := make([]Hash, len(hashes))
	copy(cp, hashes)
	return Address{Type: AddressP2MPKH, Threshold: m, PubKeyHashes: cp}, nil
}

// payload returns the tag-specific body encoded per spec section 6: fixed
// hashes as raw bytes, the multisig threshold/count as single bytes ahead of
// the concatenated hashes.
func (a Address) payload() ([]byte, error) {
	switch a.Type {
	case AddressP2PKH:
		return a.PubKeyHash.Bytes(), nil
	case AddressP2SH:
		return a.ScriptHash.Bytes(), nil
	case AddressP2C:
		return a.ContractID.Bytes(), nil
	case AddressP2MPKH:
		if len(a.PubKeyHashes) > 255 {
			return nil, errors.New("primitives: multisig address supports at most 255 keys")
		}
		out := make([]byte, 0, 2+len(a.PubKeyHashes)*HashSize)
		out = append(out, a.Threshold, byte(len(a.PubKeyHashes)))
		for _, h := range a.PubKeyHashes {
			out = append(out, h.Bytes()...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("primitives: unknown address type %d", a.Type)
	}
}

// checksum is the first 4 bytes of KeccakHash(tag||payload), appended before
// Base58 encoding so corrupted or mistyped addresses are rejected on decode
// rather than silently misrouting funds.
func checksum(tagAndPayload []byte) [4]byte {
	h := KeccakHash(tagAndPayload)
	var c [4]byte
	copy(c[:], h[:4])
	return c
}

// Encode renders the address as base58check(tag_byte || payload || checksum)
// per spec section 6.
func (a Address) Encode() (string, error) {
	payload, err := a.payload()
	if err != nil {
		return "", err
	}
	body := make([]byte, 0, 1+len(payload))
	body = append(body, byte(a.Type))
	body = append(body, payload...)
	sum := checksum(body)
	return base58.Encode(append(body, sum[:]...)), nil
}

// String implements fmt.Stringer, swallowing encode errors as "<invalid>"
// so Address is safe to use in log fields without an error check at every
// call site (matching the teacher's logging-heavy style elsewhere).
func (a Address) String() string {
	s, err := a.Encode()
	if err != nil {
		return "<invalid-address>"
	}
	return s
}

// DecodeAddress parses a base58check-encoded address, verifying the
// checksum and tag before interpreting the payload.
func DecodeAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("primitives: base58 decode: %w", err)
	}
	if len(raw) < 1+4 {
		return Address{}, errors.New("primitives: address too short")
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	want := checksum(body)
	if !bytesEqual(sum, want[:]) {
		return Address{}, errors.New("primitives: address checksum mismatch")
	}
	return parseTagAndPayload(body)
}

// RawBytes encodes the address as tag_byte||payload, the same body Encode
// base58check-wraps but without the checksum. Output lockup scripts use
// this form directly: a script-verifier parses the address components out
// of the script bytes without a base58 round trip.
func (a Address) RawBytes() ([]byte, error) {
	payload, err := a.payload()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(a.Type))
	out = append(out, payload...)
	return out, nil
}

// AddressFromRawBytes parses the tag_byte||payload encoding RawBytes
// produces, with no checksum to verify.
func AddressFromRawBytes(b []byte) (Address, error) {
	if len(b) < 1 {
		return Address{}, errors.New("primitives: empty address bytes")
	}
	return parseTagAndPayload(b)
}

func parseTagAndPayload(body []byte) (Address, error) {
	typ := AddressType(body[0])
	payload := body[1:]
	switch typ {
	case AddressP2PKH:
		if len(payload) != HashSize {
			return Address{}, errors.New("primitives: malformed P2PKH payload")
		}
		return NewP2PKH(HashFromBytes(payload)), nil
	case AddressP2SH:
		if len(payload) != HashSize {
			return Address{}, errors.New("primitives: malformed P2SH payload")
		}
		return NewP2SH(HashFromBytes(payload)), nil
	case AddressP2C:
		if len(payload) != HashSize {
			return Address{}, errors.New("primitives: malformed P2C payload")
		}
		return NewP2C(HashFromBytes(payload)), nil
	case AddressP2MPKH:
		if len(payload) < 2 {
			return Address{}, errors.New("primitives: malformed P2MPKH payload")
		}
		m, n := payload[0], payload[1]
		rest := payload[2:]
		if len(rest) != int(n)*HashSize {
			return Address{}, errors.New("primitives: malformed P2MPKH hash list")
		}
		hashes := make([]Hash, n)
		for i := 0; i < int(n); i++ {
			hashes[i] = HashFromBytes(rest[i*HashSize : (i+1)*HashSize])
		}
		return NewP2MPKH(m, hashes)
	default:
		return Address{}, fmt.Errorf("primitives: unknown address tag %d", typ)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GroupOf returns the shard group an address routes to: the first four
// bytes of its payload, read big-endian, modulo the network's group count
// G (spec section 3,
// OutputRef.hint routing; glossary "Chain index").
func (a Address) GroupOf(groupCount uint32) (uint32, error) {
	payload, err := a.payload()
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, errors.New("primitives: address payload too short to derive group")
	}
	v := binary.BigEndian.Uint32(payload[:4])
	return v % groupCount, nil
}
