// Package primitives implements the leaf-level value types shared by every
// other package in this module: fixed-width hashes, tagged-union addresses,
// the compact PoW target encoding, checked 256-bit arithmetic, and the
// canonical wire/disk encoding described in spec section 6.
package primitives

import (
	"bytes"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// HashSize is the fixed width, in bytes, of every hash in this system.
const HashSize = 32

// Hash is a 32-byte fixed-width digest. Its canonical serialization is its
// raw bytes (spec section 3).
type Hash [HashSize]byte

// ZeroHash is the all-zero sentinel used as the "no parent" root marker.
var ZeroHash Hash

// String renders the hash as lowercase hex, matching how the teacher's
// chain_fork_manager keys its fork table by hex-encoded parent hashes.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Bytes returns the hash's underlying bytes.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// Less reports whether h sorts lexicographically before o. Used as the
// deterministic last-resort tie-break for equal height/weight fork tips
// (spec section 9, Open Questions).
func (h Hash) Less(o Hash) bool { return bytes.Compare(h[:], o[:]) < 0 }

// HashFromBytes copies b into a Hash, zero-padding or truncating as needed.
// Callers that require an exact-length match should check len(b) themselves.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// HashFromHex decodes a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(b), nil
}

// BlakeHash hashes data with the Blake family. It is the identity hash for
// blocks and transactions: block identity is BlakeHash(header bytes),
// transaction identity is BlakeHash(unsigned bytes) (spec section 3).
//
// See DESIGN.md for why header/tx identity uses Blake while world-state trie
// nodes and contract IDs use Keccak (KeccakHash below).
func BlakeHash(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// KeccakHash hashes data with the Keccak family, used for world-state trie
// node hashing and contract-id derivation (spec sections 4.5/9).
func KeccakHash(data []byte) Hash {
	return HashFromBytes(ethcrypto.Keccak256(data))
}
