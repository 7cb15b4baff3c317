// Package state implements the world-state trie and per-contract event log
// from spec section 4.5/4.6: an authenticated key/value structure whose
// root hash is the block's depStateHash, built from core/store's
// Cache/Staging composition plus a Merkle-path layer.
package state

import (
	"errors"

	"github.com/shardflow/flownode/core/errs"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/store"
)

// trieDepth is the bit-width of a key's Keccak digest, the path length from
// root to leaf.
const trieDepth = primitives.HashSize * 8

// emptySubtreeHash[d] is the canonical root hash of an empty subtree of
// remaining depth d (0 at a bare leaf, trieDepth at the whole tree). An
// absent key therefore needs no on-disk representation: its path resolves
// to these precomputed constants.
var emptySubtreeHash [trieDepth + 1]primitives.Hash

func init() {
	for d := 1; d <= trieDepth; d++ {
		prev := emptySubtreeHash[d-1]
		emptySubtreeHash[d] = primitives.KeccakHash(append(prev.Bytes(), prev.Bytes()...))
	}
}

var errTrieNodeMissing = errors.New("state: trie node missing from store")

type trieNode struct {
	Left, Right primitives.Hash
}

func encodeTrieNode(n trieNode) []byte {
	e := primitives.NewEncoder()
	e.PutHash(n.Left)
	e.PutHash(n.Right)
	return e.Bytes()
}

func decodeTrieNode(b []byte) (trieNode, error) {
	d := primitives.NewDecoder(b)
	left, err := d.Hash()
	if err != nil {
		return trieNode{}, err
	}
	right, err := d.Hash()
	if err != nil {
		return trieNode{}, err
	}
	return trieNode{Left: left, Right: right}, nil
}

var trieNodeCodec = store.Codec[primitives.Hash, trieNode]{
	EncodeKey:   func(h primitives.Hash) []byte { return h[:] },
	EncodeValue: encodeTrieNode,
	DecodeValue: decodeTrieNode,
}

// nodeStore is satisfied by both *store.Cache[Hash,trieNode] and
// *store.Staging[Hash,trieNode], so the same Trie logic drives both the
// persistent world state and a per-block staged simulation of it (spec
// section 4.5's "fresh Staging overlay above the BlockFlow's current
// world-state Cache").
type nodeStore interface {
	Get(primitives.Hash) (trieNode, bool, error)
	Put(primitives.Hash, trieNode)
}

// Trie is a sparse, content-addressed Merkle tree over 256-bit keys. It
// generalizes the teacher's flat leaf-list BuildMerkleTree (spec section
// 4.5's "Merkle Patricia style" trie) into a key/value structure: every
// internal node is addressed by its own hash, so an update only touches the
// O(depth) nodes on the path to the changed key rather than requiring a
// full leaf-set rehash.
type Trie struct {
	nodes nodeStore
	root  primitives.Hash
}

// NewTrie opens a Trie over nodes, starting from the empty root. Callers
// restoring a prior commitment should use NewTrieAt instead.
func NewTrie(nodes nodeStore) *Trie {
	return &Trie{nodes: nodes, root: emptySubtreeHash[trieDepth]}
}

// NewTrieAt reopens a Trie at a previously computed root.
func NewTrieAt(nodes nodeStore, root primitives.Hash) *Trie {
	return &Trie{nodes: nodes, root: root}
}

// Root returns the trie's current commitment.
func (t *Trie) Root() primitives.Hash { return t.root }

// Get looks up the leaf hash stored at key, if any.
func (t *Trie) Get(key primitives.Hash) (primitives.Hash, bool, error) {
	path := bitPath(key)
	cur := t.root
	for d := 0; d < trieDepth; d++ {
		if cur == emptySubtreeHash[trieDepth-d] {
			return primitives.Hash{}, false, nil
		}
		node, ok, err := t.nodes.Get(cur)
		if err != nil {
			return primitives.Hash{}, false, err
		}
		if !ok {
			return primitives.Hash{}, false, errs.NewIoError("trie.Get", errTrieNodeMissing)
		}
		if path[d] == 0 {
			cur = node.Left
		} else {
			cur = node.Right
		}
	}
	if cur == emptySubtreeHash[0] {
		return primitives.Hash{}, false, nil
	}
	return cur, true, nil
}

// Put inserts leafHash (the content hash of the value stored at key) and
// returns the new root.
func (t *Trie) Put(key, leafHash primitives.Hash) (primitives.Hash, error) {
	return t.update(key, leafHash)
}

// Remove deletes key by writing the canonical empty-leaf hash in its place.
func (t *Trie) Remove(key primitives.Hash) (primitives.Hash, error) {
	return t.update(key, emptySubtreeHash[0])
}

func (t *Trie) update(key, leafHash primitives.Hash) (primitives.Hash, error) {
	path := bitPath(key)
	siblings := make([]primitives.Hash, trieDepth)
	cur := t.root

	for d := 0; d < trieDepth; d++ {
		if cur == emptySubtreeHash[trieDepth-d] {
			for dd := d; dd < trieDepth; dd++ {
				siblings[dd] = emptySubtreeHash[trieDepth-dd-1]
			}
			break
		}
		node, ok, err := t.nodes.Get(cur)
		if err != nil {
			return primitives.Hash{}, err
		}
		if !ok {
			return primitives.Hash{}, errs.NewIoError("trie.update", errTrieNodeMissing)
		}
		if path[d] == 0 {
			siblings[d] = node.Right
			cur = node.Left
		} else {
			siblings[d] = node.Left
			cur = node.Right
		}
	}

	newHash := leafHash
	for d := trieDepth - 1; d >= 0; d-- {
		var node trieNode
		if path[d] == 0 {
			node = trieNode{Left: newHash, Right: siblings[d]}
		} else {
			node = trieNode{Left: siblings[d], Right: newHash}
		}
		newHash = primitives.KeccakHash(encodeTrieNode(node))
		if newHash != emptySubtreeHash[trieDepth-d] {
			t.nodes.Put(newHash, node)
		}
	}
	t.root = newHash
	return newHash, nil
}

func bitPath(h primitives.Hash) []byte {
	bits := make([]byte, trieDepth)
	for i := 0; i < trieDepth; i++ {
		byteIdx := i / 8
		bitIdx := 7 - uint(i%8)
		bits[i] = (h[byteIdx] >> bitIdx) & 1
	}
	return bits
}
