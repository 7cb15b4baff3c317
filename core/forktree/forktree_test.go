package forktree

import (
	"testing"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
)

func testBlock(t *testing.T, seed string, parent primitives.Hash) chain.Block {
	t.Helper()
	return chain.Block{
		Header: chain.BlockHeader{
			Version:      1,
			BlockDeps:    []primitives.Hash{parent},
			DepStateHash: primitives.BlakeHash([]byte(seed + "-state")),
			TxsHash:      primitives.BlakeHash([]byte(seed + "-txs")),
			Timestamp:    int64(len(seed)),
			Target:       primitives.Target{0x20, 0xFF, 0xFF, 0xFF},
			Nonce:        [24]byte{byte(len(seed))},
		},
	}
}

func w(n uint64) primitives.U256 { return primitives.U256FromUint64(n) }

func TestAddRootThenChild(t *testing.T) {
	tree := New(chain.ChainIndex{From: 0, To: 0}, 5)
	root := testBlock(t, "root", primitives.ZeroHash)
	res, err := tree.AddRoot(root, w(10))
	if err != nil || res != Success {
		t.Fatalf("AddRoot: %v, %v", res, err)
	}

	child := testBlock(t, "child", root.Hash())
	res, err = tree.Add(child, root.Hash(), w(20))
	if err != nil || res != Success {
		t.Fatalf("Add: %v, %v", res, err)
	}

	if tree.GetHeight(child.Hash()) != 1 {
		t.Fatalf("expected height 1, got %d", tree.GetHeight(child.Hash()))
	}
	if tree.IsTip(root.Hash()) {
		t.Fatalf("root should no longer be a tip once it has a child")
	}
	if !tree.IsTip(child.Hash()) {
		t.Fatalf("child should be the new tip")
	}
}

func TestAddMissingParentReturnsMissingDeps(t *testing.T) {
	tree := New(chain.ChainIndex{From: 0, To: 0}, 5)
	orphan := testBlock(t, "orphan", primitives.BlakeHash([]byte("nonexistent-parent")))
	res, err := tree.Add(orphan, primitives.BlakeHash([]byte("nonexistent-parent")), w(5))
	if res != MissingDepsResult {
		t.Fatalf("expected MissingDeps, got %v", res)
	}
	if err == nil {
		t.Fatalf("expected an error accompanying MissingDeps")
	}
}

func TestAddDuplicateReturnsAlreadyExists(t *testing.T) {
	tree := New(chain.ChainIndex{From: 0, To: 0}, 5)
	root := testBlock(t, "root", primitives.ZeroHash)
	tree.AddRoot(root, w(10))
	res, err := tree.AddRoot(root, w(10))
	if err != nil || res != AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v, %v", res, err)
	}
}

func TestGetBestTipPrefersHigherWeightAtEqualHeight(t *testing.T) {
	tree := New(chain.ChainIndex{From: 0, To: 0}, 100)
	root := testBlock(t, "root", primitives.ZeroHash)
	tree.AddRoot(root, w(0))

	a := testBlock(t, "branch-a", root.Hash())
	b := testBlock(t, "branch-b", root.Hash())
	tree.Add(a, root.Hash(), w(10))
	tree.Add(b, root.Hash(), w(20))

	best, ok := tree.GetBestTip()
	if !ok {
		t.Fatalf("expected a best tip")
	}
	if best != b.Hash() {
		t.Fatalf("expected higher-weight branch to win tie-break")
	}
}

func TestIsBeforeAncestry(t *testing.T) {
	tree := New(chain.ChainIndex{From: 0, To: 0}, 100)
	root := testBlock(t, "root", primitives.ZeroHash)
	tree.AddRoot(root, w(0))
	child := testBlock(t, "child", root.Hash())
	tree.Add(child, root.Hash(), w(10))
	grandchild := testBlock(t, "grandchild", child.Hash())
	tree.Add(grandchild, child.Hash(), w(20))

	if !tree.IsBefore(root.Hash(), grandchild.Hash()) {
		t.Fatalf("expected root to be an ancestor of grandchild")
	}
	if tree.IsBefore(grandchild.Hash(), root.Hash()) {
		t.Fatalf("expected grandchild to not be an ancestor of root")
	}
	if tree.IsBefore(root.Hash(), root.Hash()) {
		t.Fatalf("expected a node to not be its own ancestor")
	}
}

func TestGetBlockSliceReturnsRootToTipInclusive(t *testing.T) {
	tree := New(chain.ChainIndex{From: 0, To: 0}, 100)
	root := testBlock(t, "root", primitives.ZeroHash)
	tree.AddRoot(root, w(0))
	child := testBlock(t, "child", root.Hash())
	tree.Add(child, root.Hash(), w(10))

	slice := tree.GetBlockSlice(child.Hash())
	if len(slice) != 2 || slice[0] != root.Hash() || slice[1] != child.Hash() {
		t.Fatalf("unexpected ancestor slice: %v", slice)
	}
}

func TestConfirmationIsMonotonicAndNeverRollsBack(t *testing.T) {
	const K = 2
	tree := New(chain.ChainIndex{From: 0, To: 0}, K)
	root := testBlock(t, "root", primitives.ZeroHash)
	tree.AddRoot(root, w(0))

	prev := root
	for i := 0; i < 6; i++ {
		blk := testBlock(t, fmtSeed(i), prev.Hash())
		if _, err := tree.Add(blk, prev.Hash(), w(uint64(i+1))); err != nil {
			t.Fatalf("Add at step %d: %v", i, err)
		}
		prev = blk
	}

	if len(tree.confirmed) == 0 {
		t.Fatalf("expected some blocks to be confirmed on a single growing chain")
	}
	snapshot := append([]primitives.Hash(nil), tree.confirmed...)

	more := testBlock(t, "extra", prev.Hash())
	if _, err := tree.Add(more, prev.Hash(), w(100)); err != nil {
		t.Fatalf("Add extra: %v", err)
	}
	for i, h := range snapshot {
		if tree.confirmed[i] != h {
			t.Fatalf("confirmed prefix rolled back at index %d: got %s want %s", i, tree.confirmed[i], h)
		}
	}
}

func TestPruningRemovesLosingBranch(t *testing.T) {
	const K = 1
	tree := New(chain.ChainIndex{From: 0, To: 0}, K)
	root := testBlock(t, "root", primitives.ZeroHash)
	tree.AddRoot(root, w(0))

	losing := testBlock(t, "losing", root.Hash())
	tree.Add(losing, root.Hash(), w(1))

	winning := testBlock(t, "winning", root.Hash())
	tree.Add(winning, root.Hash(), w(1))

	// Extending winning past K=1 ahead of losing should prune the losing tip.
	winningChild := testBlock(t, "winning-child", winning.Hash())
	tree.Add(winningChild, winning.Hash(), w(2))

	if tree.Contains(losing.Hash()) {
		t.Fatalf("expected losing branch to be pruned")
	}
	if !tree.Contains(winning.Hash()) || !tree.Contains(winningChild.Hash()) {
		t.Fatalf("expected winning branch to survive pruning")
	}
}

func fmtSeed(i int) string {
	return "seed-" + string(rune('a'+i))
}
