package state

import (
	"testing"

	"github.com/shardflow/flownode/core/primitives"
)

func TestCachedLogStatesAppendAndRange(t *testing.T) {
	logs := NewCachedLogStates(nil)
	contractID := primitives.BlakeHash([]byte("contract-a"))

	for i := 0; i < 3; i++ {
		if _, err := logs.Append(contractID, "transfer", []byte("event")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := logs.Append(contractID, "mint", []byte("event")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	transfers, err := Range(logs, contractID, "transfer", 0, 10)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(transfers) != 3 {
		t.Fatalf("expected 3 transfer events, got %d", len(transfers))
	}
	for i, entry := range transfers {
		if entry.Counter != uint64(i) {
			t.Fatalf("entry %d has counter %d, want %d", i, entry.Counter, i)
		}
	}

	all, err := Range(logs, contractID, "", 0, 10)
	if err != nil {
		t.Fatalf("Range all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 total events, got %d", len(all))
	}
}

func TestStagingLogStatesCommit(t *testing.T) {
	logs := NewCachedLogStates(nil)
	contractID := primitives.BlakeHash([]byte("contract-a"))

	staged := NewStagingLogStates(logs)
	if _, err := staged.Append(contractID, "transfer", []byte("event")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if entries, err := Range(logs, contractID, "", 0, 10); err != nil || len(entries) != 0 {
		t.Fatalf("expected staged append to be invisible before commit, got %d entries, err %v", len(entries), err)
	}

	staged.Commit()

	entries, err := Range(logs, contractID, "", 0, 10)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected committed append to be visible, got %d entries", len(entries))
	}
}

func TestStagingLogStatesDiscard(t *testing.T) {
	logs := NewCachedLogStates(nil)
	contractID := primitives.BlakeHash([]byte("contract-a"))

	staged := NewStagingLogStates(logs)
	if _, err := staged.Append(contractID, "transfer", []byte("event")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	staged.Discard()

	entries, err := Range(logs, contractID, "", 0, 10)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected discarded append to leave the parent log empty, got %d entries", len(entries))
	}
}

func TestRangeRespectsCounterBounds(t *testing.T) {
	logs := NewCachedLogStates(nil)
	contractID := primitives.BlakeHash([]byte("contract-a"))
	for i := 0; i < 5; i++ {
		if _, err := logs.Append(contractID, "event", []byte("data")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := Range(logs, contractID, "", 2, 4)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(entries) != 2 || entries[0].Counter != 2 || entries[1].Counter != 3 {
		t.Fatalf("unexpected range result: %+v", entries)
	}
}
