package store

import "testing"

func TestStagingCommitMergesIntoParent(t *testing.T) {
	parent := NewCache[string, string](nil, stringCodec())
	parent.Put("base", "v0")

	s := NewStaging(parent)
	s.Put("new", "v1")
	s.Remove("base")

	if v, ok, _ := parent.Get("new"); ok || v != "" {
		t.Fatalf("staged put leaked into parent before commit")
	}
	if v, ok, _ := parent.Get("base"); !ok || v != "v0" {
		t.Fatalf("staged remove leaked into parent before commit")
	}

	s.Commit()

	if v, ok, _ := parent.Get("new"); !ok || v != "v1" {
		t.Fatalf("commit did not merge put into parent: %q, %v", v, ok)
	}
	if _, ok, _ := parent.Get("base"); ok {
		t.Fatalf("commit did not merge remove into parent")
	}
}

func TestStagingDiscardLeavesParentUntouched(t *testing.T) {
	parent := NewCache[string, string](nil, stringCodec())
	parent.Put("base", "v0")

	s := NewStaging(parent)
	s.Put("base", "overwritten")
	s.Discard()

	v, ok, _ := parent.Get("base")
	if !ok || v != "v0" {
		t.Fatalf("discard leaked into parent: got %q, %v", v, ok)
	}
}

func TestStagingGetReadsThroughToParent(t *testing.T) {
	parent := NewCache[string, string](nil, stringCodec())
	parent.Put("base", "v0")

	s := NewStaging(parent)
	v, ok, err := s.Get("base")
	if err != nil || !ok || v != "v0" {
		t.Fatalf("got %q, %v, err %v", v, ok, err)
	}

	s.Put("base", "staged")
	v, ok, err = s.Get("base")
	if err != nil || !ok || v != "staged" {
		t.Fatalf("staged overlay not shadowing parent: got %q, %v, err %v", v, ok, err)
	}
}
