package store

import (
	"testing"

	"github.com/shardflow/flownode/internal/testutil"
)

func openTestStore(t *testing.T) *KeyValueStore {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	kv, err := Open(sb.Path("db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestKeyValueStorePutGet(t *testing.T) {
	kv := openTestStore(t)
	if err := kv.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := kv.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "v1" {
		t.Fatalf("got %q, %v, want v1, true", got, ok)
	}
}

func TestKeyValueStoreGetMissing(t *testing.T) {
	kv := openTestStore(t)
	_, ok, err := kv.Get([]byte("absent"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}

func TestKeyValueStoreDelete(t *testing.T) {
	kv := openTestStore(t)
	if err := kv.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Delete([]byte("k1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err := kv.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected deleted key to be absent")
	}
}

func TestKeyValueStoreWriteBatchIsAtomic(t *testing.T) {
	kv := openTestStore(t)
	if err := kv.Put([]byte("k2"), []byte("old")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	err := kv.WriteBatch([]WriteOp{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: nil},
	})
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if got, ok, _ := kv.Get([]byte("k1")); !ok || string(got) != "v1" {
		t.Fatalf("k1 not written: %q, %v", got, ok)
	}
	if _, ok, _ := kv.Get([]byte("k2")); ok {
		t.Fatalf("k2 not deleted")
	}
}
