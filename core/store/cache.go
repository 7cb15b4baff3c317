package store

import "github.com/shardflow/flownode/core/errs"

// entryState tags a Cache slot per spec section 4.1: Cached mirrors disk,
// Modified is dirty and unwritten, Removed is a pending delete.
type entryState int

const (
	entryCached entryState = iota
	entryModified
	entryRemoved
)

type entry[V any] struct {
	state entryState
	value V
}

// Codec converts between a Cache's key/value types and the raw bytes the
// underlying KeyValueStore speaks.
type Codec[K comparable, V any] struct {
	EncodeKey   func(K) []byte
	EncodeValue func(V) []byte
	DecodeValue func([]byte) (V, error)
}

// Cache is the in-memory overlay from spec section 4.1: get reads the
// overlay entry or falls through to the underlying store; persist writes
// every Modified/Removed entry in one atomic batch, in insertion order, then
// marks them Cached.
type Cache[K comparable, V any] struct {
	store   *KeyValueStore
	codec   Codec[K, V]
	entries map[K]entry[V]
	order   []K
}

// NewCache builds a Cache layered over store using codec to bridge to raw
// bytes. store may be nil for a purely in-memory Cache (used by tests and by
// Staging's parent when no on-disk layer is needed).
func NewCache[K comparable, V any](store *KeyValueStore, codec Codec[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		store:   store,
		codec:   codec,
		entries: make(map[K]entry[V]),
	}
}

func (c *Cache[K, V]) track(k K) {
	if _, ok := c.entries[k]; !ok {
		c.order = append(c.order, k)
	}
}

// Get returns the value for k and whether it exists, reading the overlay
// first and falling through to the underlying store.
func (c *Cache[K, V]) Get(k K) (V, bool, error) {
	var zero V
	if e, ok := c.entries[k]; ok {
		switch e.state {
		case entryRemoved:
			return zero, false, nil
		default:
			return e.value, true, nil
		}
	}
	if c.store == nil {
		return zero, false, nil
	}
	raw, ok, err := c.store.Get(c.codec.EncodeKey(k))
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := c.codec.DecodeValue(raw)
	if err != nil {
		return zero, false, errs.NewSerdeError("cache value", err)
	}
	return v, true, nil
}

// Put marks k as Modified with the given value. Only the topmost layer is
// mutated (spec section 4.1); the underlying store is untouched until
// Persist.
func (c *Cache[K, V]) Put(k K, v V) {
	c.track(k)
	c.entries[k] = entry[V]{state: entryModified, value: v}
}

// Remove marks k as Removed.
func (c *Cache[K, V]) Remove(k K) {
	c.track(k)
	var zero V
	c.entries[k] = entry[V]{state: entryRemoved, value: zero}
}

// Persist writes every Modified/Removed entry to the underlying store in a
// single atomic batch, in insertion order, then marks the written entries
// Cached (Removed entries are dropped from the overlay, since the
// authoritative absence now lives on disk). It is the only path to disk at
// this layer (spec section 4.1).
func (c *Cache[K, V]) Persist() error {
	if c.store == nil {
		return errs.NewIoError("Persist", errNoBackingStore)
	}
	var ops []WriteOp
	dirty := make([]K, 0, len(c.order))
	for _, k := range c.order {
		e, ok := c.entries[k]
		if !ok || e.state == entryCached {
			continue
		}
		dirty = append(dirty, k)
		switch e.state {
		case entryModified:
			ops = append(ops, WriteOp{Key: c.codec.EncodeKey(k), Value: c.codec.EncodeValue(e.value)})
		case entryRemoved:
			ops = append(ops, WriteOp{Key: c.codec.EncodeKey(k), Value: nil})
		}
	}
	if len(ops) == 0 {
		return nil
	}
	if err := c.store.WriteBatch(ops); err != nil {
		return err
	}
	for _, k := range dirty {
		e := c.entries[k]
		switch e.state {
		case entryModified:
			c.entries[k] = entry[V]{state: entryCached, value: e.value}
		case entryRemoved:
			delete(c.entries, k)
		}
	}
	c.order = c.order[:0]
	for k := range c.entries {
		c.order = append(c.order, k)
	}
	return nil
}

var errNoBackingStore = &noBackingStoreError{}

type noBackingStoreError struct{}

func (*noBackingStoreError) Error() string { return "cache has no backing store to persist to" }
