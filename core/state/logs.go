package state

import (
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/store"
)

// LogEntry is one emitted contract event, indexed by its position within
// its contract's log (spec section 4.6).
type LogEntry struct {
	Counter   uint64
	EventType string
	Data      []byte
}

// LogStates is the append-only event log for a single contract, the value
// stored under its LogStatesId.
type LogStates struct {
	ContractID primitives.Hash
	Entries    []LogEntry
}

func encodeLogStates(ls LogStates) []byte {
	e := primitives.NewEncoder()
	e.PutHash(ls.ContractID)
	e.PutUint32(uint32(len(ls.Entries)))
	for _, entry := range ls.Entries {
		e.PutUint64(entry.Counter)
		e.PutBytes([]byte(entry.EventType))
		e.PutBytes(entry.Data)
	}
	return e.Bytes()
}

func decodeLogStates(b []byte) (LogStates, error) {
	d := primitives.NewDecoder(b)
	contractID, err := d.Hash()
	if err != nil {
		return LogStates{}, err
	}
	n, err := d.Uint32()
	if err != nil {
		return LogStates{}, err
	}
	entries := make([]LogEntry, n)
	for i := range entries {
		counter, err := d.Uint64()
		if err != nil {
			return LogStates{}, err
		}
		typ, err := d.Bytes()
		if err != nil {
			return LogStates{}, err
		}
		data, err := d.Bytes()
		if err != nil {
			return LogStates{}, err
		}
		entries[i] = LogEntry{Counter: counter, EventType: string(typ), Data: data}
	}
	return LogStates{ContractID: contractID, Entries: entries}, nil
}

var logStatesCodec = store.Codec[primitives.Hash, LogStates]{
	EncodeKey:   func(id primitives.Hash) []byte { return id[:] },
	EncodeValue: encodeLogStates,
	DecodeValue: decodeLogStates,
}

// logReader is satisfied by both CachedLogStates and StagingLogStates so
// Range can read through either layer uniformly, mirroring the teacher's
// EventManager.List scanning a single ledger prefix (spec section 4.6
// generalizes that into a per-contract, per-counter index).
type logReader interface {
	Get(primitives.Hash) (LogStates, bool, error)
}

// CachedLogStates is the persistent event log, a Cache[ContractId, LogStates]
// keyed by contract (spec section 4.6), grounded on the teacher's
// EventManager.Emit/List/Get (generalized from one global sha256-keyed
// ledger entry per event into an append-only per-contract counter index).
type CachedLogStates struct {
	cache *store.Cache[primitives.Hash, LogStates]
}

// NewCachedLogStates opens a CachedLogStates layered over kv. kv may be nil
// for a purely in-memory log, used by tests.
func NewCachedLogStates(kv *store.KeyValueStore) *CachedLogStates {
	return &CachedLogStates{cache: store.NewCache(kv, logStatesCodec)}
}

// Get returns a contract's in-place log.
func (c *CachedLogStates) Get(contractID primitives.Hash) (LogStates, bool, error) {
	return c.cache.Get(contractID)
}

// Append records a new event under contractID with the next counter value.
func (c *CachedLogStates) Append(contractID primitives.Hash, eventType string, data []byte) (uint64, error) {
	ls, ok, err := c.cache.Get(contractID)
	if err != nil {
		return 0, err
	}
	if !ok {
		ls = LogStates{ContractID: contractID}
	}
	counter := uint64(len(ls.Entries))
	ls.Entries = append(ls.Entries, LogEntry{Counter: counter, EventType: eventType, Data: data})
	c.cache.Put(contractID, ls)
	return counter, nil
}

// Persist flushes every dirty log to disk.
func (c *CachedLogStates) Persist() error { return c.cache.Persist() }

// Range returns contractID's entries of eventType within [start, end), read
// through r (either a CachedLogStates or a StagingLogStates).
func Range(r logReader, contractID primitives.Hash, eventType string, start, end uint64) ([]LogEntry, error) {
	ls, ok, err := r.Get(contractID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var out []LogEntry
	for _, entry := range ls.Entries {
		if entry.Counter < start || entry.Counter >= end {
			continue
		}
		if eventType != "" && entry.EventType != eventType {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// StagingLogStates is the per-block overlay atop a CachedLogStates: writes
// stay in memory until Commit merges them into the parent log (spec
// section 4.6, "writes are append-only within a block's staging").
type StagingLogStates struct {
	parent  *CachedLogStates
	staging *store.Staging[primitives.Hash, LogStates]
}

// NewStagingLogStates opens a staging overlay atop parent.
func NewStagingLogStates(parent *CachedLogStates) *StagingLogStates {
	return &StagingLogStates{parent: parent, staging: store.NewStaging(parent.cache)}
}

// Get reads through the staged overlay to the parent log.
func (s *StagingLogStates) Get(contractID primitives.Hash) (LogStates, bool, error) {
	return s.staging.Get(contractID)
}

// Append records a new event in this block's staged log.
func (s *StagingLogStates) Append(contractID primitives.Hash, eventType string, data []byte) (uint64, error) {
	ls, ok, err := s.staging.Get(contractID)
	if err != nil {
		return 0, err
	}
	if !ok {
		ls = LogStates{ContractID: contractID}
	}
	counter := uint64(len(ls.Entries))
	ls.Entries = append(ls.Entries, LogEntry{Counter: counter, EventType: eventType, Data: data})
	s.staging.Put(contractID, ls)
	return counter, nil
}

// Commit merges every staged log write into the parent CachedLogStates.
func (s *StagingLogStates) Commit() { s.staging.Commit() }

// Discard drops every staged log write, leaving the parent untouched.
func (s *StagingLogStates) Discard() { s.staging.Discard() }
