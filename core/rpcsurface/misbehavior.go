package rpcsurface

import (
	"sync"

	"github.com/google/uuid"
)

// Misbehavior records one demerit against a peer (spec section 5:
// "after a per-peer threshold the peer is demerited via the misbehavior
// scorer"; section 7: SerdeError on peer input escalates to a misbehavior
// demerit). The P2P layer that observes the bad behavior is out of scope
// here; this is only the in-core ledger getMisbehaviors reads from.
type Misbehavior struct {
	ID     string
	PeerID string
	Reason string
}

// misbehaviorLog is an in-memory, append-only record of demerits, tagged
// with a uuid so two demerits against the same peer for the same reason
// remain distinguishable entries.
type misbehaviorLog struct {
	mu      sync.RWMutex
	entries []Misbehavior
}

func newMisbehaviorLog() *misbehaviorLog {
	return &misbehaviorLog{}
}

// RecordMisbehavior appends a demerit against peerID.
func (s *Surface) RecordMisbehavior(peerID, reason string) Misbehavior {
	m := Misbehavior{ID: uuid.NewString(), PeerID: peerID, Reason: reason}
	s.misbehaviors.mu.Lock()
	s.misbehaviors.entries = append(s.misbehaviors.entries, m)
	s.misbehaviors.mu.Unlock()
	s.log.WithField("peer", peerID).WithField("reason", reason).Warn("peer demerited")
	return m
}

// GetMisbehaviors returns every recorded demerit (spec section 6).
func (s *Surface) GetMisbehaviors() []Misbehavior {
	s.misbehaviors.mu.RLock()
	defer s.misbehaviors.mu.RUnlock()
	out := make([]Misbehavior, len(s.misbehaviors.entries))
	copy(out, s.misbehaviors.entries)
	return out
}
