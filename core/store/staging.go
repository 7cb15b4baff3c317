package store

// Staging is the transient overlay from spec section 4.1, layered above a
// Cache and used inside block execution: if the block commits, Staging
// merges into the parent Cache; if it aborts, Staging is discarded. Staging
// never touches disk directly.
type Staging[K comparable, V any] struct {
	parent  *Cache[K, V]
	entries map[K]entry[V]
	order   []K
}

// NewStaging opens a Staging overlay atop parent.
func NewStaging[K comparable, V any](parent *Cache[K, V]) *Staging[K, V] {
	return &Staging[K, V]{
		parent:  parent,
		entries: make(map[K]entry[V]),
	}
}

func (s *Staging[K, V]) track(k K) {
	if _, ok := s.entries[k]; !ok {
		s.order = append(s.order, k)
	}
}

// Get reads the topmost layer down: Staging's own overlay, then the parent
// Cache (which in turn falls through to the underlying store).
func (s *Staging[K, V]) Get(k K) (V, bool, error) {
	if e, ok := s.entries[k]; ok {
		if e.state == entryRemoved {
			var zero V
			return zero, false, nil
		}
		return e.value, true, nil
	}
	return s.parent.Get(k)
}

// Put marks k as Modified within this Staging overlay only.
func (s *Staging[K, V]) Put(k K, v V) {
	s.track(k)
	s.entries[k] = entry[V]{state: entryModified, value: v}
}

// Remove marks k as Removed within this Staging overlay only.
func (s *Staging[K, V]) Remove(k K) {
	s.track(k)
	var zero V
	s.entries[k] = entry[V]{state: entryRemoved, value: zero}
}

// Commit merges every Modified/Removed entry into the parent Cache, in
// insertion order. The parent is left dirty; a later Cache.Persist writes it
// to disk.
func (s *Staging[K, V]) Commit() {
	for _, k := range s.order {
		e := s.entries[k]
		switch e.state {
		case entryModified:
			s.parent.Put(k, e.value)
		case entryRemoved:
			s.parent.Remove(k)
		}
	}
	s.entries = make(map[K]entry[V])
	s.order = nil
}

// Discard drops every staged mutation without touching the parent Cache.
func (s *Staging[K, V]) Discard() {
	s.entries = make(map[K]entry[V])
	s.order = nil
}
