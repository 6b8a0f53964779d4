package rules

import "sync/atomic"

// Provider hands out the rule snapshot to use for one unit of work.
type Provider interface {
	Current() *Rules
}

// Store holds the live rule snapshot and allows it to be replaced without
// restarting the process. Readers never observe a partially updated snapshot.
type Store struct {
	current atomic.Pointer[Rules]
}

// NewStore constructs a Store seeded with r.
func NewStore(r *Rules) *Store {
	s := &Store{}
	s.current.Store(r)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Rules {
	return s.current.Load()
}

// Swap installs r and returns the previous snapshot.
func (s *Store) Swap(r *Rules) *Rules {
	return s.current.Swap(r)
}

var (
	_ Provider = (*Store)(nil)
	_ Provider = (*Rules)(nil)
)
