package crawl

import (
	"sync"

	"rta-crawler/internal/domain"
)

// discoverySet tracks the identity keys already known to a running crawl and
// accumulates the players newly discovered since the last drain. Workers on
// different goroutines share one instance, so check-then-add is a single
// locked operation.
type discoverySet struct {
	mu    sync.Mutex
	keys  map[string]struct{}
	fresh []domain.Player
}

func newDiscoverySet() *discoverySet {
	return &discoverySet{keys: map[string]struct{}{}}
}

// seed marks keys as already known without recording them as fresh.
func (s *discoverySet) seed(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.keys[key] = struct{}{}
	}
}

// add records a player if its key is new. Returns false for duplicates.
func (s *discoverySet) add(p domain.Player) bool {
	key := p.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.fresh = append(s.fresh, p)
	return true
}

func (s *discoverySet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// drain returns the players added since the last drain and resets the
// accumulator. Keys stay known.
func (s *discoverySet) drain() []domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := s.fresh
	s.fresh = nil
	return fresh
}
