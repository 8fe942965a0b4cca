// Package handoff drops duplicate webhook deliveries and decides when a
// human agent has taken a conversation over from the engine.
package handoff

import "sync"

// FIFOSet is a bounded set that evicts its oldest key once full.
type FIFOSet struct {
	mu      sync.Mutex
	ring    []string
	next    int
	size    int
	members map[string]struct{}
}

// NewFIFOSet returns a set holding at most capacity keys.
func NewFIFOSet(capacity int) *FIFOSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &FIFOSet{
		ring:    make([]string, capacity),
		members: make(map[string]struct{}, capacity),
	}
}

// Add inserts key and reports whether it was new. Re-adding a present key
// does not refresh its position.
func (s *FIFOSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[key]; ok {
		return false
	}
	if s.size == len(s.ring) {
		delete(s.members, s.ring[s.next])
	} else {
		s.size++
	}
	s.ring[s.next] = key
	s.next = (s.next + 1) % len(s.ring)
	s.members[key] = struct{}{}
	return true
}

// Contains reports whether key is currently held.
func (s *FIFOSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[key]
	return ok
}

// Len returns the number of keys held.
func (s *FIFOSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
