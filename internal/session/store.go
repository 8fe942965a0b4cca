package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when no session exists for the id.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions. Writes are last-writer-wins; callers serialize
// turns per identity.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Upsert(ctx context.Context, s *Session) error
}

// LoadOrNew returns the stored session or a fresh one.
func LoadOrNew(ctx context.Context, store Store, id string, now time.Time) (*Session, error) {
	s, err := store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return New(id, now), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session: id required")
	}
	m.mu.Lock()
	m.sessions[s.ID] = s.Clone()
	m.mu.Unlock()
	return nil
}
