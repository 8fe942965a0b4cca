package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the local ledger of emitted leads.
type Repository interface {
	Record(ctx context.Context, lead *Lead) error
	ListByPhone(ctx context.Context, phone string, limit int) ([]*Lead, error)
}

// InMemoryRepository keeps leads in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string][]*Lead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string][]*Lead),
	}
}

// Record stores a copy of lead, assigning an ID and timestamp when missing.
func (r *InMemoryRepository) Record(ctx context.Context, lead *Lead) error {
	if lead == nil || strings.TrimSpace(lead.Phone) == "" {
		return ErrMissingPhone
	}
	prepareLead(lead)

	cp := *lead
	r.mu.Lock()
	r.leads[lead.Phone] = append(r.leads[lead.Phone], &cp)
	r.mu.Unlock()
	return nil
}

// ListByPhone returns the most recent leads first.
func (r *InMemoryRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]*Lead, error) {
	r.mu.RLock()
	stored := r.leads[phone]
	out := make([]*Lead, 0, len(stored))
	for _, l := range stored {
		cp := *l
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func prepareLead(lead *Lead) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
}
