package crm

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryItem is a board item held by MemoryClient.
type MemoryItem struct {
	ID     string
	Name   string
	Fields Fields
	Notes  []string
}

// MemoryClient is an in-process board for tests and the simulator.
type MemoryClient struct {
	mu     sync.Mutex
	nextID int
	items  []*MemoryItem
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{nextID: 1000}
}

func (m *MemoryClient) FindByPhone(ctx context.Context, phone string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.items) - 1; i >= 0; i-- {
		it := m.items[i]
		if it.Fields.DedupePhone == phone {
			return &Item{ID: it.ID, Name: it.Name, Stage: it.Fields.Stage}, nil
		}
	}
	return nil, nil
}

func (m *MemoryClient) CreateItem(ctx context.Context, name string, fields Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	it := &MemoryItem{ID: strconv.Itoa(m.nextID), Name: name, Fields: fields}
	m.items = append(m.items, it)
	return it.ID, nil
}

func (m *MemoryClient) UpdateColumns(ctx context.Context, itemID string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := m.find(itemID)
	if err != nil {
		return err
	}
	it.Fields = mergeFields(it.Fields, fields)
	return nil
}

func (m *MemoryClient) Rename(ctx context.Context, itemID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := m.find(itemID)
	if err != nil {
		return err
	}
	it.Name = name
	return nil
}

func (m *MemoryClient) AppendNote(ctx context.Context, itemID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, err := m.find(itemID)
	if err != nil {
		return err
	}
	it.Notes = append(it.Notes, body)
	return nil
}

// Items returns copies of every item in creation order.
func (m *MemoryClient) Items() []MemoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryItem, 0, len(m.items))
	for _, it := range m.items {
		cp := *it
		cp.Notes = append([]string(nil), it.Notes...)
		out = append(out, cp)
	}
	return out
}

func (m *MemoryClient) find(id string) (*MemoryItem, error) {
	for _, it := range m.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, fmt.Errorf("crm: item %s not found", id)
}

func mergeFields(cur, upd Fields) Fields {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cur.DedupePhone, upd.DedupePhone)
	set(&cur.LastMessageID, upd.LastMessageID)
	set(&cur.Phone, upd.Phone)
	set(&cur.Vehicle, upd.Vehicle)
	set(&cur.Payment, upd.Payment)
	set(&cur.AppointmentDate, upd.AppointmentDate)
	set(&cur.AppointmentTime, upd.AppointmentTime)
	if upd.Stage != "" {
		cur.Stage = upd.Stage
	}
	return cur
}
