package appointment

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore holds appointments in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	appts []Appointment
}

// NewMemoryStore returns a store seeded with appts.
func NewMemoryStore(appts ...Appointment) *MemoryStore {
	return &MemoryStore{appts: append([]Appointment(nil), appts...)}
}

func (m *MemoryStore) Load(ctx context.Context) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Appointment{}, m.appts...), nil
}

func (m *MemoryStore) Save(ctx context.Context, appts []Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts = append([]Appointment(nil), appts...)
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, a Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := find(m.appts, a.ID); err == nil {
		return fmt.Errorf("creating %s: %w", a.ID, ErrConflict)
	}
	m.appts = append(m.appts, a)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.appts, id)
}

var _ Store = (*MemoryStore)(nil)
