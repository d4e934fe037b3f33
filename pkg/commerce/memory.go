package commerce

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory OrderStore.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[int64]*Order
	notes  map[int64][]Note
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[int64]*Order),
		notes:  make(map[int64][]Note),
		now:    time.Now,
	}
}

// Put stores an order as-is, replacing any existing one.
func (s *MemoryStore) Put(order *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
}

// GetOrder returns a copy of the stored order.
func (s *MemoryStore) GetOrder(ctx context.Context, id int64) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return o.Clone(), nil
}

// SaveOrder replaces the stored order.
func (s *MemoryStore) SaveOrder(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, order.ID)
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

// AddNote appends a note.
func (s *MemoryStore) AddNote(ctx context.Context, id int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	s.notes[id] = append(s.notes[id], Note{Text: note, CreatedAt: s.now()})
	return nil
}

// Notes returns a copy of the notes of an order.
func (s *MemoryStore) Notes(ctx context.Context, id int64) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.orders[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return append([]Note(nil), s.notes[id]...), nil
}

var _ OrderStore = (*MemoryStore)(nil)
