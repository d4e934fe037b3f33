package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Sessions never expire.
type MemoryStore struct {
	mu        sync.RWMutex
	namespace string
	data      map[string]map[string]string
}

// NewMemoryStore creates an in-memory store under namespace.
func NewMemoryStore(namespace string) *MemoryStore {
	if namespace == "" {
		namespace = Namespace
	}
	return &MemoryStore{
		namespace: namespace,
		data:      make(map[string]map[string]string),
	}
}

func (m *MemoryStore) key(sid string) string {
	return m.namespace + ":" + sid
}

// Get returns the value of key in session sid.
func (m *MemoryStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	if sid == "" {
		return "", false, ErrNoSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[m.key(sid)][key]
	return v, ok, nil
}

// GetAll returns a copy of every key in session sid.
func (m *MemoryStore) GetAll(ctx context.Context, sid string) (map[string]string, error) {
	if sid == "" {
		return nil, ErrNoSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data[m.key(sid)]))
	for k, v := range m.data[m.key(sid)] {
		out[k] = v
	}
	return out, nil
}

// SetMany writes values into session sid.
func (m *MemoryStore) SetMany(ctx context.Context, sid string, values map[string]string) error {
	return m.Replace(ctx, sid, nil, values)
}

// Replace removes unset and writes values under one lock.
func (m *MemoryStore) Replace(ctx context.Context, sid string, unset []string, values map[string]string) error {
	if sid == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[m.key(sid)]
	if !ok {
		if len(values) == 0 {
			return nil
		}
		s = make(map[string]string, len(values))
		m.data[m.key(sid)] = s
	}
	for _, k := range unset {
		delete(s, k)
	}
	for k, v := range values {
		s[k] = v
	}
	return nil
}

// Unset removes keys from session sid.
func (m *MemoryStore) Unset(ctx context.Context, sid string, keys ...string) error {
	if sid == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.data[m.key(sid)]
	for _, k := range keys {
		delete(s, k)
	}
	return nil
}

// Destroy drops session sid.
func (m *MemoryStore) Destroy(ctx context.Context, sid string) error {
	if sid == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.key(sid))
	return nil
}

var _ Store = (*MemoryStore)(nil)
