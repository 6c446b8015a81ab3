package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process. Each session id has its own lock so
// updates to different sessions do not wait on each other.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu      sync.Mutex
	session Session
	exists  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*memoryEntry{}}
}

func (m *MemoryStore) entry(id string, create bool) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok && create {
		e = &memoryEntry{}
		m.entries[id] = e
	}
	return e
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	e := m.entry(id, false)
	if e == nil {
		return Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.exists {
		return Session{}, ErrNotFound
	}
	return e.session.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	e := m.entry(id, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	working := New(id)
	if e.exists {
		working = e.session.Clone()
	}
	if err := fn(&working); err != nil {
		return Session{}, err
	}
	working.ID = id
	e.session = working.Clone()
	e.exists = true
	return working, nil
}
