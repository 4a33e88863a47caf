package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Expired sessions are evicted lazily
// when read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the store's time source. Used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Put(_ context.Context, token string, s Session, ttl time.Duration) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if ttl <= 0 {
		return fmt.Errorf("invalid session ttl %s", ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[token] = memoryEntry{session: s, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, token)
		return Session{}, ErrNotFound
	}
	return e.session, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet
// evicted.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
