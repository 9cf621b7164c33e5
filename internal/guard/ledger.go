// Package guard rejects repeated and oscillating paths using a ledger of
// recently accepted path keys.
package guard

import (
	"context"
	"sync"
	"time"
)

// Entry is the only state that survives across discovery ticks.
type Entry struct {
	PathKey  string
	LastSeen time.Time
	Count    int
}

// Store holds ledger entries. Reserve writes provisionally; Commit and
// Rollback settle the entry once execution feedback arrives. Implementations
// must serialize access internally.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Reserve(ctx context.Context, key string, now time.Time) error
	Commit(ctx context.Context, key string) error
	Rollback(ctx context.Context, key string) error
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

type memEntry struct {
	Entry
	prev        *Entry // state before the open reservation, nil if absent
	provisional bool
}

// MemoryStore is the default in-process ledger, a mutex-serialized map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	return e.Entry, true, nil
}

func (s *MemoryStore) Reserve(_ context.Context, key string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		prev := e.Entry
		e.prev = &prev
		e.provisional = true
		e.LastSeen = now
		e.Count++
		return nil
	}
	s.entries[key] = &memEntry{
		Entry:       Entry{PathKey: key, LastSeen: now, Count: 1},
		provisional: true,
	}
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.prev = nil
		e.provisional = false
	}
	return nil
}

func (s *MemoryStore) Rollback(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.provisional {
		return nil
	}
	if e.prev == nil {
		delete(s.entries, key)
		return nil
	}
	e.Entry = *e.prev
	e.prev = nil
	e.provisional = false
	return nil
}

func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.entries {
		if e.LastSeen.Before(cutoff) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Close() error { return nil }
