// Package session persists the container state across page reloads.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get when the key has no value.
var ErrNotFound = errors.New("session: key not found")

// Store is a key/value slot store scoped to one browser tab.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is an in-process Store. Entries live until deleted or purged.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	value     []byte
	updatedAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = memoryEntry{value: append([]byte(nil), value...), updatedAt: s.now()}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// PurgeOlderThan deletes entries last written before cutoff and returns how
// many were removed.
func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, e := range s.values {
		if e.updatedAt.Before(cutoff) {
			delete(s.values, key)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *MemoryStore) Close() error { return nil }
