package session

import (
	"context"
	"sync"
	"time"
)

// Store is the per-client session state. It holds nothing but the
// anonymous cart token; cart contents live in the database.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent stores value only when key is unset and reports whether
	// it did.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps sessions in process. It suits development and tests;
// multi-instance deployments need the RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.entry(value)
	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = s.entry(value)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) entry(value string) memoryEntry {
	e := memoryEntry{value: value}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	return e
}

// live must be called with mu held.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
