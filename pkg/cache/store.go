package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the cache entry store shared by all request handlers. Reads and
// writes are independent atomic operations on whole entries; there are no
// multi-key transactions.
type Store interface {
	// Get retrieves the entry for key. Returns ErrCacheMiss if absent.
	// Expiry is NOT checked here: validity is content-dependent and is
	// decided by the TTL policy, so stale entries must stay retrievable
	// for stale-serve fallback.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry, replacing any previous one wholesale.
	Set(ctx context.Context, entry *Entry) error

	// Touch refreshes only the entry's StoredAt, keeping payload and
	// validator unchanged. Used after a 304 Not Modified revalidation.
	Touch(ctx context.Context, key string, at time.Time) error

	// Ping checks backing store reachability for health probes.
	Ping(ctx context.Context) error

	// BreakerOpen reports whether the connector's circuit breaker is open.
	BreakerOpen() bool
}

// MemoryStore is a process-local Store for single-instance deployments and
// tests. Its breaker is always closed.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves the entry for key.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues("memory").Inc()

	// Copy so callers cannot mutate the stored entry.
	cp := *entry
	return &cp, nil
}

// Set stores an entry, replacing any previous one.
func (s *MemoryStore) Set(_ context.Context, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}

	cp := *entry
	s.mu.Lock()
	// StoredAt must never move backwards for a key.
	if prev, ok := s.entries[entry.Key]; ok && cp.StoredAt.Before(prev.StoredAt) {
		cp.StoredAt = prev.StoredAt
	}
	s.entries[entry.Key] = &cp
	s.mu.Unlock()
	return nil
}

// Touch refreshes the StoredAt of an existing entry.
func (s *MemoryStore) Touch(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	if at.After(entry.StoredAt) {
		cp := *entry
		cp.StoredAt = at
		s.entries[key] = &cp
	}
	return nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// BreakerOpen always reports false: there is no connector to break.
func (s *MemoryStore) BreakerOpen() bool {
	return false
}
