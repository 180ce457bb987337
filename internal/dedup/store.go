package dedup

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreUnavailable marks authoritative-store failures. Callers must not
// treat an unavailable store as "event not seen"; doing so would let
// duplicates through during an outage.
var ErrStoreUnavailable = errors.New("dedup store unavailable")

// Store is the authoritative time-windowed fingerprint store.
//
// PutIfAbsent must be a single conditional write: when two consumers race
// on the same fingerprint, exactly one observes inserted=true.
type Store interface {
	// PutIfAbsent records the fingerprint with the given TTL unless a live
	// entry already exists. inserted=false means a live entry was present.
	PutIfAbsent(ctx context.Context, fingerprint string, ttl time.Duration) (inserted bool, err error)
	// Put unconditionally records the fingerprint, refreshing the TTL.
	Put(ctx context.Context, fingerprint string, ttl time.Duration) error
	Close() error
}

// nowFunc is swapped in tests to control TTL expiry.
var nowFunc = time.Now

// InMemoryStore is a thread-safe map store with lazy expiry. Used for
// tests and single-process runs without a durable backend.
type InMemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{expires: make(map[string]time.Time)}
}

func (s *InMemoryStore) PutIfAbsent(_ context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	now := nowFunc()
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.expires[fingerprint]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[fingerprint] = now.Add(ttl)
	return true, nil
}

func (s *InMemoryStore) Put(_ context.Context, fingerprint string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[fingerprint] = nowFunc().Add(ttl)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// Len reports live entries (expired entries are purged first).
func (s *InMemoryStore) Len() int {
	now := nowFunc()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, k)
		}
	}
	return len(s.expires)
}
