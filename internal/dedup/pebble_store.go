package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is an embedded backend using PebbleDB. Pebble has no native
// TTL, so each value holds its expiry as a unix-nano stamp and expired
// entries are treated as absent on read (and overwritten in place).
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) PutIfAbsent(_ context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	k := []byte(fingerprint)
	now := nowFunc()
	s.mu.Lock()
	defer s.mu.Unlock()
	v, closer, err := s.db.Get(k)
	if err == nil {
		exp, perr := strconv.ParseInt(string(v), 10, 64)
		_ = closer.Close()
		if perr == nil && now.UnixNano() < exp {
			return false, nil
		}
		// expired or unreadable stamp: fall through and overwrite
	} else if err != pebble.ErrNotFound {
		return false, fmt.Errorf("%w: pebble get: %v", ErrStoreUnavailable, err)
	}
	if err := s.set(k, now.Add(ttl)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleStore) Put(_ context.Context, fingerprint string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set([]byte(fingerprint), nowFunc().Add(ttl))
}

func (s *PebbleStore) set(key []byte, expiry time.Time) error {
	val := []byte(strconv.FormatInt(expiry.UnixNano(), 10))
	if err := s.db.Set(key, val, pebble.NoSync); err != nil {
		return fmt.Errorf("%w: pebble set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }
