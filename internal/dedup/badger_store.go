package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore is an embedded backend for single-node deployments. Badger
// expires entries natively, so TTL handling is delegated to the engine.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) PutIfAbsent(_ context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	var inserted bool
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(fingerprint))
		if err == nil {
			inserted = false
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		entry := badger.NewEntry([]byte(fingerprint), unixStamp()).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: badger update: %v", ErrStoreUnavailable, err)
	}
	return inserted, nil
}

func (s *BadgerStore) Put(_ context.Context, fingerprint string, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(fingerprint), unixStamp()).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("%w: badger set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func unixStamp() []byte {
	return []byte(fmt.Sprintf("%d", nowFunc().Unix()))
}
