package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"skatestock/internal/fingerprint"
	"skatestock/internal/model"
)

// Config sizes the two-tier duplicate check.
type Config struct {
	BloomCapacity  uint
	BloomErrorRate float64
	TTL            time.Duration
}

func (c Config) withDefaults() Config {
	if c.BloomCapacity == 0 {
		c.BloomCapacity = 100000
	}
	if c.BloomErrorRate == 0 {
		c.BloomErrorRate = 0.01
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	return c
}

// Service answers "was an event with this identity processed within the
// window?" with a Bloom filter in front of an authoritative TTL store.
// The filter has no false negatives, so truly-new fingerprints skip the
// store round-trip entirely; the store resolves the filter's false
// positives and bounds memory via expiry.
//
// One Service is created at process start and shared by every consumer
// instance in the group.
type Service struct {
	cfg Config

	mu     sync.Mutex
	filter *bloom.BloomFilter

	store Store
}

func NewService(store Store, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:    cfg,
		filter: bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomErrorRate),
		store:  store,
	}
}

// IsDuplicate reports whether ev was already seen within the dedup window.
// A store error means the answer is unknown; it is returned as-is (wrapping
// ErrStoreUnavailable) and the event must not be treated as new.
func (s *Service) IsDuplicate(ctx context.Context, ev model.RawEvent) (bool, error) {
	fp := fingerprint.Generate(ev)

	s.mu.Lock()
	maybeSeen := s.filter.TestAndAddString(fp)
	s.mu.Unlock()
	if !maybeSeen {
		// Definitely new; the filter never reports false negatives.
		return false, nil
	}

	inserted, err := s.store.PutIfAbsent(ctx, fp, s.cfg.TTL)
	if err != nil {
		return false, fmt.Errorf("confirm fingerprint %q: %w", fp, err)
	}
	return !inserted, nil
}

// MarkProcessed idempotently records ev in both tiers. Used after
// processing paths where IsDuplicate was not the entry point, and to make
// the authoritative store reflect fast-path events.
func (s *Service) MarkProcessed(ctx context.Context, ev model.RawEvent) error {
	fp := fingerprint.Generate(ev)

	s.mu.Lock()
	s.filter.AddString(fp)
	s.mu.Unlock()

	if err := s.store.Put(ctx, fp, s.cfg.TTL); err != nil {
		return fmt.Errorf("mark fingerprint %q: %w", fp, err)
	}
	return nil
}

// TTL exposes the configured window (used for operator logging).
func (s *Service) TTL() time.Duration { return s.cfg.TTL }
