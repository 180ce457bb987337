package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skatestock/internal/model"
)

// countingStore wraps InMemoryStore and counts authoritative lookups.
type countingStore struct {
	*InMemoryStore
	mu         sync.Mutex
	putIfCalls int
}

func (c *countingStore) PutIfAbsent(ctx context.Context, fp string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	c.putIfCalls++
	c.mu.Unlock()
	return c.InMemoryStore.PutIfAbsent(ctx, fp, ttl)
}

type failingStore struct{}

func (failingStore) PutIfAbsent(context.Context, string, time.Duration) (bool, error) {
	return false, ErrStoreUnavailable
}
func (failingStore) Put(context.Context, string, time.Duration) error { return ErrStoreUnavailable }
func (failingStore) Close() error                                     { return nil }

func sampleEvent() model.RawEvent {
	return model.RawEvent{
		Source:          "seasons",
		SourceProductID: "123",
		Title:           "Indy Stage 11",
		SalePrice:       model.Price("45.00"),
		OriginalPrice:   model.Price("55.00"),
	}
}

func TestIsDuplicate_FirstSeenSkipsStore(t *testing.T) {
	store := &countingStore{InMemoryStore: NewInMemoryStore()}
	svc := NewService(store, Config{})

	dup, err := svc.IsDuplicate(context.Background(), sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Fatalf("first submission should not be a duplicate")
	}
	if store.putIfCalls != 0 {
		t.Fatalf("fast path should not consult the store, got %d calls", store.putIfCalls)
	}
}

func TestIsDuplicate_SecondSubmissionConfirmed(t *testing.T) {
	store := &countingStore{InMemoryStore: NewInMemoryStore()}
	svc := NewService(store, Config{})
	ctx := context.Background()
	ev := sampleEvent()

	if dup, err := svc.IsDuplicate(ctx, ev); err != nil || dup {
		t.Fatalf("first: dup=%v err=%v", dup, err)
	}
	if err := svc.MarkProcessed(ctx, ev); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	dup, err := svc.IsDuplicate(ctx, ev)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !dup {
		t.Fatalf("second submission within window should be a duplicate")
	}
	if store.putIfCalls == 0 {
		t.Fatalf("filter hit should consult the store")
	}

	// A different event stays on the fast path.
	other := sampleEvent()
	other.SourceProductID = "456"
	if dup, err := svc.IsDuplicate(ctx, other); err != nil || dup {
		t.Fatalf("distinct event: dup=%v err=%v", dup, err)
	}
}

func TestIsDuplicate_TTLExpiryTreatsAsNew(t *testing.T) {
	old := nowFunc
	defer func() { nowFunc = old }()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return base }

	svc := NewService(NewInMemoryStore(), Config{TTL: 24 * time.Hour})
	ctx := context.Background()
	ev := sampleEvent()

	if err := svc.MarkProcessed(ctx, ev); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if dup, err := svc.IsDuplicate(ctx, ev); err != nil || !dup {
		t.Fatalf("inside window: dup=%v err=%v", dup, err)
	}

	// Strictly after the window the store entry has expired; the filter
	// still says "maybe" but the store now confirms new.
	nowFunc = func() time.Time { return base.Add(24*time.Hour + time.Second) }
	if dup, err := svc.IsDuplicate(ctx, ev); err != nil || dup {
		t.Fatalf("after window: dup=%v err=%v", dup, err)
	}
}

func TestIsDuplicate_StoreUnavailablePropagates(t *testing.T) {
	svc := NewService(failingStore{}, Config{})
	ctx := context.Background()
	ev := sampleEvent()

	// First submission takes the fast path and never sees the outage.
	if dup, err := svc.IsDuplicate(ctx, ev); err != nil || dup {
		t.Fatalf("fast path: dup=%v err=%v", dup, err)
	}

	// Once the filter reports the fingerprint, the store must be consulted
	// and its outage surfaced, never swallowed as "not a duplicate".
	_, err := svc.IsDuplicate(ctx, ev)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}

func TestMarkProcessed_Idempotent(t *testing.T) {
	svc := NewService(NewInMemoryStore(), Config{})
	ctx := context.Background()
	ev := sampleEvent()

	for i := 0; i < 3; i++ {
		if err := svc.MarkProcessed(ctx, ev); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}
	if dup, err := svc.IsDuplicate(ctx, ev); err != nil || !dup {
		t.Fatalf("marked event should read as duplicate: dup=%v err=%v", dup, err)
	}
}
