package consumer

import (
	"testing"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"skatestock/internal/dedup"
	"skatestock/internal/metrics"
	"skatestock/internal/model"
	"skatestock/internal/normalize"
)

func TestGroup_StartStopClose(t *testing.T) {
	// Two instances sharing one dedup service and registry, the way a
	// group runs in production.
	store := dedup.NewInMemoryStore()
	svc := dedup.NewService(store, dedup.Config{})
	norm := normalize.New()
	reg := metrics.NewRegistry()
	sink := &fakeSink{}

	srcA := &fakeSource{msgs: []*ck.Message{testMessage(0, validPayload("a"))}}
	srcB := &fakeSource{}
	cfg := Config{
		ClientID:    "group-consumer",
		Topics:      []string{testTopic},
		PollTimeout: 10 * time.Millisecond,
	}
	a := New(cfg, srcA, svc, norm, sink, reg)
	b := New(cfg, srcB, svc, norm, sink, reg)
	a.OnProduct(func(model.NormalizedProduct, model.RawEvent) error { return nil })
	b.OnProduct(func(model.NormalizedProduct, model.RawEvent) error { return nil })

	g := NewGroup(a, b)

	done := make(chan error, 1)
	go func() { done <- g.StartAll() }()

	waitFor(t, func() bool { return len(srcA.committed()) == 1 })
	waitFor(t, func() bool {
		for _, st := range g.Stats() {
			if !st.Running {
				return false
			}
		}
		return true
	})

	g.StopAll()
	if err := <-done; err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := g.CloseAll(); err != nil {
		t.Fatalf("close all: %v", err)
	}
	if !srcA.closed || !srcB.closed {
		t.Fatalf("all sources should be closed")
	}

	stats := g.Stats()
	if len(stats) != 2 {
		t.Fatalf("stats len: %d", len(stats))
	}
	if stats[0].Processed != 1 || stats[1].Processed != 0 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestGroup_SharedDedupAcrossInstances(t *testing.T) {
	store := dedup.NewInMemoryStore()
	svc := dedup.NewService(store, dedup.Config{})
	norm := normalize.New()
	reg := metrics.NewRegistry()
	sink := &fakeSink{}

	cfg := Config{Topics: []string{testTopic}, PollTimeout: 10 * time.Millisecond}
	a := New(cfg, &fakeSource{}, svc, norm, sink, reg)
	b := New(cfg, &fakeSource{}, svc, norm, sink, reg)
	a.OnProduct(func(model.NormalizedProduct, model.RawEvent) error { return nil })
	b.OnProduct(func(model.NormalizedProduct, model.RawEvent) error { return nil })

	// The same payload lands on different instances (e.g. a scraper
	// re-submission after a rebalance); the shared service suppresses it.
	a.processMessage(testMessage(0, validPayload("x")))
	b.processMessage(testMessage(0, validPayload("x")))

	if st := a.Stats(); st.Processed != 1 {
		t.Fatalf("instance a: %+v", st)
	}
	if st := b.Stats(); st.Duplicates != 1 || st.Processed != 0 {
		t.Fatalf("instance b: %+v", st)
	}
}
