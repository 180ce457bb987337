package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"

	"skatestock/internal/deadletter"
	"skatestock/internal/dedup"
	"skatestock/internal/metrics"
	"skatestock/internal/model"
	"skatestock/internal/normalize"
)

// Config holds the per-instance consumer settings.
type Config struct {
	Bootstrap string
	GroupID   string
	ClientID  string
	Topics    []string

	PollTimeout time.Duration
	// Bounded retry policy for authoritative-store outages. After the
	// retries are exhausted the message degrades to dead-letter instead of
	// blocking the partition.
	StoreRetries      int
	StoreRetryBackoff time.Duration
	StoreTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.GroupID == "" {
		c.GroupID = "skatestock-consumers"
	}
	if c.ClientID == "" {
		c.ClientID = "skatestock-consumer-1"
	}
	if len(c.Topics) == 0 {
		c.Topics = []string{"product-events"}
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = time.Second
	}
	if c.StoreRetries == 0 {
		c.StoreRetries = 3
	}
	if c.StoreRetryBackoff == 0 {
		c.StoreRetryBackoff = 500 * time.Millisecond
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// MessageSource abstracts the subscribed Kafka consumer for testability.
// *kafka.Consumer satisfies it directly.
type MessageSource interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
	CommitMessage(m *ck.Message) ([]ck.TopicPartition, error)
	Close() error
}

// Connect creates and subscribes a Kafka consumer with manual offset
// commits. Auto-commit stays off: offsets are committed per message, only
// after its pipeline reaches a terminal state.
func Connect(cfg Config) (*ck.Consumer, error) {
	cfg = cfg.withDefaults()
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":     cfg.Bootstrap,
		"group.id":              cfg.GroupID,
		"client.id":             cfg.ClientID,
		"enable.auto.commit":    false,
		"auto.offset.reset":     "earliest",
		"max.poll.interval.ms":  300000,
		"session.timeout.ms":    45000,
		"heartbeat.interval.ms": 15000,
	})
	if err != nil {
		return nil, fmt.Errorf("new consumer: %w", err)
	}
	if err := c.SubscribeTopics(cfg.Topics, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe %v: %w", cfg.Topics, err)
	}
	return c, nil
}

// ProductFunc receives every successfully normalized product together with
// the original raw event. It runs synchronously inside the pipeline; an
// error is treated as handoff failure and dead-letters the event.
type ProductFunc func(product model.NormalizedProduct, raw model.RawEvent) error

// ErrorFunc receives unrecoverable processing errors (distinct from
// validation failures) with the original message, for alerting hooks.
type ErrorFunc func(err error, msg *ck.Message)

// Consumer runs the per-message pipeline over a subscribed topic set:
// decode, dedup, validate/normalize, handoff, manual commit. Messages are
// processed strictly in poll order; one bad event never blocks the
// partition.
type Consumer struct {
	cfg Config

	source  MessageSource
	decoder Decoder
	dedup   *dedup.Service
	norm    *normalize.Normalizer
	sink    deadletter.Sink
	metrics *metrics.Registry

	onProduct ProductFunc
	onError   ErrorFunc

	counters counters
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, src MessageSource, svc *dedup.Service, norm *normalize.Normalizer, sink deadletter.Sink, reg *metrics.Registry) *Consumer {
	return &Consumer{
		cfg:     cfg.withDefaults(),
		source:  src,
		decoder: JSONDecoder{},
		dedup:   svc,
		norm:    norm,
		sink:    sink,
		metrics: reg,
		stop:    make(chan struct{}),
	}
}

// SetDecoder replaces the default JSON decoder (e.g. with Avro).
func (c *Consumer) SetDecoder(d Decoder) { c.decoder = d }

func (c *Consumer) OnProduct(fn ProductFunc) { c.onProduct = fn }
func (c *Consumer) OnError(fn ErrorFunc)     { c.onError = fn }

// Run polls until Stop is called or a fatal broker error occurs. A stop
// signal takes effect after the in-flight message's pipeline and commit
// complete, so no message is left partially processed.
func (c *Consumer) Run() error {
	c.running.Store(true)
	defer c.running.Store(false)
	log.Printf("consumer %s: starting loop topics=%v group=%s", c.cfg.ClientID, c.cfg.Topics, c.cfg.GroupID)

	for {
		select {
		case <-c.stop:
			return nil
		default:
		}

		msg, err := c.source.ReadMessage(c.cfg.PollTimeout)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == ck.ErrTimedOut {
					// Empty poll cycle, not an error.
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("consumer %s: fatal kafka error: %w", c.cfg.ClientID, err)
				}
			}
			log.Printf("consumer %s: read error: %v", c.cfg.ClientID, err)
			continue
		}

		c.processMessage(msg)

		if _, err := c.source.CommitMessage(msg); err != nil {
			c.metrics.CommitFailures.Inc()
			log.Printf("consumer %s: commit %s failed: %v", c.cfg.ClientID, msg.TopicPartition, err)
		}
	}
}

// processMessage drives one message to a terminal state. Every terminal
// state is committable; errors local to the message are resolved here and
// never abort the loop.
func (c *Consumer) processMessage(msg *ck.Message) {
	start := time.Now()
	defer func() {
		c.metrics.PipelineLatencySec.Observe(time.Since(start).Seconds())
	}()

	ev, err := c.decoder.Decode(msg.Value)
	if err != nil {
		c.counters.failed.Add(1)
		c.metrics.Failed.Inc()
		log.Printf("consumer %s: skipping undecodable message at %s: %v", c.cfg.ClientID, msg.TopicPartition, err)
		return
	}

	dup, err := c.checkDuplicate(ev)
	if err != nil {
		// The store stayed unreachable through the retry budget. Treating
		// the event as new would break the at-most-once-effect guarantee,
		// so it degrades to dead-letter instead.
		c.deadLetter(msg.Value, ev.Source, err, model.StageDedupUnavailable, c.cfg.StoreRetries)
		return
	}
	if dup {
		c.counters.duplicates.Add(1)
		c.metrics.Duplicates.Inc()
		return
	}

	product, err := c.norm.Normalize(ev)
	if err != nil {
		c.deadLetter(msg.Value, ev.Source, err, model.StageValidation, 0)
		return
	}

	if c.onProduct != nil {
		if err := c.onProduct(product, ev); err != nil {
			c.counters.failed.Add(1)
			c.metrics.Failed.Inc()
			c.deadLetter(msg.Value, ev.Source, err, model.StageProcessing, 0)
			if c.onError != nil {
				c.onError(err, msg)
			}
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.StoreTimeout)
	if err := c.dedup.MarkProcessed(ctx, ev); err != nil {
		// Best effort: the IsDuplicate path already inserted the filter
		// entry, so a missed store write only widens the false-negative
		// window for this one fingerprint.
		log.Printf("consumer %s: mark processed: %v", c.cfg.ClientID, err)
	}
	cancel()

	c.counters.processed.Add(1)
	c.metrics.Processed.Inc()
}

func (c *Consumer) checkDuplicate(ev model.RawEvent) (bool, error) {
	start := time.Now()
	defer func() {
		c.metrics.DedupLatencySec.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.StoreRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.cfg.StoreRetryBackoff)
			log.Printf("consumer %s: dedup store retry %d/%d", c.cfg.ClientID, attempt, c.cfg.StoreRetries)
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.StoreTimeout)
		dup, err := c.dedup.IsDuplicate(ctx, ev)
		cancel()
		if err == nil {
			return dup, nil
		}
		lastErr = err
	}
	return false, lastErr
}

func (c *Consumer) deadLetter(payload []byte, source string, cause error, stage string, retries int) {
	ev := model.DeadLetterEvent{
		ID:              uuid.NewString(),
		OriginalEvent:   append([]byte(nil), payload...),
		ErrorMessage:    cause.Error(),
		ProcessingStage: stage,
		FailedAt:        time.Now().UTC(),
		RetryCount:      retries,
		Source:          source,
	}
	if err := c.sink.Write(ev); err != nil {
		// Never escalate sink failures; a broken dead-letter channel must
		// not halt the pipeline.
		log.Printf("consumer %s: dead-letter write failed (stage=%s): %v", c.cfg.ClientID, stage, err)
	}
	c.counters.deadLettered.Add(1)
	c.metrics.DeadLettered.Inc()
}

// Stop signals the run loop to exit after its current poll cycle.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Close releases the underlying source and logs final counters.
func (c *Consumer) Close() error {
	c.Stop()
	st := c.Stats()
	log.Printf("consumer %s: closing; processed=%d duplicates=%d failed=%d dead_lettered=%d",
		c.cfg.ClientID, st.Processed, st.Duplicates, st.Failed, st.DeadLettered)
	return c.source.Close()
}

// Stats returns a read-only snapshot of the counters.
func (c *Consumer) Stats() Stats {
	return c.counters.snapshot(c.running.Load(), c.cfg.Topics)
}
