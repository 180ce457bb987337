package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"skatestock/internal/consumer"
	"skatestock/internal/deadletter"
	"skatestock/internal/dedup"
	"skatestock/internal/metrics"
	"skatestock/internal/model"
	"skatestock/internal/normalize"
)

// Config holds CLI flags for the consumer group process.
type Config struct {
	Bootstrap    string
	GroupID      string
	ClientPrefix string
	Topics       string
	NumConsumers int
	PollTimeout  time.Duration

	StoreBackend string // redis|badger|pebble|memory
	RedisAddr    string
	BadgerDir    string
	PebbleDir    string

	BloomCapacity  uint
	BloomErrorRate float64
	DedupTTLHours  int
	StoreRetries   int

	OutputTopic string
	DLQSink     string // file|kafka|both
	DLQDir      string
	TopicDLQ    string

	MetricsAddr string
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("consumer failed: %v", err)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Bootstrap, "bootstrap", "localhost:9092", "kafka bootstrap servers")
	flag.StringVar(&cfg.GroupID, "group-id", "skatestock-consumers", "consumer group id")
	flag.StringVar(&cfg.ClientPrefix, "client-prefix", "skatestock-consumer", "client id prefix")
	flag.StringVar(&cfg.Topics, "topics", "product-events", "comma-separated input topics")
	flag.IntVar(&cfg.NumConsumers, "consumers", 3, "number of consumer instances in the group")
	flag.DurationVar(&cfg.PollTimeout, "poll-timeout", time.Second, "poll timeout per read")
	flag.StringVar(&cfg.StoreBackend, "store-backend", "redis", "dedup store backend: redis|badger|pebble|memory")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "redis://localhost:6379/0", "redis address or url")
	flag.StringVar(&cfg.BadgerDir, "badger-dir", "./data/dedup-badger", "badger data directory")
	flag.StringVar(&cfg.PebbleDir, "pebble-dir", "./data/dedup-pebble", "pebble data directory")
	flag.UintVar(&cfg.BloomCapacity, "bloom-capacity", 100000, "bloom filter capacity")
	flag.Float64Var(&cfg.BloomErrorRate, "bloom-error-rate", 0.01, "bloom filter false-positive rate")
	flag.IntVar(&cfg.DedupTTLHours, "dedup-ttl-hours", 24, "deduplication window in hours")
	flag.IntVar(&cfg.StoreRetries, "store-retries", 3, "dedup store retries before dead-lettering")
	flag.StringVar(&cfg.OutputTopic, "output-topic", "normalized-products", "topic for normalized records")
	flag.StringVar(&cfg.DLQSink, "dlq-sink", "file", "dead-letter sink: file|kafka|both")
	flag.StringVar(&cfg.DLQDir, "dlq-dir", "./deadletter", "dead-letter file directory")
	flag.StringVar(&cfg.TopicDLQ, "topic-dlq", "dead-letter-queue", "dead-letter kafka topic")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", ":8080", "metrics/health listen address")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("init dedup store: %w", err)
	}
	defer store.Close()

	svc := dedup.NewService(store, dedup.Config{
		BloomCapacity:  cfg.BloomCapacity,
		BloomErrorRate: cfg.BloomErrorRate,
		TTL:            time.Duration(cfg.DedupTTLHours) * time.Hour,
	})
	log.Printf("dedup store backend=%s ttl=%s", cfg.StoreBackend, svc.TTL())

	sink, err := openSink(cfg)
	if err != nil {
		return fmt.Errorf("init dead-letter sink: %w", err)
	}

	producer, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer producer.Close()

	norm := normalize.New()
	mreg := metrics.NewRegistry()
	topics := splitTopics(cfg.Topics)

	consumers := make([]*consumer.Consumer, 0, cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		ccfg := consumer.Config{
			Bootstrap:    cfg.Bootstrap,
			GroupID:      cfg.GroupID,
			ClientID:     fmt.Sprintf("%s-%d", cfg.ClientPrefix, i+1),
			Topics:       topics,
			PollTimeout:  cfg.PollTimeout,
			StoreRetries: cfg.StoreRetries,
		}
		src, err := consumer.Connect(ccfg)
		if err != nil {
			return fmt.Errorf("connect %s: %w", ccfg.ClientID, err)
		}
		c := consumer.New(ccfg, src, svc, norm, sink, mreg)
		c.OnProduct(publishNormalized(producer, cfg.OutputTopic))
		c.OnError(func(err error, msg *ck.Message) {
			log.Printf("processing error at %s: %v", msg.TopicPartition, err)
		})
		consumers = append(consumers, c)
	}
	group := consumer.NewGroup(consumers...)

	go func() {
		http.Handle("/metrics", mreg.Handler())
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		})
		http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(group.Stats())
		})
		_ = http.ListenAndServe(cfg.MetricsAddr, nil)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		log.Printf("received %s, stopping consumers", s)
		group.StopAll()
	}()

	runErr := group.StartAll()
	if err := group.CloseAll(); err != nil {
		log.Printf("close: %v", err)
	}
	return runErr
}

func openStore(cfg Config) (dedup.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return dedup.NewRedisStore(ctx, cfg.RedisAddr)
	case "badger":
		return dedup.NewBadgerStore(cfg.BadgerDir)
	case "pebble":
		return dedup.NewPebbleStore(cfg.PebbleDir)
	case "memory":
		return dedup.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openSink(cfg Config) (deadletter.Sink, error) {
	var sinks []deadletter.Sink
	if cfg.DLQSink == "file" || cfg.DLQSink == "both" {
		fs, err := deadletter.NewFileSink(cfg.DLQDir, "deadletter.jsonl")
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if cfg.DLQSink == "kafka" || cfg.DLQSink == "both" {
		sinks = append(sinks, deadletter.NewKafkaSink(cfg.Bootstrap, cfg.TopicDLQ))
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("unknown dlq sink %q", cfg.DLQSink)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return deadletter.NewMultiSink(sinks...), nil
}

// publishNormalized produces each normalized record to the derived topic,
// keyed by source shop so per-shop ordering carries through. The produce
// is awaited synchronously: a delivery failure is a handoff failure.
func publishNormalized(p *ck.Producer, topic string) consumer.ProductFunc {
	return func(product model.NormalizedProduct, _ model.RawEvent) error {
		value, err := json.Marshal(&product)
		if err != nil {
			return fmt.Errorf("marshal product: %w", err)
		}
		delivery := make(chan ck.Event, 1)
		err = p.Produce(&ck.Message{
			TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny},
			Key:            []byte(product.Source),
			Value:          value,
		}, delivery)
		if err != nil {
			return fmt.Errorf("produce: %w", err)
		}
		ev := <-delivery
		m, ok := ev.(*ck.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver: %w", m.TopicPartition.Error)
		}
		return nil
	}
}

func splitTopics(s string) []string {
	var topics []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
