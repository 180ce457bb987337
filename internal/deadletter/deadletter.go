package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/kafka-go"

	"skatestock/internal/model"
)

// Sink captures unprocessable events for out-of-band inspection or replay.
// Sink failures are best-effort territory: callers log them and move on,
// they never abort the consumer loop.
type Sink interface {
	Write(ev model.DeadLetterEvent) error
}

// MultiSink fans out writes to multiple underlying sinks.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(ss ...Sink) *MultiSink {
	return &MultiSink{sinks: ss}
}

func (m *MultiSink) Write(ev model.DeadLetterEvent) error {
	for _, s := range m.sinks {
		if err := s.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

// FileSink appends dead-letter records to a jsonl file.
type FileSink struct {
	path string
}

func NewFileSink(dir string, filename string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileSink{path: filepath.Join(dir, filename)}, nil
}

func (s *FileSink) Write(ev model.DeadLetterEvent) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&ev); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// KafkaSink publishes dead-letter records to a Kafka topic. Pure-Go client
// (segmentio/kafka-go); records are keyed by source so per-shop ordering
// survives into the dead-letter topic.
type KafkaSink struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaSink creates a Kafka sink.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaSink(bootstrap string, topic string) *KafkaSink {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (s *KafkaSink) Write(ev model.DeadLetterEvent) error {
	b, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return s.writer.WriteMessages(
		context.Background(),
		kafka.Message{Key: []byte(ev.Source), Value: b},
	)
}

// NewKafkaSinkWith is only for tests to inject a fake writer.
func NewKafkaSinkWith(w kafkaMessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}
