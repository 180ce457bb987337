package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"skatestock/internal/model"
)

// Re-submits dead-letter records to the input topic so repaired upstream
// bugs can be replayed. Reads from the jsonl file sink or the dead-letter
// Kafka topic; only records matching -stage are replayed (validation
// failures usually stay dead without a scraper fix).
func main() {
	var (
		source    string // file|kafka
		dlqFile   string
		bootstrap string
		topicDLQ  string
		topicOut  string
		stage     string
		limit     int
	)
	flag.StringVar(&source, "source", "file", "dead-letter source: file|kafka")
	flag.StringVar(&dlqFile, "dlq-file", "./deadletter/deadletter.jsonl", "dead-letter jsonl file")
	flag.StringVar(&bootstrap, "bootstrap", "localhost:9092", "kafka bootstrap servers")
	flag.StringVar(&topicDLQ, "topic-dlq", "dead-letter-queue", "dead-letter kafka topic")
	flag.StringVar(&topicOut, "topic-out", "product-events", "topic to replay into")
	flag.StringVar(&stage, "stage", "processing", "replay only this processing stage (empty = all)")
	flag.IntVar(&limit, "limit", 0, "max records to replay (0 = all)")
	flag.Parse()

	var records []model.DeadLetterEvent
	var err error
	switch source {
	case "file":
		records, err = readFile(dlqFile)
	case "kafka":
		records, err = readKafka(bootstrap, topicDLQ)
	default:
		err = fmt.Errorf("unknown source %q", source)
	}
	if err != nil {
		log.Fatalf("read dead letters: %v", err)
	}

	replayed, skipped := 0, 0
	writer := newWriter(bootstrap, topicOut)
	defer writer.Close()
	for _, rec := range records {
		if stage != "" && rec.ProcessingStage != stage {
			skipped++
			continue
		}
		if limit > 0 && replayed >= limit {
			break
		}
		msg := kafka.Message{Key: []byte(rec.Source), Value: rec.OriginalEvent}
		if err := writer.WriteMessages(context.Background(), msg); err != nil {
			log.Fatalf("replay %s: %v", rec.ID, err)
		}
		replayed++
	}
	log.Printf("replayed %d records to %s (skipped %d)", replayed, topicOut, skipped)
}

func readFile(path string) ([]model.DeadLetterEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var records []model.DeadLetterEvent
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		var rec model.DeadLetterEvent
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return records, nil
}

func readKafka(bootstrap, topic string) ([]model.DeadLetterEvent, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   splitBrokers(bootstrap),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var records []model.DeadLetterEvent
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("read kafka: %w", err)
		}
		var rec model.DeadLetterEvent
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal offset %d: %w", m.Offset, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func newWriter(bootstrap, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func splitBrokers(bootstrap string) []string {
	var brokers []string
	for _, b := range strings.Split(bootstrap, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
