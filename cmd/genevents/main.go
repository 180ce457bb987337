package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"skatestock/internal/model"
)

// Demo raw-event generator for the five retailer sources. Writes jsonl by
// default, or produces straight to Kafka with -bootstrap. The -dup-rate
// knob re-emits earlier events unchanged to exercise deduplication.
func main() {
	var (
		count      int
		dupRate    float64
		outputFile string
		bootstrap  string
		topic      string
		seed       int64
	)
	flag.IntVar(&count, "count", 100, "number of events to generate")
	flag.Float64Var(&dupRate, "dup-rate", 0.1, "fraction of events re-emitted as exact duplicates")
	flag.StringVar(&outputFile, "output", "product-events.jsonl", "output file (ignored with -bootstrap)")
	flag.StringVar(&bootstrap, "bootstrap", "", "kafka bootstrap servers; empty writes to file")
	flag.StringVar(&topic, "topic", "product-events", "kafka topic")
	flag.Int64Var(&seed, "seed", 0, "rng seed (0 uses current time)")
	flag.Parse()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	events := generate(count, dupRate, rand.New(rand.NewSource(seed)))

	var err error
	if bootstrap != "" {
		err = produceKafka(bootstrap, topic, events)
	} else {
		err = writeFile(outputFile, events)
	}
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

var sources = []string{
	"seasons_skateshop",
	"premier_store",
	"labor_skateshop",
	"nj_skateshop",
	"blacksheep_skateshop",
}

var titles = []string{
	"Baker Brand Logo Deck 8.25",
	"Thrasher Flame Hoodie",
	"Independent Stage 11 Trucks 149mm",
	"Spitfire Formula Four 99a 54mm",
	"Vans Old Skool Pro",
	"Emerica Wino G6 Slip-On",
	"Lakai Griffin Suede",
	"HUF Classic H Snapback",
	"Indy Stage 11 Forged Hollow",
	"Shop Blank Deck 8.0",
}

var categories = []string{"decks", "trucks", "wheels", "shoes", "apparel", "accessories"}

func generate(count int, dupRate float64, rng *rand.Rand) []model.RawEvent {
	events := make([]model.RawEvent, 0, count)
	for i := 0; i < count; i++ {
		if len(events) > 0 && rng.Float64() < dupRate {
			events = append(events, events[rng.Intn(len(events))])
			continue
		}
		source := sources[rng.Intn(len(sources))]
		original := 20 + rng.Float64()*180
		sale := original * (0.5 + rng.Float64()*0.5)
		ev := model.RawEvent{
			Source:          source,
			SourceProductID: fmt.Sprintf("%d", 10000+rng.Intn(90000)),
			Title:           titles[rng.Intn(len(titles))],
			Category:        categories[rng.Intn(len(categories))],
			OriginalPrice:   model.Price(fmt.Sprintf("%.2f", original)),
			SalePrice:       model.Price(fmt.Sprintf("%.2f", sale)),
			Currency:        "USD",
			Availability:    "in_stock",
			ScrapedAt:       time.Now().UTC().Format(time.RFC3339),
		}
		events = append(events, ev)
	}
	return events
}

func writeFile(path string, events []model.RawEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for i, ev := range events {
		if err := enc.Encode(&ev); err != nil {
			return fmt.Errorf("encode event %d: %w", i+1, err)
		}
	}
	log.Printf("generated %d events to %s", len(events), path)
	return nil
}

func produceKafka(bootstrap, topic string, events []model.RawEvent) error {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer p.Close()

	for i, ev := range events {
		value, err := json.Marshal(&ev)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", i+1, err)
		}
		err = p.Produce(&ck.Message{
			TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny},
			Key:            []byte(ev.Source),
			Value:          value,
		}, nil)
		if err != nil {
			return fmt.Errorf("produce event %d: %w", i+1, err)
		}
	}
	if remaining := p.Flush(15000); remaining > 0 {
		return fmt.Errorf("flush: %d messages still queued", remaining)
	}
	log.Printf("produced %d events to %s", len(events), topic)
	return nil
}
