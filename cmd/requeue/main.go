// Command requeue republishes match_submitted events for matches that have
// resources but were never evaluated, so the evaluation consumer picks them
// up again.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated, overrides config)")
	topic := flag.String("topic", "", "Kafka topic (overrides config)")
	limit := flag.Int("limit", 500, "Maximum matches to requeue (0 = all)")
	rate := flag.Int("rate", 50, "Messages per second")
	dryRun := flag.Bool("dry-run", false, "List matches without publishing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config, using defaults: %v", err)
		cfg = config.DefaultConfig()
	}
	if *brokers != "" {
		cfg.Kafka.Brokers = strings.Split(*brokers, ",")
	}
	if *topic != "" {
		cfg.Kafka.Topic = *topic
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := postgres.NewRepository(&cfg.Postgres, slog.Default())
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	ids, err := repo.ListUnevaluatedMatches(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to list unevaluated matches: %v", err)
	}

	fmt.Printf("  Brokers:   %s\n", strings.Join(cfg.Kafka.Brokers, ","))
	fmt.Printf("  Topic:     %s\n", cfg.Kafka.Topic)
	fmt.Printf("  Pending:   %d\n", len(ids))
	fmt.Println()

	if *dryRun || len(ids) == 0 {
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, saramaConfig)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	interval := time.Second
	if *rate > 0 {
		interval = time.Second / time.Duration(*rate)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
loop:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted, flushing...")
			break loop
		case <-ticker.C:
		}

		data, err := json.Marshal(domain.MatchEvent{
			MatchID:   id,
			EventType: domain.EventMatchSubmitted,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			log.Printf("Failed to marshal event for %s: %v", id, err)
			continue
		}

		producer.Input() <- &sarama.ProducerMessage{
			Topic: cfg.Kafka.Topic,
			Key:   sarama.StringEncoder(id),
			Value: sarama.ByteEncoder(data),
		}
		sent++
		fmt.Printf("\r  Progress: %d/%d", sent, len(ids))
	}

	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	if atomic.LoadInt64(&errorCount) > 0 {
		os.Exit(1)
	}
}
