package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/events"
)

const consumerGroup = "storefront-eventlog"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	if !cfg.KafkaEnabled() {
		log.Fatal("[EventLog] KAFKA_BROKERS environment variable is required")
	}

	log.Println("[EventLog] ========================================")
	log.Println("[EventLog] EC Storefront - session event log")
	log.Println("[EventLog] ========================================")
	log.Printf("[EventLog] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[EventLog] Topic: %s", cfg.KafkaTopic)
	log.Printf("[EventLog] Group: %s", consumerGroup)

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := consumer.Consume(ctx, func(e events.Event) {
			log.Printf("[EventLog] %s %-16s source=%s id=%s", e.At.Format("15:04:05.000"), e.Topic, e.Source, e.ID)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[EventLog] Consumer error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	log.Println("[EventLog] Shutting down...")
	cancel()
	<-done
}
