package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards bus events to a Kafka topic, keyed by event topic.
// Forwarding is best effort: failures are logged and never reach publishers.
type KafkaSink struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, timeout: 2 * time.Second}
}

// Attach subscribes the sink to every topic on bus
func (s *KafkaSink) Attach(bus *Bus) func() {
	return bus.SubscribeAll(s.Forward)
}

// Forward writes one event to Kafka
func (s *KafkaSink) Forward(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[Kafka] Failed to encode event %s: %v", e.Topic, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Topic),
		Value: data,
		Time:  e.At,
	})
	if err != nil {
		log.Printf("[Kafka] Failed to forward event %s: %v", e.Topic, err)
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Consumer reads storefront events back from Kafka
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	return &Consumer{reader: reader}
}

// Consume calls handler for every decodable event until ctx is done
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Error reading message: %v", err)
			continue
		}

		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Printf("[Kafka] Skipping undecodable message at offset %d: %v", msg.Offset, err)
			continue
		}
		handler(e)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
