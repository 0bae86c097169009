// Package kafka publishes committed ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"staffing-ledger/config"
	"staffing-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a publisher writing to cfg.Topic. In async mode
// WriteMessages only queues, and failed batches are reported through log.
func NewPublisher(cfg config.KafkaConfig, log zerolog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        cfg.Async,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	}
	if cfg.Async {
		w.Completion = completionLogger(log)
	}
	return &Publisher{writer: w}
}

func completionLogger(log zerolog.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, 0, len(msgs))
		for _, m := range msgs {
			keys = append(keys, string(m.Key))
		}
		log.Warn().Err(err).Int("messages", len(msgs)).Strs("keys", keys).Msg("ledger event delivery failed")
	}
}

func newPublisherWithWriter(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish writes events in a single batch, each keyed by its owner so one
// wallet's events stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, events ...domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal ledger event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.Owner.String()),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d %s event(s): %w", len(msgs), events[0].Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
