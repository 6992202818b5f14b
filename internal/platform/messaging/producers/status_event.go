package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
)

// StatusEventProducer publishes terminal disbursement status events for
// downstream consumers (partner notification services, reporting).
type StatusEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewStatusEventProducer creates the status event producer and ensures the
// topic exists
func NewStatusEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*StatusEventProducer, error) {
	if cfg.StatusTopic == "" {
		return nil, fmt.Errorf("kafka status topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for status event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.StatusTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure status topic %s exists: %w", cfg.StatusTopic, err)
	}

	// Synchronous writes: a terminal status event is the partner-facing
	// record of the outcome, so a publish failure has to surface to the
	// caller for the DLQ fallback.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.StatusTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &StatusEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.StatusTopic,
	}, nil
}

// Publish writes one status event keyed by disbursement ID so events for the
// same disbursement land on the same partition in order.
func (p *StatusEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish status event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish status event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published status event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *StatusEventProducer) Close() error {
	p.logger.Info("Closing status event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close status event writer for topic %s: %w", p.topic, err)
	}
	return nil
}
