package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher publishes disbursement status events to the primary topic
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher receives status events that could not be delivered to
// the primary topic so they are kept for replay instead of dropped
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
