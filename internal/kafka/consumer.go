package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
	}
}

// Consume fetches messages and hands them to handler, committing only after
// the handler returns nil. A handler error leaves the offset uncommitted so
// the message is redelivered.
func (c *Consumer) Consume(
	ctx context.Context,
	handler func(ctx context.Context, msg kafka.Message) error,
) error {
	const op = "kafka.Consumer.Consume"

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := handler(ctx, msg); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
