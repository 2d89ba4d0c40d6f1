package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic through a consumer group and hands each message value to a
// handler. A message is committed only after the handler succeeds.
type Consumer struct {
	reader     messageReader
	topic      string
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, topic: topic, retryDelay: time.Second, logger: logger}
}

// StartPolling consumes until ctx is cancelled.
func (c *Consumer) StartPolling(ctx context.Context, handler func(ctx context.Context, body string) error) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.topic))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka consumer stopped", zap.String("topic", c.topic))
				return ctx.Err()
			}
			c.logger.Warn("Kafka fetch failed", zap.String("topic", c.topic), zap.Error(err))
			if !c.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		if err := handler(ctx, string(m.Value)); err != nil {
			// left uncommitted; the group redelivers it after a rebalance or restart
			c.logger.Warn("Failed to process Kafka message",
				zap.String("topic", c.topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			if !c.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Warn("Failed to commit Kafka message", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
