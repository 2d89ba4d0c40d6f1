package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tracking-service/models"
)

// DefaultTrackingTopic carries one message per accepted tracking event.
const DefaultTrackingTopic = "order.tracking"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams tracking events to Kafka, keyed by order id so one order's events
// stay on one partition.
type Producer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	if topic == "" {
		topic = DefaultTrackingTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	logger.Info("Kafka tracking producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &Producer{writer: w, topic: topic, logger: logger}
}

func (p *Producer) Name() string { return "kafka" }

// Send publishes push to the tracking topic.
func (p *Producer) Send(ctx context.Context, push models.TrackingPush) error {
	msg, err := buildMessage(push)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write topic=%s order=%d: %w", p.topic, push.OrderID, err)
	}
	p.logger.Debug("Tracking event published",
		zap.String("topic", p.topic),
		zap.Int64("order_id", push.OrderID),
		zap.Int64("event_id", push.TrackingUpdate.ID),
	)
	return nil
}

func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka tracking producer", zap.String("topic", p.topic))
	return p.writer.Close()
}

func buildMessage(push models.TrackingPush) (kafka.Message, error) {
	data, err := json.Marshal(push)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal tracking push: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(push.OrderID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.tracking.updated")},
			{Key: "status", Value: []byte(push.Status)},
		},
		Time: push.TrackingUpdate.CreatedAt,
	}, nil
}
