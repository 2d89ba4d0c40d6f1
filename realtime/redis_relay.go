package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tracking-service/models"
)

// ChannelPrefix namespaces per-order Redis channels.
const ChannelPrefix = "order_tracking:"

// RedisRelay fans pushes out across service instances. Publish sends the push to the
// order's Redis channel; Run subscribes to every order channel and feeds this
// instance's hub, so each subscriber receives the push from whichever instance accepted
// the update.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, hub: hub, logger: logger}
}

// Publish sends push to the order's channel.
func (r *RedisRelay) Publish(ctx context.Context, push models.TrackingPush) error {
	f, err := NewFrame(push)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channelFor(push.OrderID), f.Data).Err(); err != nil {
		return fmt.Errorf("redis publish order %d: %w", push.OrderID, err)
	}
	return nil
}

// Run relays channel messages into the hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()
	r.logger.Info("Redis tracking relay subscribed", zap.String("pattern", ChannelPrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Redis tracking relay stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			orderID, f, err := frameFromMessage(msg.Channel, msg.Payload)
			if err != nil {
				r.logger.Warn("Ignoring relay message", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = r.hub.Enqueue(orderID, f)
		}
	}
}

func channelFor(orderID int64) string {
	return ChannelPrefix + strconv.FormatInt(orderID, 10)
}

func frameFromMessage(channel, payload string) (int64, Frame, error) {
	raw, ok := strings.CutPrefix(channel, ChannelPrefix)
	if !ok {
		return 0, Frame{}, fmt.Errorf("unexpected channel %q", channel)
	}
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, Frame{}, fmt.Errorf("invalid order id in channel %q", channel)
	}

	var head struct {
		TrackingUpdate struct {
			ID int64 `json:"id"`
		} `json:"tracking_update"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		return 0, Frame{}, fmt.Errorf("decode push: %w", err)
	}
	return orderID, Frame{EventID: head.TrackingUpdate.ID, Data: []byte(payload)}, nil
}
