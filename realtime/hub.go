package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tracking-service/metrics"
	"tracking-service/models"
)

// ErrQueueFull is returned when the fan-out queue cannot take another push.
var ErrQueueFull = errors.New("broadcast queue full")

type broadcast struct {
	orderID int64
	frame   Frame
}

// Hub bridges request handlers to the registry. Publish enqueues and returns
// immediately; a single Run loop drains the queue, so pushes for one order reach
// subscribers in the order they were published.
type Hub struct {
	registry *Registry
	queue    chan broadcast
	logger   *zap.Logger
}

func NewHub(registry *Registry, queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry: registry,
		queue:    make(chan broadcast, queueSize),
		logger:   logger,
	}
}

// NewFrame serializes a push.
func NewFrame(push models.TrackingPush) (Frame, error) {
	data, err := json.Marshal(push)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal tracking push: %w", err)
	}
	return Frame{EventID: push.TrackingUpdate.ID, Data: data}, nil
}

// Publish serializes push and enqueues it for delivery.
func (h *Hub) Publish(_ context.Context, push models.TrackingPush) error {
	f, err := NewFrame(push)
	if err != nil {
		return err
	}
	return h.Enqueue(push.OrderID, f)
}

// Enqueue queues an already serialized frame. It never blocks.
func (h *Hub) Enqueue(orderID int64, f Frame) error {
	select {
	case h.queue <- broadcast{orderID: orderID, frame: f}:
		return nil
	default:
		metrics.BroadcastDroppedTotal.Inc()
		h.logger.Warn("Dropping tracking push, broadcast queue full",
			zap.Int64("order_id", orderID),
			zap.Int64("event_id", f.EventID),
		)
		return ErrQueueFull
	}
}

// Run delivers queued frames until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Tracking hub started", zap.Int("queue_size", cap(h.queue)))
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Tracking hub stopped")
			return
		case b := <-h.queue:
			h.registry.Publish(b.orderID, b.frame)
		}
	}
}
