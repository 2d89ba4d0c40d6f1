package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tracking-service/common/logger"
	"tracking-service/metrics"
	"tracking-service/models"
	awspkg "tracking-service/pkg/aws"
)

// MessagePoller delivers queue message bodies to a handler until ctx is done.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// OrderPlacedConsumer turns order placed events into pending orders with their initial
// tracking event.
type OrderPlacedConsumer struct {
	poller   MessagePoller
	ledger   *OrderLedger
	counters CountRecorder
}

func NewOrderPlacedConsumer(poller MessagePoller, ledger *OrderLedger, counters CountRecorder) *OrderPlacedConsumer {
	return &OrderPlacedConsumer{
		poller:   poller,
		ledger:   ledger,
		counters: counters,
	}
}

// Start polls the queue until ctx is cancelled
func (c *OrderPlacedConsumer) Start(ctx context.Context) {
	logger.Log.Info("Starting order placed consumer")

	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Error("Order placed consumer stopped", zap.Error(err))
	}
}

// HandleMessage processes one queue message. Malformed events are logged and dropped;
// storage failures are returned so the message is redelivered.
func (c *OrderPlacedConsumer) HandleMessage(ctx context.Context, body string) error {
	body = awspkg.UnwrapSNSEnvelope(body)

	var evt models.OrderPlacedEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		logger.Warn(ctx, "Invalid order placed payload", zap.Error(err))
		return nil
	}

	order, err := buildOrder(evt)
	if err != nil {
		logger.Warn(ctx, "Skipping order placed event", zap.Int64("user_id", evt.UserID), zap.Error(err))
		return nil
	}

	if _, err := c.ledger.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("create order for user %d: %w", evt.UserID, err)
	}

	metrics.OrdersCreatedTotal.Inc()
	c.count(ctx, awspkg.MetricOrdersCreated)
	c.count(ctx, awspkg.MetricSQSMessagesProcessed)
	logger.Info(ctx, "Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total_cost", order.TotalCost),
	)
	return nil
}

func (c *OrderPlacedConsumer) count(ctx context.Context, name string) {
	if c.counters == nil {
		return
	}
	if err := c.counters.RecordCount(ctx, name, nil); err != nil {
		logger.Warn(ctx, "Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func buildOrder(evt models.OrderPlacedEvent) (*models.Order, error) {
	if evt.UserID <= 0 {
		return nil, fmt.Errorf("invalid user_id %d", evt.UserID)
	}

	items := make([]models.OrderItem, 0, len(evt.Items))
	total := evt.ShippingCost
	for _, it := range evt.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 || it.Price < 0 {
			continue
		}
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		total += int64(it.Quantity) * it.Price
	}
	if len(items) == 0 {
		return nil, errors.New("no valid items")
	}

	country := evt.Country
	if country == "" {
		country = "United States"
	}

	return &models.Order{
		UserID:       evt.UserID,
		FirstName:    evt.FirstName,
		LastName:     evt.LastName,
		Email:        evt.Email,
		Address:      evt.Address,
		City:         evt.City,
		State:        evt.State,
		PostalCode:   evt.PostalCode,
		Country:      country,
		Phone:        evt.Phone,
		ShippingCost: evt.ShippingCost,
		TotalCost:    total,
		Notes:        evt.Notes,
		Items:        items,
	}, nil
}
