package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "tracking-service/common/errors"
	"tracking-service/common/logger"
	"tracking-service/metrics"
	"tracking-service/models"
	awspkg "tracking-service/pkg/aws"
)

const defaultSinkTimeout = 5 * time.Second

// Publisher hands an accepted tracking event to the live fan-out.
// It must not block on subscriber I/O.
type Publisher interface {
	Publish(ctx context.Context, push models.TrackingPush) error
}

// EventSink receives accepted tracking events for downstream integrations.
type EventSink interface {
	Name() string
	Send(ctx context.Context, push models.TrackingPush) error
}

// CountRecorder records business counters (CloudWatch in production).
type CountRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// UpdateDispatcher is the write path for tracking: authorize, persist, then publish.
// Nothing is published unless the ledger write succeeded, and delivery failures never
// reach the caller.
type UpdateDispatcher struct {
	ledger      *OrderLedger
	guard       PermissionGuard
	publisher   Publisher
	sinks       []EventSink
	sinkTimeout time.Duration
	counters    CountRecorder
	wg          sync.WaitGroup
}

func NewUpdateDispatcher(ledger *OrderLedger, publisher Publisher, sinks ...EventSink) *UpdateDispatcher {
	return &UpdateDispatcher{
		ledger:      ledger,
		publisher:   publisher,
		sinks:       sinks,
		sinkTimeout: defaultSinkTimeout,
	}
}

// WithCounters attaches a business metrics recorder.
func (d *UpdateDispatcher) WithCounters(rec CountRecorder) *UpdateDispatcher {
	d.counters = rec
	return d
}

// SubmitUpdate appends a tracking event on behalf of a staff actor and fans it out.
func (d *UpdateDispatcher) SubmitUpdate(ctx context.Context, actor models.Actor, orderID int64, in TrackingInput) (*models.TrackingEvent, error) {
	order, err := d.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, d.reject(err)
	}
	if !d.guard.CanWrite(actor, order) {
		logger.Warn(ctx, "Tracking update denied", zap.Int64("order_id", orderID), zap.Int64("user_id", actor.UserID))
		return nil, d.reject(apperrors.Forbidden("You do not have permission to update tracking for this order."))
	}

	updated, event, err := d.ledger.AppendTrackingEvent(ctx, orderID, in)
	if err != nil {
		return nil, d.reject(err)
	}

	metrics.TrackingUpdatesTotal.WithLabelValues(metrics.ResultAccepted).Inc()
	logger.Info(ctx, "Tracking update accepted",
		zap.Int64("order_id", orderID),
		zap.Int64("event_id", event.ID),
		zap.String("status", string(updated.Status)),
	)
	d.count(ctx, awspkg.MetricTrackingUpdates, map[string]string{"Status": string(updated.Status)})
	d.deliver(ctx, updated, event)
	return event, nil
}

// CancelOrder cancels an order the actor owns (or any order for staff) and publishes the
// cancellation event.
func (d *UpdateDispatcher) CancelOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	order, err := d.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !d.guard.CanCancel(actor, order) {
		return nil, apperrors.Forbidden("You do not have permission to cancel this order.")
	}

	updated, event, err := d.ledger.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Order cancelled", zap.Int64("order_id", orderID), zap.Int64("user_id", actor.UserID))
	d.count(ctx, awspkg.MetricOrdersCancelled, nil)
	d.deliver(ctx, updated, event)
	return updated, nil
}

// Wait blocks until in-flight sink deliveries finish.
func (d *UpdateDispatcher) Wait() {
	d.wg.Wait()
}

func (d *UpdateDispatcher) count(ctx context.Context, name string, dims map[string]string) {
	if d.counters == nil {
		return
	}
	if err := d.counters.RecordCount(ctx, name, dims); err != nil {
		logger.Warn(ctx, "Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func (d *UpdateDispatcher) reject(err error) error {
	if apperrors.From(err).Code >= 500 {
		metrics.TrackingUpdatesTotal.WithLabelValues(metrics.ResultFailed).Inc()
	} else {
		metrics.TrackingUpdatesTotal.WithLabelValues(metrics.ResultRejected).Inc()
	}
	return err
}

func (d *UpdateDispatcher) deliver(ctx context.Context, order *models.Order, event *models.TrackingEvent) {
	push := models.TrackingPush{
		OrderID:        order.ID,
		Status:         order.Status,
		TrackingUpdate: *event,
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, push); err != nil {
			logger.Warn(ctx, "Live publish failed", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink EventSink) {
			defer d.wg.Done()
			sctx, cancel := context.WithTimeout(base, d.sinkTimeout)
			defer cancel()
			if err := sink.Send(sctx, push); err != nil {
				metrics.SinkFailuresTotal.WithLabelValues(sink.Name()).Inc()
				logger.Warn(sctx, "Tracking sink delivery failed",
					zap.String("sink", sink.Name()),
					zap.Int64("order_id", push.OrderID),
					zap.Error(err),
				)
			}
		}(sink)
	}
}
