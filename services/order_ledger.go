package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "tracking-service/common/errors"
	"tracking-service/models"
	"tracking-service/repository"
)

const maxLocationLength = 200

// Cancellation event written when an order is cancelled.
const (
	CancelLocation    = "Customer Service"
	CancelDescription = "Order has been cancelled by the customer."
)

// Initial event written when an order is created.
const (
	PlacedLocation    = "Order Processing Center"
	PlacedDescription = "Order has been received and is being processed."
)

// forwardTransitions is only consulted in strict mode.
var forwardTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:    {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered},
}

// TrackingInput is a validated-on-append tracking update.
type TrackingInput struct {
	Status      models.OrderStatus
	Location    string
	Description string
	Latitude    *float64
	Longitude   *float64
}

// OrderLedger owns orders and their append-only tracking log.
//
// Any status may follow any other unless strict is set; only cancellation is guarded
// unconditionally. Backward moves such as delivered -> pending are accepted in the
// default mode.
type OrderLedger struct {
	repo   repository.OrderRepository
	strict bool
}

// NewOrderLedger creates a ledger. strict enables the forward-only transition table.
func NewOrderLedger(repo repository.OrderRepository, strict bool) *OrderLedger {
	return &OrderLedger{repo: repo, strict: strict}
}

// GetOrder returns the order or a 404.
func (l *OrderLedger) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStorageError(err, "Failed to fetch order")
	}
	return order, nil
}

// ListTrackingEvents returns the tracking history newest first.
func (l *OrderLedger) ListTrackingEvents(ctx context.Context, orderID int64) ([]models.TrackingEvent, error) {
	events, err := l.repo.ListTrackingEvents(ctx, orderID)
	if err != nil {
		return nil, apperrors.Storage("Failed to fetch tracking updates", err)
	}
	return events, nil
}

// Snapshot returns the current status and full history of an order.
func (l *OrderLedger) Snapshot(ctx context.Context, orderID int64) (*models.TrackingSnapshot, error) {
	order, err := l.repo.FindByIDWithDetails(ctx, orderID)
	if err != nil {
		return nil, mapStorageError(err, "Failed to fetch tracking updates")
	}
	events := order.TrackingEvents
	if events == nil {
		events = []models.TrackingEvent{}
	}
	return &models.TrackingSnapshot{
		OrderID:         order.ID,
		Status:          order.Status,
		TrackingUpdates: events,
	}, nil
}

// AppendTrackingEvent validates and persists a tracking event, moving the order to the
// event's status when it differs. It returns the order as it is after the write.
func (l *OrderLedger) AppendTrackingEvent(ctx context.Context, orderID int64, in TrackingInput) (*models.Order, *models.TrackingEvent, error) {
	if err := validateTrackingInput(in); err != nil {
		return nil, nil, err
	}

	event := &models.TrackingEvent{
		Status:      in.Status,
		Location:    strings.TrimSpace(in.Location),
		Description: in.Description,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
	}

	order, err := l.repo.AppendTrackingEvent(ctx, orderID, event, l.transitionCheck(in.Status))
	if err != nil {
		return nil, nil, mapStorageError(err, "Failed to save tracking update")
	}
	return order, event, nil
}

// CancelOrder moves a pending or processing order to cancelled and records exactly one
// cancellation event. Shipped and delivered orders are rejected without writing anything.
func (l *OrderLedger) CancelOrder(ctx context.Context, orderID int64) (*models.Order, *models.TrackingEvent, error) {
	event := &models.TrackingEvent{
		Status:      models.StatusCancelled,
		Location:    CancelLocation,
		Description: CancelDescription,
	}

	order, err := l.repo.AppendTrackingEvent(ctx, orderID, event, func(o *models.Order) error {
		if !o.Status.Cancellable() {
			return apperrors.Validation("Cannot cancel an order that has been shipped or delivered.")
		}
		return nil
	})
	if err != nil {
		return nil, nil, mapStorageError(err, "Failed to cancel order")
	}
	return order, event, nil
}

// CreateOrder persists a new pending order together with its initial tracking event.
func (l *OrderLedger) CreateOrder(ctx context.Context, order *models.Order) (*models.TrackingEvent, error) {
	order.Status = models.StatusPending
	initial := &models.TrackingEvent{
		Status:      models.StatusPending,
		Location:    PlacedLocation,
		Description: PlacedDescription,
	}
	if err := l.repo.Create(ctx, order, initial); err != nil {
		return nil, apperrors.Storage("Failed to create order", err)
	}
	return initial, nil
}

func (l *OrderLedger) transitionCheck(next models.OrderStatus) repository.TransitionCheck {
	return func(o *models.Order) error {
		if !l.strict || next == o.Status {
			return nil
		}
		for _, allowed := range forwardTransitions[o.Status] {
			if allowed == next {
				return nil
			}
		}
		return apperrors.Validation(fmt.Sprintf("Cannot move order from %s to %s.", o.Status, next))
	}
}

func validateTrackingInput(in TrackingInput) error {
	if !in.Status.Valid() {
		return apperrors.Validation(fmt.Sprintf("%q is not a valid status.", in.Status))
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return apperrors.Validation("location is required.")
	}
	if len(location) > maxLocationLength {
		return apperrors.Validation(fmt.Sprintf("location must be at most %d characters.", maxLocationLength))
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return apperrors.Validation("latitude must be between -90 and 90.")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return apperrors.Validation("longitude must be between -180 and 180.")
	}
	return nil
}

// mapStorageError keeps application errors, turns a missing row into 404 and anything else into 500.
func mapStorageError(err error, message string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Order not found.")
	}
	return apperrors.Storage(message, err)
}
