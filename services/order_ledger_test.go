package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tracking-service/common/errors"
	"tracking-service/models"
)

func ptr(f float64) *float64 { return &f }

func code(err error) int { return apperrors.From(err).Code }

func TestAppendTrackingEvent_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   TrackingInput
	}{
		{"unknown status", TrackingInput{Status: "lost", Location: "Hub"}},
		{"empty status", TrackingInput{Location: "Hub"}},
		{"missing location", TrackingInput{Status: models.StatusShipped, Location: "   "}},
		{"location too long", TrackingInput{Status: models.StatusShipped, Location: strings.Repeat("x", 201)}},
		{"latitude out of range", TrackingInput{Status: models.StatusShipped, Location: "Hub", Latitude: ptr(90.5)}},
		{"longitude out of range", TrackingInput{Status: models.StatusShipped, Location: "Hub", Longitude: ptr(-180.1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.addOrder(42, 7, models.StatusPending)
			ledger := NewOrderLedger(repo, false)

			_, _, err := ledger.AppendTrackingEvent(context.Background(), 42, tt.in)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, code(err))
			assert.Equal(t, 0, repo.eventCount(42))
			assert.Equal(t, models.StatusPending, repo.status(42))
		})
	}
}

func TestAppendTrackingEvent_BoundaryCoordinatesAccepted(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, 7, models.StatusPending)
	ledger := NewOrderLedger(repo, false)

	_, event, err := ledger.AppendTrackingEvent(context.Background(), 42, TrackingInput{
		Status:    models.StatusShipped,
		Location:  strings.Repeat("x", 200),
		Latitude:  ptr(-90),
		Longitude: ptr(180),
	})
	require.NoError(t, err)
	assert.Equal(t, -90.0, *event.Latitude)
}

func TestAppendTrackingEvent_HistoryNewestFirstAndStatusFollowsLastUpdate(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, 7, models.StatusPending)
	ledger := NewOrderLedger(repo, false)
	ctx := context.Background()

	statuses := []models.OrderStatus{models.StatusProcessing, models.StatusShipped, models.StatusShipped, models.StatusDelivered}
	for i, s := range statuses {
		_, _, err := ledger.AppendTrackingEvent(ctx, 42, TrackingInput{Status: s, Location: "Hub", Description: string(rune('a' + i))})
		require.NoError(t, err)
	}

	snap, err := ledger.Snapshot(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, snap.Status)
	require.Len(t, snap.TrackingUpdates, len(statuses))
	for i := range statuses {
		assert.Equal(t, statuses[len(statuses)-1-i], snap.TrackingUpdates[i].Status)
	}
	for i := 1; i < len(snap.TrackingUpdates); i++ {
		assert.False(t, snap.TrackingUpdates[i].CreatedAt.After(snap.TrackingUpdates[i-1].CreatedAt))
	}
}

func TestAppendTrackingEvent_LooseModeAcceptsBackwardMove(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, 7, models.StatusDelivered)
	ledger := NewOrderLedger(repo, false)

	order, _, err := ledger.AppendTrackingEvent(context.Background(), 42, TrackingInput{Status: models.StatusPending, Location: "Hub"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
}

func TestAppendTrackingEvent_StrictMode(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		ok       bool
	}{
		{models.StatusPending, models.StatusProcessing, true},
		{models.StatusProcessing, models.StatusShipped, true},
		{models.StatusShipped, models.StatusDelivered, true},
		{models.StatusShipped, models.StatusShipped, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusDelivered, models.StatusPending, false},
		{models.StatusShipped, models.StatusProcessing, false},
		{models.StatusPending, models.StatusDelivered, false},
		{models.StatusCancelled, models.StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			repo := newFakeRepo()
			repo.addOrder(42, 7, tt.from)
			ledger := NewOrderLedger(repo, true)

			_, _, err := ledger.AppendTrackingEvent(context.Background(), 42, TrackingInput{Status: tt.to, Location: "Hub"})
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, repo.status(42))
				return
			}
			assert.Equal(t, http.StatusBadRequest, code(err))
			assert.Equal(t, tt.from, repo.status(42))
			assert.Equal(t, 0, repo.eventCount(42))
		})
	}
}

func TestAppendTrackingEvent_CancelledStatusOnShippedOrder(t *testing.T) {
	t.Run("loose overwrites", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addOrder(42, 7, models.StatusShipped)
		ledger := NewOrderLedger(repo, false)

		order, event, err := ledger.AppendTrackingEvent(context.Background(), 42, TrackingInput{Status: models.StatusCancelled, Location: "Hub"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, order.Status)
		assert.Equal(t, models.StatusCancelled, event.Status)
		assert.Equal(t, 1, repo.eventCount(42))
	})

	t.Run("strict rejects", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addOrder(42, 7, models.StatusShipped)
		ledger := NewOrderLedger(repo, true)

		_, _, err := ledger.AppendTrackingEvent(context.Background(), 42, TrackingInput{Status: models.StatusCancelled, Location: "Hub"})
		assert.Equal(t, http.StatusBadRequest, code(err))
		assert.Equal(t, models.StatusShipped, repo.status(42))
		assert.Equal(t, 0, repo.eventCount(42))
	})
}

func TestAppendTrackingEvent_UnknownOrder(t *testing.T) {
	ledger := NewOrderLedger(newFakeRepo(), false)

	_, _, err := ledger.AppendTrackingEvent(context.Background(), 99, TrackingInput{Status: models.StatusShipped, Location: "Hub"})
	assert.Equal(t, http.StatusNotFound, code(err))
}

func TestAppendTrackingEvent_StorageFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, 7, models.StatusPending)
	repo.appendErr = errors.New("connection reset")
	ledger := NewOrderLedger(repo, false)

	_, _, err := ledger.AppendTrackingEvent(context.Background(), 42, TrackingInput{Status: models.StatusShipped, Location: "Hub"})
	assert.Equal(t, http.StatusInternalServerError, code(err))
	assert.ErrorContains(t, err, "connection reset")
}

func TestCancelOrder(t *testing.T) {
	tests := []struct {
		from models.OrderStatus
		ok   bool
	}{
		{models.StatusPending, true},
		{models.StatusProcessing, true},
		{models.StatusShipped, false},
		{models.StatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			repo := newFakeRepo()
			repo.addOrder(42, 7, tt.from)
			ledger := NewOrderLedger(repo, false)

			order, event, err := ledger.CancelOrder(context.Background(), 42)
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, code(err))
				assert.Equal(t, tt.from, repo.status(42))
				assert.Equal(t, 0, repo.eventCount(42))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, order.Status)
			assert.Equal(t, 1, repo.eventCount(42))
			assert.Equal(t, models.StatusCancelled, event.Status)
			assert.Equal(t, CancelLocation, event.Location)
			assert.Equal(t, CancelDescription, event.Description)
		})
	}
}

func TestCreateOrder_WritesInitialEvent(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewOrderLedger(repo, false)

	order := &models.Order{UserID: 7, Status: models.StatusDelivered}
	initial, err := ledger.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, PlacedLocation, initial.Location)
	assert.Equal(t, PlacedDescription, initial.Description)
	assert.Equal(t, 1, repo.eventCount(order.ID))
}

func TestGetOrder_Errors(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewOrderLedger(repo, false)

	_, err := ledger.GetOrder(context.Background(), 1)
	assert.Equal(t, http.StatusNotFound, code(err))

	repo.err = errors.New("db down")
	_, err = ledger.GetOrder(context.Background(), 1)
	assert.Equal(t, http.StatusInternalServerError, code(err))
}

func TestSnapshot_EmptyHistoryIsEmptyList(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, 7, models.StatusPending)
	ledger := NewOrderLedger(repo, false)

	snap, err := ledger.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, snap.TrackingUpdates)
	assert.Empty(t, snap.TrackingUpdates)
}
