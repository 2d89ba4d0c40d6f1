package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracking-service/models"
)

func newOrderServiceWith(repo *fakeRepo) *OrderService {
	return NewOrderService(repo, NewOrderLedger(repo, false))
}

func TestGetTracking_OwnerSeesSnapshot(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, alice.UserID, models.StatusPending)
	svc := newOrderServiceWith(repo)
	d := NewUpdateDispatcher(svc.ledger, nil)
	_, err := d.SubmitUpdate(context.Background(), staff, 42, TrackingInput{Status: models.StatusShipped, Location: "Hub B"})
	require.NoError(t, err)

	snap, err := svc.GetTracking(context.Background(), alice, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), snap.OrderID)
	assert.Equal(t, models.StatusShipped, snap.Status)
	require.Len(t, snap.TrackingUpdates, 1)
	assert.Equal(t, "Hub B", snap.TrackingUpdates[0].Location)
}

func TestGetTracking_NonOwnerDenied(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, alice.UserID, models.StatusPending)
	svc := newOrderServiceWith(repo)

	snap, err := svc.GetTracking(context.Background(), bob, 42)
	assert.Nil(t, snap)
	assert.Equal(t, http.StatusForbidden, code(err))
}

func TestGetTracking_StaffReadsAnyOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, alice.UserID, models.StatusPending)
	svc := newOrderServiceWith(repo)

	_, err := svc.GetTracking(context.Background(), staff, 42)
	assert.NoError(t, err)
}

func TestGetTracking_UnknownOrder(t *testing.T) {
	svc := newOrderServiceWith(newFakeRepo())

	_, err := svc.GetTracking(context.Background(), staff, 7)
	assert.Equal(t, http.StatusNotFound, code(err))
}

func TestGetOrderByID(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(42, alice.UserID, models.StatusPending)
	svc := newOrderServiceWith(repo)

	order, err := svc.GetOrderByID(context.Background(), alice, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)

	_, err = svc.GetOrderByID(context.Background(), bob, 42)
	assert.Equal(t, http.StatusForbidden, code(err))

	_, err = svc.GetOrderByID(context.Background(), alice, 43)
	assert.Equal(t, http.StatusNotFound, code(err))
}

func TestGetUserOrders_Pagination(t *testing.T) {
	repo := newFakeRepo()
	for id := int64(1); id <= 5; id++ {
		repo.addOrder(id, alice.UserID, models.StatusPending)
	}
	repo.addOrder(6, bob.UserID, models.StatusPending)
	svc := newOrderServiceWith(repo)

	resp, err := svc.GetUserOrders(context.Background(), alice.UserID, models.OrderListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Orders, 2)
	assert.Equal(t, int64(5), resp.Meta.TotalOrders)
	assert.Equal(t, int64(3), resp.Meta.TotalPages)
	assert.True(t, resp.Meta.HasMore)

	resp, err = svc.GetUserOrders(context.Background(), alice.UserID, models.OrderListQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Orders, 1)
	assert.False(t, resp.Meta.HasMore)
}

func TestGetUserOrders_StorageFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("db down")
	svc := newOrderServiceWith(repo)

	_, err := svc.GetUserOrders(context.Background(), alice.UserID, models.OrderListQuery{Page: 1, Limit: 10})
	assert.Equal(t, http.StatusInternalServerError, code(err))
}

func TestGetAllOrders_StaffOnly(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(1, alice.UserID, models.StatusPending)
	repo.addOrder(2, bob.UserID, models.StatusPending)
	svc := newOrderServiceWith(repo)

	_, err := svc.GetAllOrders(context.Background(), alice, models.OrderListQuery{Page: 1, Limit: 10})
	assert.Equal(t, http.StatusForbidden, code(err))

	resp, err := svc.GetAllOrders(context.Background(), staff, models.OrderListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Meta.TotalOrders)
}

func TestGetAllOrders_StatusFilter(t *testing.T) {
	repo := newFakeRepo()
	repo.addOrder(1, alice.UserID, models.StatusPending)
	repo.addOrder(2, bob.UserID, models.StatusShipped)
	repo.addOrder(3, alice.UserID, models.StatusShipped)
	svc := newOrderServiceWith(repo)

	resp, err := svc.GetAllOrders(context.Background(), staff, models.OrderListQuery{Page: 1, Limit: 10, Status: models.StatusShipped})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Meta.TotalOrders)
	for _, o := range resp.Orders {
		assert.Equal(t, models.StatusShipped, o.Status)
	}

	resp, err = svc.GetUserOrders(context.Background(), alice.UserID, models.OrderListQuery{Page: 1, Limit: 10, Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, int64(1), resp.Orders[0].ID)
}

func TestCalculateTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), calculateTotalPages(10, 0))
	assert.Equal(t, int64(1), calculateTotalPages(10, 10))
	assert.Equal(t, int64(2), calculateTotalPages(11, 10))
	assert.Equal(t, int64(0), calculateTotalPages(0, 10))
}
