package services

import (
	"context"

	"go.uber.org/zap"

	apperrors "tracking-service/common/errors"
	"tracking-service/common/logger"
	"tracking-service/models"
	"tracking-service/repository"
)

// OrderService serves order reads for customers and staff.
type OrderService struct {
	orderRepo repository.OrderRepository
	ledger    *OrderLedger
	guard     PermissionGuard
}

func NewOrderService(orderRepo repository.OrderRepository, ledger *OrderLedger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		ledger:    ledger,
	}
}

// GetUserOrders retrieves a filtered page of one user's orders
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64, q models.OrderListQuery) (*models.OrderListResponse, error) {
	orders, total, err := s.orderRepo.FindByUserID(ctx, userID, q)
	if err != nil {
		logger.Error(ctx, "Failed to fetch user orders", err, zap.Int64("user_id", userID))
		return nil, apperrors.Storage("Failed to fetch orders", err)
	}
	return newOrderListResponse(orders, total, q.Page, q.Limit), nil
}

// GetAllOrders retrieves a filtered page of all orders (staff only)
func (s *OrderService) GetAllOrders(ctx context.Context, actor models.Actor, q models.OrderListQuery) (*models.OrderListResponse, error) {
	if !actor.Privileged {
		return nil, apperrors.Forbidden("You do not have permission to list all orders.")
	}
	logger.Info(ctx, "Staff listing all orders", zap.Int64("user_id", actor.UserID))

	orders, total, err := s.orderRepo.FindAll(ctx, q)
	if err != nil {
		logger.Error(ctx, "Failed to fetch all orders", err)
		return nil, apperrors.Storage("Failed to fetch orders", err)
	}
	return newOrderListResponse(orders, total, q.Page, q.Limit), nil
}

// GetOrderByID returns the order with items and tracking history if the actor may read it.
func (s *OrderService) GetOrderByID(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.FindByIDWithDetails(ctx, orderID)
	if err != nil {
		return nil, mapStorageError(err, "Failed to fetch order")
	}
	if !s.guard.CanRead(actor, order) {
		return nil, apperrors.Forbidden("You do not have permission to view this order.")
	}
	return order, nil
}

// GetTracking returns the tracking snapshot of an order the actor may read.
func (s *OrderService) GetTracking(ctx context.Context, actor models.Actor, orderID int64) (*models.TrackingSnapshot, error) {
	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanRead(actor, order) {
		return nil, apperrors.Forbidden("You do not have permission to view tracking for this order.")
	}
	return s.ledger.Snapshot(ctx, orderID)
}

func newOrderListResponse(orders []models.Order, total int64, page, limit int) *models.OrderListResponse {
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.OrderListResponse{
		Orders: orders,
		Meta: models.MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
