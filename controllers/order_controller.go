package controllers

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "tracking-service/common/errors"
	"tracking-service/models"
)

// OrderReader lists and fetches orders.
type OrderReader interface {
	GetUserOrders(ctx context.Context, userID int64, q models.OrderListQuery) (*models.OrderListResponse, error)
	GetAllOrders(ctx context.Context, actor models.Actor, q models.OrderListQuery) (*models.OrderListResponse, error)
	GetOrderByID(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
}

type OrderController struct {
	orders OrderReader
	writer TrackingWriter
}

func NewOrderController(orders OrderReader, writer TrackingWriter) *OrderController {
	return &OrderController{orders: orders, writer: writer}
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	q, ok := parseListQuery(c)
	if !ok {
		return
	}

	result, err := oc.orders.GetUserOrders(c.Request.Context(), actor.UserID, q)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAllOrders returns paginated orders for all users (staff only)
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	q, ok := parseListQuery(c)
	if !ok {
		return
	}

	result, err := oc.orders.GetAllOrders(c.Request.Context(), actor, q)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOrderByID returns one order with its items and tracking history
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c, "id")
	if !ok {
		return
	}

	order, err := oc.orders.GetOrderByID(c.Request.Context(), actor, orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels a pending or processing order
func (oc *OrderController) CancelOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c, "id")
	if !ok {
		return
	}

	order, err := oc.writer.CancelOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully.", "order": order})
}

// parseListQuery reads ?page, ?limit, ?status and ?ordering. An unknown status is a 400;
// an unknown ordering falls back to newest first.
func parseListQuery(c *gin.Context) (models.OrderListQuery, bool) {
	page, limit := parsePaginationParams(c)
	q := models.OrderListQuery{Page: page, Limit: limit}

	if status := strings.ToLower(strings.TrimSpace(c.Query("status"))); status != "" {
		q.Status = models.OrderStatus(status)
		if !q.Status.Valid() {
			apperrors.Respond(c, apperrors.Validation("Invalid status filter."))
			return q, false
		}
	}
	if ordering := strings.TrimSpace(c.Query("ordering")); slices.Contains(models.OrderListOrderings, ordering) {
		q.Ordering = ordering
	}
	return q, true
}

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(c *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}
