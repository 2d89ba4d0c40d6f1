package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "tracking-service/common/errors"
	"tracking-service/middleware"
	"tracking-service/models"
	"tracking-service/services"
)

// TrackingReader serves the tracking read model.
type TrackingReader interface {
	GetTracking(ctx context.Context, actor models.Actor, orderID int64) (*models.TrackingSnapshot, error)
}

// TrackingWriter accepts tracking updates and cancellations.
type TrackingWriter interface {
	SubmitUpdate(ctx context.Context, actor models.Actor, orderID int64, in services.TrackingInput) (*models.TrackingEvent, error)
	CancelOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
}

type TrackingController struct {
	reader TrackingReader
	writer TrackingWriter
}

func NewTrackingController(reader TrackingReader, writer TrackingWriter) *TrackingController {
	RegisterValidators()
	return &TrackingController{reader: reader, writer: writer}
}

// GetTracking returns the order's current status and tracking history, newest first.
func (tc *TrackingController) GetTracking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c, "id")
	if !ok {
		return
	}

	snap, err := tc.reader.GetTracking(c.Request.Context(), actor, orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AddTrackingUpdate appends a tracking event (staff only) and returns it.
func (tc *TrackingController) AddTrackingUpdate(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(c, "id")
	if !ok {
		return
	}

	var req models.TrackingUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	event, err := tc.writer.SubmitUpdate(c.Request.Context(), actor, orderID, services.TrackingInput{
		Status:      req.Status,
		Location:    req.Location,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Respond(c, apperrors.New(http.StatusUnauthorized, "Authentication credentials were not provided.", nil))
		return models.Actor{}, false
	}
	return actor, true
}

func parseOrderID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return 0, false
	}
	return id, true
}
