package models

import "time"

// TrackingEvent is one immutable step of an order's fulfilment history.
type TrackingEvent struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64       `gorm:"not null;index:idx_tracking_order_created,priority:1" json:"-"`
	Status      OrderStatus `gorm:"type:varchar(20);not null" json:"status"`
	Location    string      `gorm:"type:varchar(200);not null" json:"location"`
	Description string      `gorm:"type:text" json:"description"`
	Latitude    *float64    `json:"latitude"`
	Longitude   *float64    `json:"longitude"`
	CreatedAt   time.Time   `gorm:"autoCreateTime;index:idx_tracking_order_created,priority:2" json:"timestamp"`
}

// TableName keeps the table name stable regardless of the struct name.
func (TrackingEvent) TableName() string { return "order_tracking_events" }

// TrackingUpdateRequest is the body of POST /tracking/order/:id.
type TrackingUpdateRequest struct {
	Status      OrderStatus `json:"status" binding:"required,tracking_status"`
	Location    string      `json:"location" binding:"required,max=200"`
	Description string      `json:"description"`
	Latitude    *float64    `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude   *float64    `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
}

// TrackingSnapshot is the point-in-time read model: current status plus history, newest first.
// It is both the GET /tracking response and the first frame of a live subscription.
type TrackingSnapshot struct {
	OrderID         int64           `json:"order_id"`
	Status          OrderStatus     `json:"status"`
	TrackingUpdates []TrackingEvent `json:"tracking_updates"`
}

// TrackingPush is a live frame describing exactly one new tracking event.
type TrackingPush struct {
	OrderID        int64         `json:"order_id"`
	Status         OrderStatus   `json:"status"`
	TrackingUpdate TrackingEvent `json:"tracking_update"`
}

// Actor is the authenticated principal behind a request or live connection.
type Actor struct {
	UserID     int64
	Privileged bool
}
