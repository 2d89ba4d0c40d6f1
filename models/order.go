package models

import (
	"time"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every recognized status value.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is one of the recognized statuses.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

type Order struct {
	ID           int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64       `gorm:"not null;index" json:"user_id"`
	FirstName    string      `gorm:"type:varchar(100)" json:"first_name"`
	LastName     string      `gorm:"type:varchar(100)" json:"last_name"`
	Email        string      `gorm:"type:varchar(254)" json:"email"`
	Address      string      `gorm:"type:varchar(250)" json:"address"`
	City         string      `gorm:"type:varchar(100)" json:"city"`
	State        string      `gorm:"type:varchar(100)" json:"state"`
	PostalCode   string      `gorm:"type:varchar(20)" json:"postal_code"`
	Country      string      `gorm:"type:varchar(100);default:'United States'" json:"country"`
	Phone        string      `gorm:"type:varchar(15)" json:"phone,omitempty"`
	Status       OrderStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ShippingCost int64       `gorm:"not null;default:0" json:"shipping_cost"` // cents
	TotalCost    int64       `gorm:"not null;default:0" json:"total_cost"`    // cents
	Notes        string      `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Items        []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	TrackingEvents []TrackingEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"tracking,omitempty"`
}

type OrderItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null" json:"product_id"`
	Quantity  int   `gorm:"not null" json:"quantity"`
	Price     int64 `gorm:"not null" json:"price"` // cents
}

// OrderListQuery selects a page of orders. Status filters when set; Ordering names a
// sort field, prefixed with "-" for descending (default "-created_at").
type OrderListQuery struct {
	Page     int
	Limit    int
	Status   OrderStatus
	Ordering string
}

// OrderListOrderings lists the accepted Ordering values.
var OrderListOrderings = []string{
	"created_at", "-created_at",
	"updated_at", "-updated_at",
	"total_cost", "-total_cost",
}

// OrderListResponse is a page of orders.
type OrderListResponse struct {
	Orders []Order  `json:"orders"`
	Meta   MetaData `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderPlacedEvent is consumed from the checkout queue.
type OrderPlacedEvent struct {
	UserID       int64             `json:"user_id"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Email        string            `json:"email"`
	Address      string            `json:"address"`
	City         string            `json:"city"`
	State        string            `json:"state"`
	PostalCode   string            `json:"postal_code"`
	Country      string            `json:"country"`
	Phone        string            `json:"phone"`
	ShippingCost int64             `json:"shipping_cost"`
	Notes        string            `json:"notes"`
	Items        []OrderPlacedItem `json:"items"`
	Timestamp    time.Time         `json:"timestamp"`
}

type OrderPlacedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}
