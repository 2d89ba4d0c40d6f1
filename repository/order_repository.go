package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tracking-service/models"
)

// ErrNotFound is returned when the order does not exist.
var ErrNotFound = errors.New("record not found")

// TransitionCheck inspects the locked order before a tracking event is appended.
// A non-nil error aborts the transaction and is returned unchanged.
type TransitionCheck func(order *models.Order) error

// OrderRepository defines data access for orders and their tracking log.
type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByIDWithDetails(ctx context.Context, id int64) (*models.Order, error)
	FindByUserID(ctx context.Context, userID int64, q models.OrderListQuery) ([]models.Order, int64, error)
	FindAll(ctx context.Context, q models.OrderListQuery) ([]models.Order, int64, error)
	ListTrackingEvents(ctx context.Context, orderID int64) ([]models.TrackingEvent, error)
	AppendTrackingEvent(ctx context.Context, orderID int64, event *models.TrackingEvent, check TransitionCheck) (*models.Order, error)
	Create(ctx context.Context, order *models.Order, initial *models.TrackingEvent) error
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindByIDWithDetails loads the order with its items and tracking history (newest first).
func (r *GormOrderRepository) FindByIDWithDetails(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("TrackingEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindByUserID retrieves a filtered page of one user's orders
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID int64, q models.OrderListQuery) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)
	return r.paginate(query, q)
}

// FindAll retrieves a filtered page of all orders
func (r *GormOrderRepository) FindAll(ctx context.Context, q models.OrderListQuery) ([]models.Order, int64, error) {
	return r.paginate(r.db.WithContext(ctx).Model(&models.Order{}), q)
}

// orderClauses maps accepted orderings to ORDER BY clauses; unknown values fall back to newest first.
var orderClauses = map[string]string{
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
	"updated_at":  "updated_at ASC",
	"-updated_at": "updated_at DESC",
	"total_cost":  "total_cost ASC",
	"-total_cost": "total_cost DESC",
}

func orderClause(ordering string) string {
	if c, ok := orderClauses[ordering]; ok {
		return c + ", id DESC"
	}
	return "created_at DESC, id DESC"
}

func (r *GormOrderRepository) paginate(query *gorm.DB, q models.OrderListQuery) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	if err := query.Session(&gorm.Session{}).
		Preload("Items").
		Offset(offset).
		Limit(q.Limit).
		Order(orderClause(q.Ordering)).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// ListTrackingEvents returns the order's tracking log newest first.
func (r *GormOrderRepository) ListTrackingEvents(ctx context.Context, orderID int64) ([]models.TrackingEvent, error) {
	events := make([]models.TrackingEvent, 0)
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	return events, nil
}

// AppendTrackingEvent locks the order row, runs check, inserts the event and moves the
// order to the event's status when it differs. Everything happens in one transaction.
func (r *GormOrderRepository) AppendTrackingEvent(ctx context.Context, orderID int64, event *models.TrackingEvent, check TransitionCheck) (*models.Order, error) {
	var order models.Order

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", orderID).Error; err != nil {
			return notFound(err)
		}

		if check != nil {
			if err := check(&order); err != nil {
				return err
			}
		}

		event.OrderID = order.ID
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("insert tracking event: %w", err)
		}

		if event.Status != order.Status {
			if err := tx.Model(&order).Update("status", event.Status).Error; err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			order.Status = event.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// Create persists an order, its items and its initial tracking event.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order, initial *models.TrackingEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if initial == nil {
			return nil
		}
		initial.OrderID = order.ID
		if err := tx.Create(initial).Error; err != nil {
			return fmt.Errorf("insert initial tracking event: %w", err)
		}
		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("find order: %w", err)
}
