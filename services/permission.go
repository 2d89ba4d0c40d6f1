package services

import "tracking-service/models"

// PermissionGuard decides whether an actor may read or write an order's tracking stream.
type PermissionGuard struct{}

// CanRead allows staff and the order's owner.
func (PermissionGuard) CanRead(actor models.Actor, order *models.Order) bool {
	if order == nil {
		return false
	}
	return actor.Privileged || (actor.UserID != 0 && actor.UserID == order.UserID)
}

// CanWrite allows staff only.
func (PermissionGuard) CanWrite(actor models.Actor, _ *models.Order) bool {
	return actor.Privileged
}

// CanCancel allows staff and the order's owner.
func (g PermissionGuard) CanCancel(actor models.Actor, order *models.Order) bool {
	return g.CanRead(actor, order)
}
