package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tracking-service/controllers"
	"tracking-service/middleware"
	"tracking-service/realtime"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Tracking *controllers.TrackingController
	Orders   *controllers.OrderController
	Health   *controllers.HealthController
	Gateway  *realtime.Gateway

	Auth middleware.AuthOptions
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	authn := middleware.AuthMiddleware(h.Auth)

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	trackingRoutes := r.Group("/tracking")
	trackingRoutes.Use(authn)
	trackingRoutes.GET("/order/:id", h.Tracking.GetTracking)
	trackingRoutes.POST("/order/:id", h.Tracking.AddTrackingUpdate)

	wsRoutes := r.Group("/ws")
	wsRoutes.Use(authn)
	wsRoutes.GET("/tracking/:order_id", h.Gateway.Handle)

	orderRoutes := r.Group("/orders")
	orderRoutes.Use(authn)
	orderRoutes.GET("", h.Orders.GetOrders) // User's own orders
	orderRoutes.GET("/:id", h.Orders.GetOrderByID)
	orderRoutes.POST("/:id/cancel", h.Orders.CancelOrder)

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(authn, middleware.StaffOnly())
	adminRoutes.GET("/orders", h.Orders.GetAllOrders) // All orders
}
