package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"tracking-service/controllers"
	"tracking-service/middleware"
	"tracking-service/models"
	"tracking-service/realtime"
	"tracking-service/services"
)

type stubOrders struct{}

func (stubOrders) GetUserOrders(context.Context, int64, models.OrderListQuery) (*models.OrderListResponse, error) {
	return &models.OrderListResponse{Orders: []models.Order{}}, nil
}

func (stubOrders) GetAllOrders(context.Context, models.Actor, models.OrderListQuery) (*models.OrderListResponse, error) {
	return &models.OrderListResponse{Orders: []models.Order{}}, nil
}

func (stubOrders) GetOrderByID(context.Context, models.Actor, int64) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrders) GetTracking(context.Context, models.Actor, int64) (*models.TrackingSnapshot, error) {
	return &models.TrackingSnapshot{TrackingUpdates: []models.TrackingEvent{}}, nil
}

type stubWriter struct{}

func (stubWriter) SubmitUpdate(context.Context, models.Actor, int64, services.TrackingInput) (*models.TrackingEvent, error) {
	return &models.TrackingEvent{}, nil
}

func (stubWriter) CancelOrder(context.Context, models.Actor, int64) (*models.Order, error) {
	return &models.Order{}, nil
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registry := realtime.NewRegistry(nil)
	RegisterRoutes(r, Handlers{
		Tracking: controllers.NewTrackingController(stubOrders{}, stubWriter{}),
		Orders:   controllers.NewOrderController(stubOrders{}, stubWriter{}),
		Health:   controllers.NewHealthController(nil, registry),
		Gateway:  realtime.NewGateway(nil, services.PermissionGuard{}, registry, realtime.GatewayConfig{}, nil),
		Auth:     middleware.AuthOptions{TrustGatewayHeaders: true},
	})
	return r
}

func TestRegisterRoutes_Table(t *testing.T) {
	r := setupRouter()

	got := map[string]bool{}
	for _, route := range r.Routes() {
		got[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"GET /tracking/order/:id",
		"POST /tracking/order/:id",
		"GET /ws/tracking/:order_id",
		"GET /orders",
		"GET /orders/:id",
		"POST /orders/:id/cancel",
		"GET /admin/orders",
	} {
		assert.True(t, got[want], want)
	}
}

func TestRegisterRoutes_Guards(t *testing.T) {
	r := setupRouter()

	tests := []struct {
		name   string
		method string
		path   string
		userID string
		role   string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"tracking needs auth", http.MethodGet, "/tracking/order/1", "", "", http.StatusUnauthorized},
		{"websocket needs auth", http.MethodGet, "/ws/tracking/1", "", "", http.StatusUnauthorized},
		{"orders needs auth", http.MethodGet, "/orders", "", "", http.StatusUnauthorized},
		{"admin rejects customer", http.MethodGet, "/admin/orders", "7", "customer", http.StatusForbidden},
		{"admin allows staff", http.MethodGet, "/admin/orders", "1", "staff", http.StatusOK},
		{"owner lists orders", http.MethodGet, "/orders", "7", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}
			if tt.role != "" {
				req.Header.Set("X-User-Role", tt.role)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
