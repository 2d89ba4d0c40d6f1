package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SubscriberCounter reports live connection totals.
type SubscriberCounter interface {
	Total() int
}

type HealthController struct {
	db          Pinger
	subscribers SubscriberCounter
}

func NewHealthController(db Pinger, subscribers SubscriberCounter) *HealthController {
	return &HealthController{db: db, subscribers: subscribers}
}

// Health reports database reachability and live subscriber count.
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok", "service": "tracking-service"}
	if hc.subscribers != nil {
		body["subscribers"] = hc.subscribers.Total()
	}
	if hc.db != nil {
		if err := hc.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}
