package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "tracking-service/common/errors"
	"tracking-service/metrics"
	"tracking-service/middleware"
	"tracking-service/models"
)

const (
	maxInboundMessage = 4096
	defaultPongWait   = 60 * time.Second
)

// OrderSource is the read side of the ledger the gateway needs.
type OrderSource interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	Snapshot(ctx context.Context, orderID int64) (*models.TrackingSnapshot, error)
}

// ReadAuthorizer decides whether an actor may watch an order.
type ReadAuthorizer interface {
	CanRead(actor models.Actor, order *models.Order) bool
}

// GatewayConfig tunes live connections.
type GatewayConfig struct {
	QueueSize      int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	AllowedOrigins []string
}

// Gateway serves GET /ws/tracking/:order_id.
//
// A connection is authorized before the upgrade; an unknown order or a denied reader gets a
// plain HTTP error and never sees a frame. After the upgrade the subscriber is registered
// before the snapshot is read, and any queued push already contained in the snapshot is
// skipped, so every event reaches the client exactly once.
type Gateway struct {
	orders   OrderSource
	guard    ReadAuthorizer
	registry *Registry
	cfg      GatewayConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewGateway(orders OrderSource, guard ReadAuthorizer, registry *Registry, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		orders:   orders,
		guard:    guard,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// Handle authorizes, upgrades and streams one live connection.
func (g *Gateway) Handle(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		apperrors.Respond(c, apperrors.Validation("Invalid order ID."))
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Respond(c, apperrors.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	order, err := g.orders.GetOrder(ctx, orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	if !g.guard.CanRead(actor, order) {
		g.logger.Info("Live tracking refused",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", actor.UserID),
		)
		apperrors.Respond(c, apperrors.Forbidden("You do not have permission to track this order."))
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		g.logger.Warn("WebSocket upgrade failed", zap.Int64("order_id", orderID), zap.Error(err))
		return
	}

	sub := NewSubscriber(orderID, g.cfg.QueueSize)
	g.registry.Register(sub)
	g.logger.Info("Live tracking connected",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", actor.UserID),
		zap.String("subscriber_id", sub.ID),
	)

	g.serve(ctx, conn, sub)
}

func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		g.registry.Unregister(sub)
		sub.Close()
		conn.Close()
		g.logger.Info("Live tracking closed",
			zap.Int64("order_id", sub.OrderID),
			zap.String("subscriber_id", sub.ID),
		)
	}()

	snap, err := g.orders.Snapshot(ctx, sub.OrderID)
	if err != nil {
		g.logger.Error("Failed to load tracking snapshot", zap.Int64("order_id", sub.OrderID), zap.Error(err))
		g.writeClose(conn, websocket.CloseInternalServerErr, "snapshot unavailable")
		return
	}

	seen := make(map[int64]struct{}, len(snap.TrackingUpdates))
	for _, ev := range snap.TrackingUpdates {
		seen[ev.ID] = struct{}{}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		g.logger.Error("Failed to encode tracking snapshot", zap.Int64("order_id", sub.OrderID), zap.Error(err))
		g.writeClose(conn, websocket.CloseInternalServerErr, "snapshot unavailable")
		return
	}
	if err := g.write(conn, websocket.TextMessage, data); err != nil {
		return
	}
	metrics.FramesSentTotal.WithLabelValues(metrics.FrameSnapshot).Inc()

	go g.readPump(conn, sub)

	pingEvery := g.cfg.PongWait * 9 / 10
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			g.writeClose(conn, websocket.CloseGoingAway, "")
			return
		case f := <-sub.Frames():
			if _, dup := seen[f.EventID]; dup {
				continue
			}
			if err := g.write(conn, websocket.TextMessage, f.Data); err != nil {
				return
			}
			metrics.FramesSentTotal.WithLabelValues(metrics.FramePush).Inc()
		case <-ticker.C:
			if err := g.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and closes the subscriber when the client goes away.
func (g *Gateway) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer sub.Close()

	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("Live tracking read error", zap.Int64("order_id", sub.OrderID), zap.Error(err))
			}
			return
		}
	}
}

func (g *Gateway) write(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	return conn.WriteMessage(messageType, data)
}

func (g *Gateway) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(g.cfg.WriteTimeout))
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		allowed = strings.TrimSuffix(strings.TrimSpace(allowed), "/")
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	// same host is always allowed
	return strings.EqualFold(u.Host, r.Host)
}
