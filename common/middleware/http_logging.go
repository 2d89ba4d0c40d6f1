package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "REDACTED"

// sensitiveParams are query parameters that carry credentials. Live tracking clients
// authenticate with ?token= because browsers cannot set headers on a WebSocket handshake.
var sensitiveParams = []string{"token", "access_token"}

// RequestLogger logs one line per request once the handler returns. Long-lived WebSocket
// streams are therefore logged when the connection closes, tagged with "websocket".
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request
		query := scrubQuery(req.URL.RawQuery)
		websocket := strings.EqualFold(req.Header.Get("Upgrade"), "websocket")

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", req.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if websocket {
			fields = append(fields, zap.Bool("websocket", true))
		}
		if rid := c.GetString("request_id"); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}

		logger.Check(levelFor(status), "http_request").Write(fields...)
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// scrubQuery replaces credential values in a raw query string. Unparseable queries are
// dropped entirely rather than logged.
func scrubQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	changed := false
	for _, key := range sensitiveParams {
		if _, ok := values[key]; ok {
			values.Set(key, redacted)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}
