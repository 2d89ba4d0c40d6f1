package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tracking-service/common/auth"
	"tracking-service/models"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
	AdminRole      = "admin"
	StaffRole      = "staff"

	accessTokenType = "access"
)

// AuthOptions controls where AuthMiddleware looks for identity.
type AuthOptions struct {
	// TrustGatewayHeaders accepts X-User-ID / X-User-Role as set by the api-gateway.
	// Only enable it when the service is reachable through the gateway alone.
	TrustGatewayHeaders bool
}

// AuthMiddleware resolves the actor behind a request and rejects anonymous callers with 401.
//
// Identity comes from an access token in the Authorization header, the "token" cookie or the
// "token" query parameter, then (when trusted) from the gateway headers. Browsers cannot set
// headers on a WebSocket handshake, so live clients use the query parameter.
func AuthMiddleware(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := fromToken(c)
		if !ok && opts.TrustGatewayHeaders {
			userID, role, ok = fromGateway(c)
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided."})
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

// StaffOnly rejects actors without a privileged role.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || !actor.Privileged {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Staff role required."})
			return
		}
		c.Next()
	}
}

// GetActor returns the actor set by AuthMiddleware.
func GetActor(c *gin.Context) (models.Actor, bool) {
	val, ok := c.Get(UserContextKey)
	if !ok {
		return models.Actor{}, false
	}
	userID, ok := val.(int64)
	if !ok || userID <= 0 {
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Privileged: IsPrivilegedRole(c.GetString(RoleContextKey))}, true
}

// IsPrivilegedRole reports whether role grants staff access.
func IsPrivilegedRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case AdminRole, StaffRole:
		return true
	}
	return false
}

func fromGateway(c *gin.Context) (int64, string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, c.GetHeader("X-User-Role"), true
}

func fromToken(c *gin.Context) (int64, string, bool) {
	token := ""
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		if v, err := c.Cookie("token"); err == nil {
			token = v
		}
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		return 0, "", false
	}

	claims, err := auth.ParseAndValidateToken(token, accessTokenType)
	if err != nil {
		return 0, "", false
	}
	userID, role, err := auth.UserClaims(claims)
	if err != nil {
		return 0, "", false
	}
	return userID, role, true
}
