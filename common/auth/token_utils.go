package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
)

var (
	mu        sync.RWMutex
	secretKey []byte
)

func init() {
	_ = godotenv.Load()
	SetSecret(os.Getenv("JWT_SECRET"))
}

// SetSecret replaces the HMAC secret used to verify tokens. An empty secret disables parsing.
func SetSecret(secret string) {
	secret = strings.TrimSpace(secret)
	mu.Lock()
	defer mu.Unlock()
	if secret == "" {
		secretKey = nil
		return
	}
	secretKey = []byte(secret)
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	mu.RLock()
	key := secretKey
	mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})

	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// UserClaims extracts the numeric user id and role from access token claims.
// The user id is read from "user_id", falling back to "sub".
func UserClaims(claims jwt.MapClaims) (int64, string, error) {
	raw, ok := claims["user_id"]
	if !ok {
		raw, ok = claims["sub"]
	}
	if !ok {
		return 0, "", fmt.Errorf("token has no subject")
	}

	var userID int64
	switch v := raw.(type) {
	case float64:
		userID = int64(v)
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid user id in token: %w", err)
		}
		userID = id
	default:
		return 0, "", fmt.Errorf("invalid user id type %T", raw)
	}
	if userID <= 0 {
		return 0, "", fmt.Errorf("invalid user id %d", userID)
	}

	role, _ := claims["role"].(string)
	return userID, role, nil
}
