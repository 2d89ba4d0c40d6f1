package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracking-service/common/auth"
	"tracking-service/models"
)

func setupRouter() (*gin.Engine, *models.Actor) {
	return setupRouterWith(AuthOptions{TrustGatewayHeaders: true})
}

func setupRouterWith(opts AuthOptions) (*gin.Engine, *models.Actor) {
	gin.SetMode(gin.TestMode)
	seen := &models.Actor{}
	r := gin.New()
	r.Use(AuthMiddleware(opts))
	r.GET("/whoami", func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		*seen = actor
		c.Status(http.StatusOK)
	})
	r.GET("/staff", StaffOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, seen
}

func accessToken(t *testing.T, userID float64, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"typ":     "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware_Anonymous(t *testing.T) {
	r, _ := setupRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_GatewayHeaders(t *testing.T) {
	r, seen := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Actor{UserID: 7}, *seen)
}

func TestAuthMiddleware_StaffRole(t *testing.T) {
	r, seen := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-User-Role", "Staff")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, seen.Privileged)
}

func TestAuthMiddleware_IdentityCookiesAreIgnored(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "user_id", Value: "999"})
	req.AddCookie(&http.Cookie{Name: "user_role", Value: "admin"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("X-User-ID", "7")
	req.AddCookie(&http.Cookie{Name: "user_role", Value: "admin"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthMiddleware_UntrustedGatewayHeaders(t *testing.T) {
	r, _ := setupRouterWith(AuthOptions{})

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-User-Role", "admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_TokenWinsOverGatewayHeaders(t *testing.T) {
	auth.SetSecret("test-secret")
	t.Cleanup(func() { auth.SetSecret("") })

	r, seen := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, 7, ""))
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-User-Role", "admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Actor{UserID: 7}, *seen)
}

func TestAuthMiddleware_InvalidHeaderID(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_TokenSources(t *testing.T) {
	auth.SetSecret("test-secret")
	t.Cleanup(func() { auth.SetSecret("") })

	tok := accessToken(t, 7, "")
	requests := map[string]*http.Request{
		"bearer": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			return req
		}(),
		"cookie": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.AddCookie(&http.Cookie{Name: "token", Value: tok})
			return req
		}(),
		"query": httptest.NewRequest(http.MethodGet, "/whoami?token="+tok, nil),
	}

	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			r, seen := setupRouterWith(AuthOptions{})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, models.Actor{UserID: 7}, *seen)
		})
	}
}

func TestAuthMiddleware_RejectsBadToken(t *testing.T) {
	auth.SetSecret("test-secret")
	t.Cleanup(func() { auth.SetSecret("") })

	r, _ := setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaffOnly(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("X-User-ID", "7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-User-Role", "admin")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
