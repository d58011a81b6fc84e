package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/auth"
	"github.com/sameboat/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(config.JWTConfig{Secret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	return tm
}

func protected(tm *auth.TokenManager, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWTAuth(tm)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"/"+c.GetString("role"))
	})
	r.GET("/x", chain...)
	return r
}

func get(r *gin.Engine, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	tm := newTokens(t)
	r := protected(tm)

	access, err := tm.IssueAccess(&models.User{ID: "u1"})
	require.NoError(t, err)

	w := get(r, "/x", map[string]string{"Authorization": "Bearer " + access})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1/user", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", map[string]string{"Authorization": "Token " + access}).Code)

	// query tokens only count on websocket upgrades
	assert.Equal(t, http.StatusUnauthorized, get(r, "/x?token="+access, nil).Code)
	w = get(r, "/x?token="+access, map[string]string{"Upgrade": "websocket"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	tm := newTokens(t)
	r := protected(tm, RequireAdmin())

	user, err := tm.IssueAccess(&models.User{ID: "u1"})
	require.NoError(t, err)
	staff, err := tm.IssueAccess(&models.User{ID: "u2", IsStaff: true})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/x", map[string]string{"Authorization": "Bearer " + user}).Code)

	w := get(r, "/x", map[string]string{"Authorization": "Bearer " + staff})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2/admin", w.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := get(r, "/x", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}
