package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/auth"
	"github.com/sameboat/backend/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
		Code:    utils.CodeUnauthorized,
		Message: msg,
	})
}

// JWTAuth accepts HS256 access tokens from the Authorization header. Browser
// websocket handshakes cannot set headers, so they may pass ?token= instead.
func JWTAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			raw = c.Query("token")
		}
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims, err := tokens.Parse(raw, auth.TypeAccess)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}
		c.Set("user_id", claims.Subject)
		c.Set("role", role)
		c.Next()
	}
}
