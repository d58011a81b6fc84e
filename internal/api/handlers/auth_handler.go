package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/services"
	"github.com/sameboat/backend/internal/utils"
)

type AuthHandler struct {
	svc    services.AuthService
	cookie config.JWTConfig
}

func NewAuthHandler(svc services.AuthService, cfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cfg}
}

type registerRequest struct {
	UserName  string `json:"user_name" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Register", "user_name, email and password are required", err))
		return
	}

	u, err := h.svc.Register(c.Request.Context(), services.RegisterInput{
		UserName:  req.UserName,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeResult(c, OpCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Login", "email and password are required", err))
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setRefreshCookie(c, pair.Refresh, pair.RefreshExpiresAt)
	c.JSON(http.StatusOK, gin.H{"token": pair.Access})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(h.cookie.CookieName)

	pair, err := h.svc.Refresh(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setRefreshCookie(c, pair.Refresh, pair.RefreshExpiresAt)
	c.JSON(http.StatusOK, gin.H{"access": pair.Access})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	raw, _ := c.Cookie(h.cookie.CookieName)
	err := h.svc.Logout(c.Request.Context(), raw)
	h.clearRefreshCookie(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusResetContent, gin.H{"message": "Logout Successfully"})
}

type resetLinkRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *AuthHandler) SendResetLink(c *gin.Context) {
	var req resetLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.SendResetLink", "email is required", err))
		return
	}
	if err := h.svc.SendResetLink(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent. Please check your email"})
}

type resetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.ResetPassword", "new_password and confirm_password are required", err))
		return
	}
	err := h.svc.ResetPassword(c.Request.Context(), c.Param("uid"), c.Param("token"), req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, expires time.Time) {
	c.SetSameSite(sameSite(h.cookie.CookieSameSite))
	c.SetCookie(h.cookie.CookieName, token, int(time.Until(expires).Seconds()), h.cookie.CookiePath, "", h.cookie.CookieSecure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(sameSite(h.cookie.CookieSameSite))
	c.SetCookie(h.cookie.CookieName, "", -1, h.cookie.CookiePath, "", h.cookie.CookieSecure, true)
}

func sameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
