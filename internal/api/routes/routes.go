package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/api/handlers"
	"github.com/sameboat/backend/internal/api/middleware"
	"github.com/sameboat/backend/internal/auth"
	"github.com/sameboat/backend/internal/metrics"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Tokens *auth.TokenManager
	Logger *logrus.Entry

	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Jobs   *handlers.JobHandler
	Health *handlers.HealthHandler
	Admin  *handlers.AdminHandler
	WS     *handlers.WSHandler // optional
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.SecurityHeaders(), middleware.RequestLogger(d.Logger))
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	health := r.Group("/health")
	health.GET("", d.Health.Health)
	health.GET("/ready", d.Health.Ready)
	health.GET("/alive", d.Health.Alive)
	health.GET("/queue", d.Health.Queue)

	v1 := r.Group("/api/v1")
	v1.POST("/register-user", d.Auth.Register)
	v1.POST("/login", d.Auth.Login)
	v1.POST("/refresh", d.Auth.Refresh)
	v1.POST("/logout", d.Auth.Logout)
	v1.POST("/send-reset-password-link", d.Auth.SendResetLink)
	v1.POST("/reset-password/:uid/:token", d.Auth.ResetPassword)

	// Protected routes (JWT)
	authed := v1.Group("")
	authed.Use(middleware.JWTAuth(d.Tokens))

	authed.GET("/me", d.Users.Me)

	authed.GET("/jobs", d.Jobs.List)
	authed.POST("/jobs", d.Jobs.Create)
	authed.GET("/jobs/:id", d.Jobs.Get)
	authed.PUT("/jobs/:id", d.Jobs.Update)
	authed.PATCH("/jobs/:id", d.Jobs.Update)
	authed.DELETE("/jobs/:id", d.Jobs.Delete)
	authed.GET("/jobs/:id/events", d.Jobs.Events)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.GET("/dead-letters", d.Admin.DeadLetters)

	if d.WS != nil {
		r.GET("/ws/jobs", middleware.JWTAuth(d.Tokens), d.WS.JobEvents)
	}
}
