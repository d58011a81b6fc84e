package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/queue"
	"github.com/sameboat/backend/internal/utils"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
	queue  queue.Inspector
}

func NewHealthHandler(checks map[string]Check, q queue.Inspector) *HealthHandler {
	return &HealthHandler{checks: checks, queue: q}
}

func (h *HealthHandler) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			healthy = false
			continue
		}
		out[name] = "ok"
	}
	return out, healthy
}

func (h *HealthHandler) Health(c *gin.Context) {
	checks, ok := h.run(c.Request.Context())
	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if _, ok := h.run(c.Request.Context()); !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *HealthHandler) Alive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *HealthHandler) Queue(c *gin.Context) {
	if h.queue == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "HealthHandler.Queue", "queue is not configured", nil))
		return
	}
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "HealthHandler.Queue", "failed to read queue stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}
