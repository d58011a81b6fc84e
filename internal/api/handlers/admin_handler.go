package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/queue"
	"github.com/sameboat/backend/internal/utils"
)

type AdminHandler struct {
	dead queue.DeadLetterReader
}

func NewAdminHandler(dead queue.DeadLetterReader) *AdminHandler {
	return &AdminHandler{dead: dead}
}

func (h *AdminHandler) DeadLetters(c *gin.Context) {
	const op = "AdminHandler.DeadLetters"

	if h.dead == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "the configured queue does not expose dead letters", nil))
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 500 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "limit must be between 1 and 500", err))
		return
	}

	out, err := h.dead.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to read dead letters", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "results": out})
}
