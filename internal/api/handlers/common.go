package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/utils"
)

// APIError is the body of every failed request.
type APIError struct {
	Code      utils.Code `json:"code"`
	Message   string     `json:"message"`
	RequestID string     `json:"request_id,omitempty"`
}

// writeError maps err to its HTTP status. Only AppError messages reach the
// client; anything else gets the status text. The full error is left on the
// context for the request logger.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	body := APIError{
		Code:      utils.CodeInternal,
		RequestID: c.GetString("request_id"),
	}
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		body.Code, body.Message = ae.Code, ae.Message
	} else {
		switch {
		case errors.Is(err, utils.ErrNotFound):
			body.Code = utils.CodeNotFound
		case errors.Is(err, utils.ErrConflict):
			body.Code = utils.CodeConflict
		}
		body.Message = http.StatusText(status)
	}
	c.JSON(status, body)
}

func requireUserID(c *gin.Context) (string, bool) {
	if id := c.GetString("user_id"); id != "" {
		return id, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
