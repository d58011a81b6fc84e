package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Operation names the kind of write a response reports.
type Operation int

const (
	OpCreated Operation = iota + 1
	OpUpdated
	OpDeleted
)

var operationResults = map[Operation]struct {
	status  int
	message string
}{
	OpCreated: {http.StatusCreated, "Created successfully"},
	OpUpdated: {http.StatusOK, "Updated successfully"},
	OpDeleted: {http.StatusOK, "Deleted successfully"},
}

type Result struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// writeResult wraps data in the message for op. Every write endpoint
// responds through here.
func writeResult(c *gin.Context, op Operation, data any) {
	r, ok := operationResults[op]
	if !ok {
		r.status, r.message = http.StatusOK, "OK"
	}
	c.JSON(r.status, Result{Message: r.message, Data: data})
}
