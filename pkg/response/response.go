package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform JSON envelope for every endpoint.
type APIResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      T           `json:"data,omitempty"`
	Error     interface{} `json:"error,omitempty"`
}

// OK writes a success envelope with the given status.
func OK[T any](c *gin.Context, status int, data T, message string) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: c.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      data,
	})
}

// Fail writes an error envelope with the given status.
func Fail(c *gin.Context, status int, message string, details interface{}) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, APIResponse[any]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: c.GetString("request_id"),
		Success:   false,
		Message:   message,
		Error:     details,
	})
}

// Abort writes an error envelope and stops the handler chain; used by
// middleware.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, APIResponse[any]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: c.GetString("request_id"),
		Success:   false,
		Message:   message,
	})
}
