package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"csreply-backend/internal/shared/server/respond"
	"csreply-backend/internal/shared/telemetry"
)

// Recovery turns a panicking handler into a 500 internal_error. The
// entity ids the handler had already tagged are logged with the stack so a
// half-applied transition can be traced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("request.panic", map[string]any{
				"request_id":  RequestIDFromContext(c),
				"operator_id": OperatorIDFromContext(c),
				"inquiry_id":  c.GetString("inquiryId"),
				"response_id": c.GetString("responseId"),
				"error":       fmt.Sprint(rec),
				"stack":       string(debug.Stack()),
				"path":        c.Request.URL.Path,
				"method":      c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
