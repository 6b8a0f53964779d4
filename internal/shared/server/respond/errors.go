package respond

import (
	"github.com/gin-gonic/gin"

	"csreply-backend/internal/shared/telemetry"
)

// contextFields maps gin context keys onto log field names.
var contextFields = map[string]string{
	"operatorId": "operator_id",
	"inquiryId":  "inquiry_id",
	"responseId": "response_id",
}

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and sends a standardized error response. Client errors are
// logged at warn level; 5xx at error.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	for ctxKey, logKey := range contextFields {
		if v := c.GetString(ctxKey); v != "" {
			fields[logKey] = v
		}
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
