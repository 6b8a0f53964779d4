package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"csreply-backend/internal/shared/auth"
	"csreply-backend/internal/shared/server/respond"
)

const (
	operatorIDKey   = "operatorId"
	operatorNameKey = "operatorName"
	operatorRoleKey = "operatorRole"
)

// Auth validates operator bearer tokens and stores the identity in context.
// Outside production an X-Operator-Id header is accepted instead.
func Auth(env string, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			claims, err := auth.VerifyJWT(secret, token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			c.Set(operatorIDKey, claims.Subject)
			if claims.Name != "" {
				c.Set(operatorNameKey, claims.Name)
			}
			if claims.Role != "" {
				c.Set(operatorRoleKey, claims.Role)
			}
			c.Next()
			return
		}

		operatorID := strings.TrimSpace(c.GetHeader("X-Operator-Id"))
		if operatorID == "" || env == "production" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(operatorIDKey, "dev:"+operatorID)
		c.Next()
	}
}

// OperatorIDFromContext fetches the operator ID set by the auth middleware.
func OperatorIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(operatorIDKey)
}

// OperatorNameFromContext fetches the operator display name, if the token had one.
func OperatorNameFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(operatorNameKey)
}

// OperatorRoleFromContext fetches the operator role claim, if any.
func OperatorRoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(operatorRoleKey)
}
