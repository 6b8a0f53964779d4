package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"csreply-backend/internal/shared/server/middleware"
	"csreply-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

// meHandler reports the operator identity that approvals will be recorded under.
func meHandler(c *gin.Context) {
	operatorID := middleware.OperatorIDFromContext(c)
	if operatorID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"operatorId": operatorID,
	}
	if name := middleware.OperatorNameFromContext(c); name != "" {
		response["name"] = name
	}
	if role := middleware.OperatorRoleFromContext(c); role != "" {
		response["role"] = role
	}

	respond.JSON(c, http.StatusOK, response)
}
