package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created writes a 201 Created JSON response.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// Items writes a list envelope {"items": [...]}.
func Items(c *gin.Context, items any) {
	OK(c, gin.H{"items": items})
}

// Page writes a list envelope with the paging window that produced it.
func Page(c *gin.Context, items any, limit, offset int) {
	OK(c, gin.H{"items": items, "limit": limit, "offset": offset})
}
