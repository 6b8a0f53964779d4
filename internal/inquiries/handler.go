package inquiries

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"csreply-backend/internal/shared/server/middleware"
	"csreply-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches inquiry intake routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/inquiries", h.create)
	rg.GET("/inquiries", h.list)
	rg.GET("/inquiries/:id", h.get)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	inquiry, created, err := h.Svc.Create(c.Request.Context(), req, middleware.RequestIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create inquiry", nil)
		}
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	respond.JSON(c, status, inquiry)
}

func (h *Handler) get(c *gin.Context) {
	inquiry, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "inquiry not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch inquiry", nil)
		}
		return
	}
	respond.OK(c, inquiry)
}

func (h *Handler) list(c *gin.Context) {
	filter := Filter{
		Status: c.Query("status"),
		Limit:  parseIntDefault(c.Query("limit"), 20),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	if raw := c.Query("requiresHuman"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "requiresHuman must be a boolean", nil)
			return
		}
		filter.RequiresHuman = &v
	}

	items, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list inquiries", nil)
		}
		return
	}
	respond.Page(c, items, filter.Limit, filter.Offset)
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
