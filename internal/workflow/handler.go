package workflow

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/shared/lock"
	"csreply-backend/internal/shared/server/middleware"
	"csreply-backend/internal/shared/server/respond"
	"csreply-backend/internal/triage"
)

// Handler exposes the pipeline and the approval actions over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches workflow routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/inquiries/:id/analyze", h.analyze)
	rg.POST("/inquiries/:id/process", h.process)
	rg.POST("/inquiries/:id/responses", h.generate)

	rg.GET("/responses", h.listResponses)
	rg.GET("/responses/:id", h.getResponse)
	rg.GET("/responses/:id/events", h.listEvents)
	rg.PUT("/responses/:id", h.edit)
	rg.POST("/responses/:id/validate", h.validate)
	rg.POST("/responses/:id/approve", h.approve)
	rg.POST("/responses/:id/reject", h.reject)
	rg.POST("/responses/:id/submit", h.submit)

	rg.POST("/batch/run", h.runBatch)
	rg.GET("/batch/runs/:id", h.getBatchRun)

	rg.POST("/triage/preview", h.preview)
}

func (h *Handler) ctx(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

// writeError maps workflow and store errors to HTTP responses.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, inquiries.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "inquiry not found", nil)
	case errors.Is(err, responses.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "response not found", nil)
	case errors.Is(err, ErrReportNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "batch report not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, ErrRequiresHuman):
		respond.Error(c, http.StatusConflict, "requires_human", "inquiry requires human handling", nil)
	case errors.Is(err, ErrActiveResponseExists):
		respond.Error(c, http.StatusConflict, "active_response_exists", "inquiry already has an active response", nil)
	case errors.Is(err, ErrAlreadySubmitted):
		respond.Error(c, http.StatusConflict, "already_submitted", "inquiry already has a submitted response", nil)
	case errors.Is(err, inquiries.ErrConflict), errors.Is(err, responses.ErrConflict), errors.Is(err, lock.ErrNotAcquired):
		respond.Error(c, http.StatusConflict, "conflict", "resource was modified concurrently, retry", nil)
	case errors.Is(err, ErrInquiryMissing):
		respond.Error(c, http.StatusUnprocessableEntity, "inquiry_missing", err.Error(), nil)
	case errors.Is(err, ErrReportsNotConfigured), errors.Is(err, ErrGeneratorMissing):
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func (h *Handler) analyze(c *gin.Context) {
	id := c.Param("id")
	c.Set("inquiryId", id)
	inq, err := h.Svc.AnalyzeInquiry(h.ctx(c), id)
	if err != nil {
		writeError(c, err, "failed to analyze inquiry")
		return
	}
	c.Set("statusTransition", inquiries.StatusPending+"->"+inq.Status)
	respond.OK(c, inq)
}

func (h *Handler) process(c *gin.Context) {
	id := c.Param("id")
	c.Set("inquiryId", id)
	out, err := h.Svc.ProcessInquiry(h.ctx(c), id)
	if err != nil {
		writeError(c, err, "failed to process inquiry")
		return
	}
	c.Set("responseId", out.ResponseID)
	respond.OK(c, out)
}

func (h *Handler) generate(c *gin.Context) {
	id := c.Param("id")
	c.Set("inquiryId", id)
	resp, created, err := h.Svc.GenerateResponse(h.ctx(c), id)
	if err != nil {
		writeError(c, err, "failed to generate response")
		return
	}
	if !created {
		respond.Error(c, http.StatusUnprocessableEntity, "generation_failed", "no response could be generated for this inquiry", nil)
		return
	}
	c.Set("responseId", resp.ID)
	c.Set("statusTransition", "->"+resp.Status)
	respond.Created(c, resp)
}

func (h *Handler) listResponses(c *gin.Context) {
	filter := responses.Filter{
		Status:    c.Query("status"),
		InquiryID: c.Query("inquiryId"),
		Limit:     parseIntDefault(c.Query("limit"), 20),
		Offset:    parseIntDefault(c.Query("offset"), 0),
	}
	items, err := h.Svc.ListResponses(h.ctx(c), filter)
	if err != nil {
		writeError(c, err, "failed to list responses")
		return
	}
	respond.Page(c, items, filter.Limit, filter.Offset)
}

func (h *Handler) getResponse(c *gin.Context) {
	c.Set("responseId", c.Param("id"))
	resp, err := h.Svc.GetResponse(h.ctx(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch response")
		return
	}
	respond.OK(c, resp)
}

func (h *Handler) listEvents(c *gin.Context) {
	c.Set("responseId", c.Param("id"))
	events, err := h.Svc.ListEvents(h.ctx(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to list response events")
		return
	}
	respond.Items(c, events)
}

type editRequest struct {
	ResponseText string `json:"responseText"`
}

func (h *Handler) edit(c *gin.Context) {
	id := c.Param("id")
	c.Set("responseId", id)
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resp, result, err := h.Svc.Edit(h.ctx(c), id, req.ResponseText, middleware.OperatorIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to edit response")
		return
	}
	c.Set("statusTransition", "->"+resp.Status)
	respond.OK(c, gin.H{"response": resp, "validation": result})
}

func (h *Handler) validate(c *gin.Context) {
	id := c.Param("id")
	c.Set("responseId", id)
	resp, result, err := h.Svc.ValidateResponse(h.ctx(c), id)
	if err != nil {
		writeError(c, err, "failed to validate response")
		return
	}
	c.Set("statusTransition", "->"+resp.Status)
	respond.OK(c, gin.H{"response": resp, "validation": result})
}

func (h *Handler) approve(c *gin.Context) {
	id := c.Param("id")
	c.Set("responseId", id)
	resp, err := h.Svc.Approve(h.ctx(c), id, middleware.OperatorIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to approve response")
		return
	}
	c.Set("statusTransition", responses.StatusPendingApproval+"->"+resp.Status)
	respond.OK(c, resp)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(c *gin.Context) {
	id := c.Param("id")
	c.Set("responseId", id)
	var req rejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	resp, err := h.Svc.Reject(h.ctx(c), id, middleware.OperatorIDFromContext(c), req.Reason)
	if err != nil {
		writeError(c, err, "failed to reject response")
		return
	}
	c.Set("statusTransition", "->"+resp.Status)
	respond.OK(c, resp)
}

func (h *Handler) submit(c *gin.Context) {
	id := c.Param("id")
	c.Set("responseId", id)
	resp, err := h.Svc.Submit(h.ctx(c), id)
	if err != nil {
		writeError(c, err, "failed to submit response")
		return
	}
	c.Set("statusTransition", responses.StatusApproved+"->"+resp.Status)
	respond.OK(c, resp)
}

type batchRequest struct {
	Limit int `json:"limit"`
}

func (h *Handler) runBatch(c *gin.Context) {
	var req batchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	if req.Limit < 0 || req.Limit > 500 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be between 0 and 500", nil)
		return
	}
	report, err := h.Svc.RunBatch(h.ctx(c), req.Limit)
	if err != nil {
		writeError(c, err, "failed to run batch")
		return
	}
	respond.OK(c, report)
}

func (h *Handler) getBatchRun(c *gin.Context) {
	report, err := h.Svc.GetBatchReport(h.ctx(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to load batch report")
		return
	}
	respond.OK(c, report)
}

func (h *Handler) preview(c *gin.Context) {
	var req PreviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	out, err := h.Svc.PreviewTriage(req)
	if err != nil {
		if errors.Is(err, triage.ErrEmptyText) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", nil)
			return
		}
		writeError(c, err, "failed to preview inquiry")
		return
	}
	respond.OK(c, out)
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
