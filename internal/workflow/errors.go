package workflow

import (
	"context"
	"errors"
	"strings"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/llm"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/shared/lock"
	"csreply-backend/internal/triage"
)

var (
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrRequiresHuman        = errors.New("inquiry requires human handling")
	ErrActiveResponseExists = errors.New("inquiry already has an active response")
	ErrAlreadySubmitted     = errors.New("inquiry already has a submitted response")
	ErrInvalidInput         = errors.New("invalid input")
	ErrGeneratorMissing     = errors.New("generator not configured")
	ErrReportNotFound       = errors.New("batch report not found")
	ErrReportsNotConfigured = errors.New("batch report archive not configured")

	// ErrInquiryMissing means a response references an inquiry that no longer
	// exists. Validation cannot run without it.
	ErrInquiryMissing = errors.New("inquiry for response not found")
)

const (
	ErrorCodeAnalysis          = "ANALYSIS_ERROR"
	ErrorCodeGeneration        = "GENERATION_ERROR"
	ErrorCodeValidationContext = "VALIDATION_CONTEXT_ERROR"
	ErrorCodeSubmission        = "SUBMISSION_ERROR"
	ErrorCodeConflict          = "CONFLICT"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// classifyFailure maps a pipeline error to an error code and whether retrying
// the same inquiry later can succeed.
func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	switch {
	case errors.Is(err, triage.ErrEmptyText):
		return ErrorCodeAnalysis, false
	case errors.Is(err, ErrInquiryMissing):
		return ErrorCodeValidationContext, false
	case errors.Is(err, ErrAlreadySubmitted):
		return ErrorCodeConflict, false
	case errors.Is(err, inquiries.ErrConflict),
		errors.Is(err, responses.ErrConflict),
		errors.Is(err, ErrActiveResponseExists),
		errors.Is(err, lock.ErrNotAcquired):
		return ErrorCodeConflict, true
	case errors.Is(err, context.Canceled):
		return ErrorCodeInternal, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.HasPrefix(msg, "analyze"):
		return ErrorCodeAnalysis, llm.IsTransient(err)
	case strings.HasPrefix(msg, "generate"):
		return ErrorCodeGeneration, llm.IsTransient(err)
	case strings.HasPrefix(msg, "submit"):
		return ErrorCodeSubmission, true
	}
	return ErrorCodeInternal, llm.IsTransient(err)
}
