package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/shared/metrics"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/shared/util"
)

// Pipeline stages reported on an Outcome.
const (
	StageAnalyze     = "analyze"
	StageGenerate    = "generate"
	StageValidate    = "validate"
	StageAutoApprove = "auto-approve"
	StageSubmit      = "submit"
)

// Outcome summarizes one inquiry's run through the pipeline.
type Outcome struct {
	InquiryID        string  `json:"inquiryId"`
	InquiryStatus    string  `json:"inquiryStatus"`
	Category         string  `json:"category,omitempty"`
	RiskLevel        string  `json:"riskLevel,omitempty"`
	Analyzed         bool    `json:"analyzed"`
	Generated        bool    `json:"generated"`
	Validated        bool    `json:"validated"`
	AutoApproved     bool    `json:"autoApproved"`
	Submitted        bool    `json:"submitted"`
	RequiresHuman    bool    `json:"requiresHuman"`
	ResponseID       string  `json:"responseId,omitempty"`
	ResponseStatus   string  `json:"responseStatus,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	ResponseRisk     string  `json:"responseRisk,omitempty"`
	SubmissionStatus string  `json:"submissionStatus,omitempty"`
	// Stage is the last stage that ran.
	Stage     string `json:"stage"`
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Failed reports whether the inquiry needs follow-up because a stage failed or
// produced nothing.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// ProcessInquiry runs one inquiry through analyze, generate, validate and
// auto-approve, then submits when AutoSubmit is on. It resumes from the
// inquiry's persisted state, so running it twice never duplicates work. One
// rules snapshot is used for every stage.
//
// Stage failures that the pipeline recovers from (analysis errors, nothing
// generated, failed submissions) are reported on the Outcome only. Returned
// errors are hard errors such as a missing inquiry or a storage failure.
func (s *Service) ProcessInquiry(ctx context.Context, id string) (Outcome, error) {
	start := time.Now()
	out, err := s.process(ctx, id)
	metrics.ObservePipelineDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		code, retryable := classifyFailure(err)
		out.ErrorCode = code
		out.Retryable = retryable
		out.Error = util.SanitizeMessage(err.Error())
		metrics.IncPipelineErrors()
		telemetry.Error("pipeline.failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"inquiry_id": id,
			"stage":      out.Stage,
			"error_code": code,
			"retryable":  retryable,
			"error":      out.Error,
		})
	}
	return out, err
}

func (s *Service) process(ctx context.Context, id string) (Outcome, error) {
	snap := s.snapshot()
	out := Outcome{InquiryID: id, Stage: StageAnalyze}

	// Whole runs are serialized per inquiry; a second run resumes from
	// whatever the first one left behind.
	unlock, err := s.lock(ctx, "pipeline", id)
	if err != nil {
		return out, fmt.Errorf("analyze: %w", err)
	}
	defer unlock()

	inq, err := s.Inquiries.GetByID(ctx, id)
	if err != nil {
		return out, fmt.Errorf("analyze: %w", err)
	}
	if inq.Status == inquiries.StatusPending {
		inq, err = s.analyze(ctx, id, snap)
		if err != nil {
			return out, fmt.Errorf("analyze: %w", err)
		}
		out.Analyzed = inq.Status == inquiries.StatusProcessed
	}
	out.InquiryStatus = inq.Status
	out.Category = inq.ClassifiedCategory
	out.RiskLevel = inq.RiskLevel
	out.RequiresHuman = inq.RequiresHuman

	switch inq.Status {
	case inquiries.StatusFailed:
		out.ErrorCode = inq.ErrorCode
		out.Error = inq.ErrorMessage
		return out, nil
	case inquiries.StatusProcessed:
	default:
		return out, fmt.Errorf("analyze: %w: inquiry is %s", ErrInvalidTransition, inq.Status)
	}
	if inq.RequiresHuman {
		return out, nil
	}

	out.Stage = StageGenerate
	resp, err := s.Responses.GetActiveByInquiry(ctx, inq.ID)
	switch {
	case errors.Is(err, responses.ErrNotFound):
		done, err := s.Responses.List(ctx, responses.Filter{InquiryID: inq.ID, Status: responses.StatusSubmitted, Limit: 1})
		if err != nil {
			return out, fmt.Errorf("generate: %w", err)
		}
		if len(done) > 0 {
			out.recordResponse(done[0])
			return out, nil
		}
		var created bool
		resp, created, err = s.GenerateResponse(ctx, inq.ID)
		if err != nil {
			return out, fmt.Errorf("generate: %w", err)
		}
		if !created {
			out.ErrorCode = ErrorCodeGeneration
			out.Error = "no response generated"
			out.RequiresHuman = true
			return out, nil
		}
		out.Generated = true
	case err != nil:
		return out, fmt.Errorf("generate: %w", err)
	}
	out.recordResponse(resp)

	if resp.Status == responses.StatusDraft {
		out.Stage = StageValidate
		resp, _, err = s.validate(ctx, resp.ID, snap)
		if err != nil {
			return out, fmt.Errorf("validate: %w", err)
		}
		out.Validated = true
		out.recordResponse(resp)
	}

	if resp.Status == responses.StatusPendingApproval {
		out.Stage = StageAutoApprove
		var approved bool
		resp, approved, err = s.autoApprove(ctx, resp.ID, snap)
		if err != nil {
			return out, fmt.Errorf("auto-approve: %w", err)
		}
		out.AutoApproved = approved
		out.recordResponse(resp)
	}

	if resp.Status == responses.StatusApproved && s.AutoSubmit {
		out.Stage = StageSubmit
		resp, err = s.Submit(ctx, resp.ID)
		if err != nil {
			return out, fmt.Errorf("submit: %w", err)
		}
		out.recordResponse(resp)
		out.Submitted = resp.Status == responses.StatusSubmitted
		if resp.SubmissionStatus == responses.SubmissionFailed {
			out.ErrorCode = ErrorCodeSubmission
			out.Error = resp.SubmissionError
			out.Retryable = true
		}
	}

	// Anything short of an approved response waits for an operator.
	if resp.Status == responses.StatusDraft || resp.Status == responses.StatusPendingApproval {
		out.RequiresHuman = true
	}
	return out, nil
}

func (o *Outcome) recordResponse(resp responses.Response) {
	o.ResponseID = resp.ID
	o.ResponseStatus = resp.Status
	o.Confidence = resp.ConfidenceScore
	o.ResponseRisk = resp.RiskLevel
	o.SubmissionStatus = resp.SubmissionStatus
}
