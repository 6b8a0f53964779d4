package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/rules"
	"csreply-backend/internal/shared/metrics"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/shared/util"
	"csreply-backend/internal/validation"
)

// ValidateResponse runs the validator over a draft or pending response and
// stores the outcome. A passing response moves to pending_approval, a failing
// one stays in (or returns to) draft.
func (s *Service) ValidateResponse(ctx context.Context, responseID string) (responses.Response, validation.Result, error) {
	return s.validate(ctx, responseID, s.snapshot())
}

func (s *Service) validate(ctx context.Context, responseID string, snap *rules.Rules) (responses.Response, validation.Result, error) {
	unlock, err := s.lock(ctx, "response", responseID)
	if err != nil {
		return responses.Response{}, validation.Result{}, err
	}
	defer unlock()

	resp, err := s.Responses.GetByID(ctx, responseID)
	if err != nil {
		return responses.Response{}, validation.Result{}, err
	}
	if resp.Status != responses.StatusDraft && resp.Status != responses.StatusPendingApproval {
		return resp, validation.Result{}, fmt.Errorf("%w: response is %s", ErrInvalidTransition, resp.Status)
	}
	inq, err := s.inquiryFor(ctx, resp)
	if err != nil {
		return resp, validation.Result{}, err
	}

	from := resp.Status
	result := s.applyValidation(&resp, inq, snap)
	note := fmt.Sprintf("validation passed=%t confidence=%.2f risk=%s", result.Passed, result.Confidence, result.RiskLevel)
	updated, err := s.Responses.Update(ctx, resp, s.event(resp, from, ActorSystem, note))
	if err != nil {
		return resp, result, err
	}
	metrics.IncResponsesValidated()
	logResponseStatus(ctx, updated, from, ActorSystem)
	return updated, result, nil
}

// applyValidation writes the validator outcome onto resp and picks its status.
func (s *Service) applyValidation(resp *responses.Response, inq inquiries.Inquiry, snap *rules.Rules) validation.Result {
	result := validation.NewValidator(snap).WithClock(s.now).Validate(*resp, inq)
	validatedAt := s.now()
	resp.ConfidenceScore = result.Confidence
	resp.RiskLevel = result.RiskLevel
	resp.ValidationPassed = result.Passed
	resp.FormatCheckPassed = result.Format.Passed
	resp.ContentCheckPassed = result.Content.Passed
	resp.ValidationIssues = result.Issues
	resp.ValidatedAt = &validatedAt
	if result.Passed {
		resp.Status = responses.StatusPendingApproval
	} else {
		resp.Status = responses.StatusDraft
	}
	return result
}

func (s *Service) inquiryFor(ctx context.Context, resp responses.Response) (inquiries.Inquiry, error) {
	inq, err := s.Inquiries.GetByID(ctx, resp.InquiryID)
	if errors.Is(err, inquiries.ErrNotFound) {
		return inquiries.Inquiry{}, fmt.Errorf("%w: response %s references inquiry %s", ErrInquiryMissing, resp.ID, resp.InquiryID)
	}
	return inq, err
}

// AutoApprove approves a pending response without an operator when the stored
// validation outcome allows it. approved=false with a nil error means the
// response must wait for a human.
func (s *Service) AutoApprove(ctx context.Context, responseID string) (responses.Response, bool, error) {
	return s.autoApprove(ctx, responseID, s.snapshot())
}

func (s *Service) autoApprove(ctx context.Context, responseID string, snap *rules.Rules) (responses.Response, bool, error) {
	unlock, err := s.lock(ctx, "response", responseID)
	if err != nil {
		return responses.Response{}, false, err
	}
	defer unlock()

	resp, err := s.Responses.GetByID(ctx, responseID)
	if err != nil {
		return responses.Response{}, false, err
	}
	if resp.Status != responses.StatusPendingApproval {
		return resp, false, fmt.Errorf("%w: response is %s", ErrInvalidTransition, resp.Status)
	}
	inq, err := s.inquiryFor(ctx, resp)
	if err != nil {
		return resp, false, err
	}
	if inq.RequiresHuman {
		return resp, false, nil
	}
	if !validation.CanAutoApprove(resp.ValidationPassed, resp.RiskLevel, resp.ConfidenceScore, snap.Thresholds) {
		return resp, false, nil
	}

	from := resp.Status
	approvedAt := s.now()
	resp.Status = responses.StatusApproved
	resp.ApprovedBy = responses.ApproverSystem
	resp.ApprovedAt = &approvedAt
	resp.AutoApproved = true
	updated, err := s.Responses.Update(ctx, resp, s.event(resp, from, ActorSystem, "auto-approved"))
	if err != nil {
		return resp, false, err
	}
	metrics.IncResponsesAutoApproved()
	logResponseStatus(ctx, updated, from, ActorSystem)
	return updated, true, nil
}

// Approve records an operator's approval of a pending response.
func (s *Service) Approve(ctx context.Context, responseID, operator string) (responses.Response, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return responses.Response{}, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}
	return s.mutate(ctx, responseID, operator, func(resp *responses.Response) (string, error) {
		if resp.Status != responses.StatusPendingApproval {
			return "", fmt.Errorf("%w: response is %s", ErrInvalidTransition, resp.Status)
		}
		approvedAt := s.now()
		resp.Status = responses.StatusApproved
		resp.ApprovedBy = operator
		resp.ApprovedAt = &approvedAt
		resp.AutoApproved = false
		return "approved", nil
	})
}

// Reject closes a non-terminal response. The inquiry may get a new draft
// afterwards; the rejected response itself is never reopened.
func (s *Service) Reject(ctx context.Context, responseID, operator, reason string) (responses.Response, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return responses.Response{}, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}
	reason = util.SanitizeMessage(reason)
	return s.mutate(ctx, responseID, operator, func(resp *responses.Response) (string, error) {
		if resp.Terminal() {
			return "", fmt.Errorf("%w: response is %s", ErrInvalidTransition, resp.Status)
		}
		rejectedAt := s.now()
		resp.Status = responses.StatusRejected
		resp.RejectedBy = operator
		resp.RejectionReason = reason
		resp.RejectedAt = &rejectedAt
		return reason, nil
	})
}

// mutate applies fn to the locked response and stores it with one event.
func (s *Service) mutate(ctx context.Context, responseID, actor string, fn func(resp *responses.Response) (string, error)) (responses.Response, error) {
	unlock, err := s.lock(ctx, "response", responseID)
	if err != nil {
		return responses.Response{}, err
	}
	defer unlock()

	resp, err := s.Responses.GetByID(ctx, responseID)
	if err != nil {
		return responses.Response{}, err
	}
	from := resp.Status
	note, err := fn(&resp)
	if err != nil {
		return resp, err
	}
	updated, err := s.Responses.Update(ctx, resp, s.event(resp, from, actor, note))
	if err != nil {
		return resp, err
	}
	logResponseStatus(ctx, updated, from, actor)
	return updated, nil
}

// Edit replaces the response text and re-validates it. The first edit keeps
// the generated text in OriginalResponse.
func (s *Service) Edit(ctx context.Context, responseID, text, operator string) (responses.Response, validation.Result, error) {
	text = strings.TrimSpace(text)
	operator = strings.TrimSpace(operator)
	if text == "" {
		return responses.Response{}, validation.Result{}, fmt.Errorf("%w: response text is required", ErrInvalidInput)
	}
	if operator == "" {
		return responses.Response{}, validation.Result{}, fmt.Errorf("%w: operator is required", ErrInvalidInput)
	}
	snap := s.snapshot()

	unlock, err := s.lock(ctx, "response", responseID)
	if err != nil {
		return responses.Response{}, validation.Result{}, err
	}
	defer unlock()

	resp, err := s.Responses.GetByID(ctx, responseID)
	if err != nil {
		return responses.Response{}, validation.Result{}, err
	}
	if resp.Status != responses.StatusDraft && resp.Status != responses.StatusPendingApproval {
		return resp, validation.Result{}, fmt.Errorf("%w: response is %s", ErrInvalidTransition, resp.Status)
	}
	inq, err := s.inquiryFor(ctx, resp)
	if err != nil {
		return resp, validation.Result{}, err
	}

	from := resp.Status
	if resp.OriginalResponse == "" {
		resp.OriginalResponse = resp.ResponseText
	}
	resp.ResponseText = text
	resp.EditCount++
	result := s.applyValidation(&resp, inq, snap)
	note := fmt.Sprintf("edit #%d, validation passed=%t confidence=%.2f", resp.EditCount, result.Passed, result.Confidence)
	updated, err := s.Responses.Update(ctx, resp, s.event(resp, from, operator, note))
	if err != nil {
		return resp, result, err
	}
	metrics.IncResponsesValidated()
	logResponseStatus(ctx, updated, from, operator)
	return updated, result, nil
}

// Submit delivers an approved response. A failed delivery is recorded on the
// response, which stays approved so it can be retried; only store and lock
// errors are returned.
func (s *Service) Submit(ctx context.Context, responseID string) (responses.Response, error) {
	unlock, err := s.lock(ctx, "response", responseID)
	if err != nil {
		return responses.Response{}, err
	}
	defer unlock()

	resp, err := s.Responses.GetByID(ctx, responseID)
	if err != nil {
		return responses.Response{}, err
	}
	if resp.Status != responses.StatusApproved {
		return resp, fmt.Errorf("%w: response is %s", ErrInvalidTransition, resp.Status)
	}
	inq, err := s.inquiryFor(ctx, resp)
	if err != nil {
		return resp, err
	}

	result := s.submitter().Submit(ctx, resp, inq)
	from := resp.Status
	resp.SubmissionAttempts++
	note := "submitted"
	if result.Success {
		submittedAt := s.now()
		resp.Status = responses.StatusSubmitted
		resp.SubmissionStatus = responses.SubmissionSuccess
		resp.SubmissionError = ""
		resp.SubmittedAt = &submittedAt
	} else {
		resp.SubmissionStatus = responses.SubmissionFailed
		resp.SubmissionError = util.SanitizeMessage(result.Error)
		if resp.SubmissionError == "" {
			resp.SubmissionError = "submission failed"
		}
		note = "submission failed: " + resp.SubmissionError
	}

	// The delivery already happened; a cancelled caller must not lose its record.
	writeCtx := context.WithoutCancel(ctx)
	updated, err := s.Responses.Update(writeCtx, resp, s.event(resp, from, ActorSystem, note))
	if err != nil {
		telemetry.Error("response.submission_record_failed", map[string]any{
			"response_id": resp.ID,
			"success":     result.Success,
			"error":       util.SanitizeMessage(err.Error()),
		})
		return resp, err
	}
	if result.Success {
		metrics.IncResponsesSubmitted()
	} else {
		metrics.IncSubmissionFailed()
		telemetry.Warn("response.submission_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"response_id": updated.ID,
			"inquiry_id":  updated.InquiryID,
			"attempts":    updated.SubmissionAttempts,
			"error":       updated.SubmissionError,
		})
	}
	logResponseStatus(ctx, updated, from, ActorSystem)
	return updated, nil
}
