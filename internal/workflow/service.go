package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"csreply-backend/internal/generator"
	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/rules"
	"csreply-backend/internal/shared/lock"
	"csreply-backend/internal/shared/metrics"
	"csreply-backend/internal/shared/storage/object"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/shared/util"
	"csreply-backend/internal/submitter"
	"csreply-backend/internal/triage"
)

// ActorSystem is recorded on events produced by the pipeline itself.
const ActorSystem = responses.ApproverSystem

// Service runs inquiries through analysis, generation, validation, approval
// and submission. Every mutation of one inquiry or response happens under that
// entity's lock.
type Service struct {
	Inquiries inquiries.Repo
	Responses responses.Repo
	Rules     rules.Provider
	Generator generator.Generator
	// Submitter defaults to submitter.LogSubmitter.
	Submitter submitter.Submitter
	// Locker defaults to an in-process locker.
	Locker lock.Locker
	// Store is optional; batch reports are archived there when set.
	Store object.ObjectStore

	AutoSubmit  bool
	BatchSize   int
	Concurrency int
	Now         func() time.Time
	// StaleAfter lets RunBatch put inquiries stuck in processing longer than
	// this back to pending. Zero disables it.
	StaleAfter time.Duration

	lockerOnce    sync.Once
	defaultLocker lock.Locker
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) snapshot() *rules.Rules {
	if s.Rules == nil {
		return rules.Default()
	}
	if r := s.Rules.Current(); r != nil {
		return r
	}
	return rules.Default()
}

func (s *Service) lock(ctx context.Context, kind, id string) (func(), error) {
	locker := s.Locker
	if locker == nil {
		s.lockerOnce.Do(func() { s.defaultLocker = lock.NewMemoryLocker() })
		locker = s.defaultLocker
	}
	return locker.Lock(ctx, kind+":"+id)
}

func (s *Service) submitter() submitter.Submitter {
	if s.Submitter == nil {
		return submitter.LogSubmitter{}
	}
	return s.Submitter
}

func (s *Service) event(resp responses.Response, from, actor, note string) responses.Event {
	return responses.Event{
		ID:         uuid.NewString(),
		ResponseID: resp.ID,
		InquiryID:  resp.InquiryID,
		FromStatus: from,
		ToStatus:   resp.Status,
		Actor:      actor,
		Note:       note,
		CreatedAt:  s.now(),
	}
}

func transition(from, to string) string {
	if from == "" {
		return "->" + to
	}
	return from + "->" + to
}

func logInquiryStatus(ctx context.Context, inq inquiries.Inquiry, from string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"inquiry_id":        inq.ID,
		"status":            inq.Status,
		"status_transition": transition(from, inq.Status),
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("inquiry.status", fields)
}

func logResponseStatus(ctx context.Context, resp responses.Response, from, actor string) {
	telemetry.Info("response.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"inquiry_id":        resp.InquiryID,
		"response_id":       resp.ID,
		"status":            resp.Status,
		"status_transition": transition(from, resp.Status),
		"actor":             actor,
		"confidence":        resp.ConfidenceScore,
		"risk_level":        resp.RiskLevel,
	})
}

// AnalyzeInquiry triages a pending inquiry. Analysis failures are recorded on
// the inquiry (status failed) and are not returned as errors.
func (s *Service) AnalyzeInquiry(ctx context.Context, id string) (inquiries.Inquiry, error) {
	return s.analyze(ctx, id, s.snapshot())
}

func (s *Service) analyze(ctx context.Context, id string, snap *rules.Rules) (inquiries.Inquiry, error) {
	unlock, err := s.lock(ctx, "inquiry", id)
	if err != nil {
		return inquiries.Inquiry{}, err
	}
	defer unlock()

	inq, err := s.Inquiries.GetByID(ctx, id)
	if err != nil {
		return inquiries.Inquiry{}, err
	}
	if inq.Status != inquiries.StatusPending {
		return inq, fmt.Errorf("%w: inquiry is %s", ErrInvalidTransition, inq.Status)
	}

	inq.Status = inquiries.StatusProcessing
	inq, err = s.Inquiries.Update(ctx, inq)
	if err != nil {
		return inquiries.Inquiry{}, err
	}
	logInquiryStatus(ctx, inq, inquiries.StatusPending, nil)

	res, analyzeErr := triage.NewAnalyzer(snap).Analyze(inq.Text)
	if analyzeErr != nil {
		return s.failInquiry(ctx, inq, analyzeErr)
	}

	inq.ApplyAnalysis(res, s.now())
	updated, err := s.Inquiries.Update(ctx, inq)
	if err != nil {
		return s.failInquiry(ctx, inq, fmt.Errorf("store analysis: %w", err))
	}
	metrics.IncInquiriesAnalyzed()
	if updated.RequiresHuman {
		metrics.IncInquiriesRequiresHuman()
	}
	logInquiryStatus(ctx, updated, inquiries.StatusProcessing, map[string]any{
		"category":       updated.ClassifiedCategory,
		"confidence":     updated.ConfidenceScore,
		"risk_level":     updated.RiskLevel,
		"requires_human": updated.RequiresHuman,
		"reasons":        res.Reasons,
		"rules":          snap.Fingerprint(),
	})
	return updated, nil
}

// failInquiry marks a processing inquiry failed. The write uses a detached
// context so a cancelled request does not leave the inquiry in processing.
func (s *Service) failInquiry(ctx context.Context, inq inquiries.Inquiry, cause error) (inquiries.Inquiry, error) {
	code, _ := classifyFailure(cause)
	inq.MarkFailed(code, util.SanitizeMessage(cause.Error()))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	current, err := s.Inquiries.GetByID(writeCtx, inq.ID)
	if err == nil {
		current.MarkFailed(inq.ErrorCode, inq.ErrorMessage)
		inq, err = s.Inquiries.Update(writeCtx, current)
	}
	if err != nil {
		telemetry.Error("inquiry.fail_update", map[string]any{
			"inquiry_id": inq.ID,
			"error":      util.SanitizeMessage(err.Error()),
			"cause":      inq.ErrorMessage,
		})
		return inq, fmt.Errorf("mark inquiry failed: %w", err)
	}
	metrics.IncInquiriesFailed()
	logInquiryStatus(ctx, inq, inquiries.StatusProcessing, map[string]any{
		"error_code": inq.ErrorCode,
	})
	return inq, nil
}

// GenerateResponse drafts a response for a processed inquiry. created=false
// with a nil error means the generator produced nothing; the inquiry is left
// for manual follow-up.
func (s *Service) GenerateResponse(ctx context.Context, inquiryID string) (responses.Response, bool, error) {
	unlock, err := s.lock(ctx, "inquiry", inquiryID)
	if err != nil {
		return responses.Response{}, false, err
	}
	defer unlock()

	inq, err := s.Inquiries.GetByID(ctx, inquiryID)
	if err != nil {
		return responses.Response{}, false, err
	}
	if inq.RequiresHuman {
		return responses.Response{}, false, ErrRequiresHuman
	}
	if inq.Status != inquiries.StatusProcessed {
		return responses.Response{}, false, fmt.Errorf("%w: inquiry is %s", ErrInvalidTransition, inq.Status)
	}
	if _, err := s.Responses.GetActiveByInquiry(ctx, inq.ID); err == nil {
		return responses.Response{}, false, ErrActiveResponseExists
	} else if !errors.Is(err, responses.ErrNotFound) {
		return responses.Response{}, false, err
	}
	// A submitted response has reached the customer; the inquiry is answered.
	done, err := s.Responses.List(ctx, responses.Filter{InquiryID: inq.ID, Status: responses.StatusSubmitted, Limit: 1})
	if err != nil {
		return responses.Response{}, false, err
	}
	if len(done) > 0 {
		return responses.Response{}, false, ErrAlreadySubmitted
	}
	if s.Generator == nil {
		return responses.Response{}, false, ErrGeneratorMissing
	}

	gen := s.Generator.Generate(ctx, inq)
	if !gen.OK || strings.TrimSpace(gen.Text) == "" {
		fields := map[string]any{
			"request_id": requestIDFromContext(ctx),
			"inquiry_id": inq.ID,
			"method":     gen.Method,
		}
		if gen.Err != nil {
			fields["error"] = util.SanitizeMessage(gen.Err.Error())
		}
		telemetry.Warn("response.generation_skipped", fields)
		return responses.Response{}, false, nil
	}

	confidence := math.Max(0, math.Min(100, gen.Confidence))
	now := s.now()
	resp := responses.Response{
		ID:                   uuid.NewString(),
		InquiryID:            inq.ID,
		ResponseText:         strings.TrimSpace(gen.Text),
		GenerationMethod:     gen.Method,
		GenerationConfidence: confidence,
		ConfidenceScore:      confidence,
		ValidationIssues:     []string{},
		Status:               responses.StatusDraft,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.Responses.Create(ctx, resp, s.event(resp, "", ActorSystem, "generated by "+gen.Method)); err != nil {
		if errors.Is(err, responses.ErrActiveExists) {
			return responses.Response{}, false, ErrActiveResponseExists
		}
		return responses.Response{}, false, err
	}
	metrics.IncResponsesGenerated()
	logResponseStatus(ctx, resp, "", ActorSystem)
	return resp, true, nil
}

// GetResponse returns one response.
func (s *Service) GetResponse(ctx context.Context, id string) (responses.Response, error) {
	if strings.TrimSpace(id) == "" {
		return responses.Response{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.Responses.GetByID(ctx, id)
}

// ListResponses returns responses newest first.
func (s *Service) ListResponses(ctx context.Context, filter responses.Filter) ([]responses.Response, error) {
	switch filter.Status {
	case "", responses.StatusDraft, responses.StatusPendingApproval, responses.StatusApproved,
		responses.StatusRejected, responses.StatusSubmitted:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.Responses.List(ctx, filter)
}

// ListEvents returns a response's audit trail.
func (s *Service) ListEvents(ctx context.Context, responseID string) ([]responses.Event, error) {
	return s.Responses.ListEvents(ctx, responseID)
}
