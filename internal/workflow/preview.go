package workflow

import (
	"strings"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/triage"
	"csreply-backend/internal/validation"
)

// PreviewInput is raw text to dry-run through the analyzer and, when
// ResponseText is set, the validator.
type PreviewInput struct {
	Text         string   `json:"text"`
	ResponseText string   `json:"responseText"`
	Confidence   *float64 `json:"confidence"`
}

// Preview is the dry-run outcome. Nothing is persisted.
type Preview struct {
	Analysis   triage.Result      `json:"analysis"`
	Validation *validation.Result `json:"validation,omitempty"`
	Rules      string             `json:"rules"`
}

// PreviewTriage analyzes and optionally validates text against the current
// rules without touching the store.
func (s *Service) PreviewTriage(in PreviewInput) (Preview, error) {
	snap := s.snapshot()
	res, err := triage.NewAnalyzer(snap).Analyze(in.Text)
	if err != nil {
		return Preview{}, err
	}
	out := Preview{Analysis: res, Rules: snap.Fingerprint()}
	if strings.TrimSpace(in.ResponseText) == "" {
		return out, nil
	}

	inq := inquiries.Inquiry{Text: in.Text}
	inq.ApplyAnalysis(res, s.now())
	confidence := validation.DefaultBaseConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	resp := responses.Response{ResponseText: in.ResponseText, GenerationConfidence: confidence}
	result := validation.NewValidator(snap).WithClock(s.now).Validate(resp, inq)
	out.Validation = &result
	return out, nil
}
