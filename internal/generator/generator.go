package generator

import (
	"context"

	"csreply-backend/internal/inquiries"
)

// Generation methods recorded on responses.
const (
	MethodTemplate = "template"
	MethodLLM      = "llm"
)

// GenerationResult is the outcome of one generation attempt. OK=false means
// no response should be created; Err explains why when known.
type GenerationResult struct {
	OK         bool
	Text       string
	Confidence float64
	Method     string
	Err        error
}

// Failed builds a not-OK result.
func Failed(method string, err error) GenerationResult {
	return GenerationResult{OK: false, Method: method, Err: err}
}

// Generator drafts a reply for an analyzed inquiry.
type Generator interface {
	Generate(ctx context.Context, inquiry inquiries.Inquiry) GenerationResult
}
