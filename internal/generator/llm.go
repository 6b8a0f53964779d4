package generator

import (
	"context"
	"fmt"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/llm"
	"csreply-backend/internal/validation"
)

// LLMGenerator drafts replies with a chat-completion model.
type LLMGenerator struct {
	Client    llm.Client
	MaxLength int
}

// Generate asks the model for a reply. A missing model confidence is recorded
// as validation.DefaultBaseConfidence.
func (g *LLMGenerator) Generate(ctx context.Context, inquiry inquiries.Inquiry) GenerationResult {
	if g.Client == nil {
		return Failed(MethodLLM, llm.ErrNotConfigured)
	}
	messages := llm.BuildReplyMessages(llm.ReplyInput{
		Category:     inquiry.ClassifiedCategory,
		Keywords:     inquiry.Keywords,
		CustomerName: inquiry.CustomerName,
		OrderNumber:  inquiry.OrderNumber,
		ProductName:  inquiry.ProductName,
		Text:         inquiry.Text,
		MaxLength:    g.MaxLength,
	})
	raw, err := g.Client.Complete(ctx, messages)
	if err != nil {
		return Failed(MethodLLM, fmt.Errorf("llm complete: %w", err))
	}
	reply, err := llm.ParseReply(raw)
	if err != nil {
		return Failed(MethodLLM, err)
	}
	confidence := validation.DefaultBaseConfidence
	if reply.Confidence != nil {
		confidence = *reply.Confidence
	}
	return GenerationResult{OK: true, Text: reply.Text, Confidence: confidence, Method: MethodLLM}
}

var _ Generator = (*LLMGenerator)(nil)
