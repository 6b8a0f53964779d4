package llm

import (
	"context"
	"errors"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client abstracts chat-completion providers.
type Client interface {
	// Complete returns the raw text of the first choice.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM provider not configured")

// PlaceholderClient stands in when LLM_PROVIDER is unset; generation then
// falls through to the template generator.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, messages []Message) (string, error) {
	_ = ctx
	_ = messages
	return "", ErrNotConfigured
}
