package workerproc

import (
	"context"
	"errors"
	"strings"

	"csreply-backend/internal/queue"
	"csreply-backend/internal/workflow"
)

// Processor runs the pipeline for one inquiry.
type Processor interface {
	ProcessInquiry(ctx context.Context, inquiryID string) (workflow.Outcome, error)
}

// ErrMissingInquiryID indicates a message without an inquiry id.
type ErrMissingInquiryID struct {
	RequestID string
}

func (e ErrMissingInquiryID) Error() string { return "missing inquiry id" }

// ErrProcess indicates the pipeline returned a hard error for a well-formed message.
type ErrProcess struct {
	InquiryID string
	RequestID string
	Retryable bool
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process inquiry"
	}
	return "process inquiry: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// HandleMessage runs the pipeline for the inquiry a message names. Stage
// failures the pipeline records on the inquiry or response come back on the
// Outcome with a nil error.
func HandleMessage(ctx context.Context, processor Processor, msg queue.Message) (workflow.Outcome, error) {
	if processor == nil {
		return workflow.Outcome{}, errors.New("workflow service not configured")
	}
	inquiryID := strings.TrimSpace(msg.InquiryID)
	if inquiryID == "" {
		return workflow.Outcome{}, ErrMissingInquiryID{RequestID: msg.RequestID}
	}

	ctx = workflow.WithRequestID(ctx, msg.RequestID)
	out, err := processor.ProcessInquiry(ctx, inquiryID)
	if err != nil {
		return out, ErrProcess{
			InquiryID: inquiryID,
			RequestID: msg.RequestID,
			Retryable: out.Retryable,
			Err:       err,
		}
	}
	return out, nil
}

// Fields returns the log fields identifying a message.
func Fields(msg queue.Message) map[string]any {
	fields := map[string]any{
		"inquiry_id": msg.InquiryID,
	}
	if strings.TrimSpace(msg.RequestID) != "" {
		fields["request_id"] = msg.RequestID
	}
	if msg.EnqueuedAt != "" {
		fields["enqueued_at"] = msg.EnqueuedAt
	}
	return fields
}
