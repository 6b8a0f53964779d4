package submitter

import (
	"context"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/shared/telemetry"
)

// Result is the outcome of one submission attempt.
type Result struct {
	Success bool
	Error   string
}

// Submitter delivers an approved response to the channel the inquiry came from.
type Submitter interface {
	Submit(ctx context.Context, resp responses.Response, inquiry inquiries.Inquiry) Result
}

// LogSubmitter records submissions without sending them anywhere. It is the
// default when no SUBMIT_URL is configured.
type LogSubmitter struct{}

func (LogSubmitter) Submit(ctx context.Context, resp responses.Response, inquiry inquiries.Inquiry) Result {
	if err := ctx.Err(); err != nil {
		return Result{Error: err.Error()}
	}
	telemetry.Info("submission.logged", map[string]any{
		"response_id": resp.ID,
		"inquiry_id":  inquiry.ID,
		"source":      inquiry.Source,
		"external_id": inquiry.ExternalID,
		"chars":       len([]rune(resp.ResponseText)),
	})
	return Result{Success: true}
}

var _ Submitter = LogSubmitter{}
