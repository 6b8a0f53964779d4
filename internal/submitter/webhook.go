package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/shared/util"
)

const defaultWebhookTimeout = 15 * time.Second

// WebhookSubmitter POSTs approved responses as JSON to a configured endpoint.
type WebhookSubmitter struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewWebhookSubmitter constructs a WebhookSubmitter. token, when set, is sent
// as a bearer credential.
func NewWebhookSubmitter(url, token string) *WebhookSubmitter {
	return &WebhookSubmitter{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

type webhookPayload struct {
	ResponseID  string `json:"responseId"`
	InquiryID   string `json:"inquiryId"`
	Source      string `json:"source"`
	ExternalID  string `json:"externalId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Text        string `json:"text"`
	ApprovedBy  string `json:"approvedBy,omitempty"`
}

// Submit sends the response. Any non-2xx status is a failed attempt; the
// response body excerpt is returned as the error text.
func (s *WebhookSubmitter) Submit(ctx context.Context, resp responses.Response, inquiry inquiries.Inquiry) Result {
	body, err := json.Marshal(webhookPayload{
		ResponseID:  resp.ID,
		InquiryID:   inquiry.ID,
		Source:      inquiry.Source,
		ExternalID:  inquiry.ExternalID,
		OrderNumber: inquiry.OrderNumber,
		Text:        resp.ResponseText,
		ApprovedBy:  resp.ApprovedBy,
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("encode submission: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("build submission request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", resp.ID)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	res, err := s.httpClient.Do(req)
	if err != nil {
		return Result{Error: util.SanitizeMessage(err.Error())}
	}
	defer res.Body.Close()
	excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 2048))

	telemetry.Info("submission.webhook", map[string]any{
		"response_id": resp.ID,
		"status":      res.StatusCode,
		"latency_ms":  time.Since(start).Milliseconds(),
	})
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := fmt.Sprintf("webhook returned %d", res.StatusCode)
		if text := strings.TrimSpace(string(excerpt)); text != "" {
			msg += ": " + text
		}
		return Result{Error: util.SanitizeMessage(msg)}
	}
	return Result{Success: true}
}

var _ Submitter = (*WebhookSubmitter)(nil)
