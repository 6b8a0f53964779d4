package inquiries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"csreply-backend/internal/queue"
	"csreply-backend/internal/shared/telemetry"
)

// DefaultSource labels inquiries submitted without a source.
const DefaultSource = "manual"

// CreateInput is what a collector supplies for a new inquiry.
type CreateInput struct {
	Source       string    `json:"source"`
	ExternalID   string    `json:"externalId"`
	CustomerName string    `json:"customerName"`
	OrderNumber  string    `json:"orderNumber"`
	ProductName  string    `json:"productName"`
	Text         string    `json:"text"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Service handles inquiry intake and lookups.
type Service struct {
	Repo Repo
	// Queue is optional; when set, new inquiries are handed to the worker.
	Queue queue.Client
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create stores a pending inquiry. A repeated (source, external id) pair
// returns the stored inquiry and created=false.
func (s *Service) Create(ctx context.Context, in CreateInput, requestID string) (Inquiry, bool, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.Source = strings.TrimSpace(in.Source)
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.Text == "" {
		return Inquiry{}, false, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if in.Source == "" {
		in.Source = DefaultSource
	}

	if in.ExternalID != "" {
		existing, err := s.Repo.GetByExternalID(ctx, in.Source, in.ExternalID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Inquiry{}, false, err
		}
	}

	now := s.now()
	receivedAt := in.ReceivedAt.UTC()
	if in.ReceivedAt.IsZero() {
		receivedAt = now
	}
	inquiry := Inquiry{
		ID:           uuid.NewString(),
		Source:       in.Source,
		ExternalID:   in.ExternalID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		OrderNumber:  strings.TrimSpace(in.OrderNumber),
		ProductName:  strings.TrimSpace(in.ProductName),
		Text:         in.Text,
		Keywords:     []string{},
		Status:       StatusPending,
		ReceivedAt:   receivedAt,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, inquiry); err != nil {
		if errors.Is(err, ErrDuplicate) && in.ExternalID != "" {
			// Lost a race with a concurrent intake of the same inquiry.
			existing, getErr := s.Repo.GetByExternalID(ctx, in.Source, in.ExternalID)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return Inquiry{}, false, err
	}

	telemetry.Info("inquiry.created", map[string]any{
		"inquiry_id": inquiry.ID,
		"source":     inquiry.Source,
		"request_id": requestID,
	})

	if s.Queue != nil {
		msg := queue.Message{
			InquiryID:  inquiry.ID,
			RequestID:  requestID,
			EnqueuedAt: now.Format(time.RFC3339),
			Version:    queue.MessageVersion,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			// The periodic batch sweep still picks up pending inquiries.
			telemetry.Warn("inquiry.enqueue_failed", map[string]any{
				"inquiry_id": inquiry.ID,
				"request_id": requestID,
				"error":      err.Error(),
			})
		}
	}
	return inquiry, true, nil
}

// Get returns one inquiry.
func (s *Service) Get(ctx context.Context, id string) (Inquiry, error) {
	if strings.TrimSpace(id) == "" {
		return Inquiry{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns inquiries newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Inquiry, error) {
	switch filter.Status {
	case "", StatusPending, StatusProcessing, StatusProcessed, StatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.Repo.List(ctx, filter)
}

// ListPending returns up to limit pending inquiries, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]Inquiry, error) {
	return s.Repo.ListPending(ctx, limit)
}
