package responses

import "context"

// Repo defines persistence operations for responses and their audit trail.
// Events passed to Create and Update are stored atomically with the row.
type Repo interface {
	Create(ctx context.Context, resp Response, events ...Event) error
	GetByID(ctx context.Context, id string) (Response, error)
	// GetActiveByInquiry returns the inquiry's active response or ErrNotFound.
	GetActiveByInquiry(ctx context.Context, inquiryID string) (Response, error)
	// Update requires resp.Version to match the stored row and returns the
	// stored copy with the bumped version.
	Update(ctx context.Context, resp Response, events ...Event) (Response, error)
	// List returns responses newest first.
	List(ctx context.Context, filter Filter) ([]Response, error)
	// ListEvents returns a response's audit trail oldest first.
	ListEvents(ctx context.Context, responseID string) ([]Event, error)
}
