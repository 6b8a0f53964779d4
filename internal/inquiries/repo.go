package inquiries

import (
	"context"
	"time"
)

// Repo defines persistence operations for inquiries.
type Repo interface {
	// Create returns ErrDuplicate when (source, external id) is already stored.
	Create(ctx context.Context, inquiry Inquiry) error
	GetByID(ctx context.Context, id string) (Inquiry, error)
	GetByExternalID(ctx context.Context, source, externalID string) (Inquiry, error)
	// Update writes inquiry if its Version still matches the stored row and
	// returns the stored copy with the bumped version. A stale version yields
	// ErrConflict.
	Update(ctx context.Context, inquiry Inquiry) (Inquiry, error)
	// List returns inquiries newest first.
	List(ctx context.Context, filter Filter) ([]Inquiry, error)
	// ListPending returns pending inquiries oldest first.
	ListPending(ctx context.Context, limit int) ([]Inquiry, error)
	// ReclaimStale moves inquiries stuck in processing since before cutoff
	// back to pending and returns their ids.
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
