package responses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores responses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Response
	events map[string][]Event
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Response),
		events: make(map[string][]Event),
	}
}

// Create stores the response unless the inquiry already has an active one.
func (r *MemoryRepo) Create(ctx context.Context, resp Response, events ...Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if resp.Active() {
		for _, existing := range r.byID {
			if existing.InquiryID == resp.InquiryID && existing.Active() {
				return ErrActiveExists
			}
		}
	}
	if resp.Version == 0 {
		resp.Version = 1
	}
	r.byID[resp.ID] = clone(resp)
	r.events[resp.ID] = append(r.events[resp.ID], events...)
	return nil
}

// GetByID returns a response by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resp, ok := r.byID[id]
	if !ok {
		return Response{}, ErrNotFound
	}
	return clone(resp), nil
}

// GetActiveByInquiry returns the inquiry's active response.
func (r *MemoryRepo) GetActiveByInquiry(ctx context.Context, inquiryID string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, resp := range r.byID {
		if resp.InquiryID == inquiryID && resp.Active() {
			return clone(resp), nil
		}
	}
	return Response{}, ErrNotFound
}

// Update replaces the stored response when versions match.
func (r *MemoryRepo) Update(ctx context.Context, resp Response, events ...Event) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[resp.ID]
	if !ok {
		return Response{}, ErrNotFound
	}
	if current.Version != resp.Version {
		return Response{}, ErrConflict
	}
	resp.Version++
	resp.UpdatedAt = time.Now().UTC()
	r.byID[resp.ID] = clone(resp)
	r.events[resp.ID] = append(r.events[resp.ID], events...)
	return clone(resp), nil
}

// List returns responses matching filter, newest first.
func (r *MemoryRepo) List(ctx context.Context, filter Filter) ([]Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Response, 0, len(r.byID))
	for _, resp := range r.byID {
		if filter.Status != "" && resp.Status != filter.Status {
			continue
		}
		if filter.InquiryID != "" && resp.InquiryID != filter.InquiryID {
			continue
		}
		out = append(out, clone(resp))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Response{}, nil
	}
	end := len(out)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	return out[offset:end], nil
}

// ListEvents returns the audit trail for a response, oldest first.
func (r *MemoryRepo) ListEvents(ctx context.Context, responseID string) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.byID[responseID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Event, len(r.events[responseID]))
	copy(out, r.events[responseID])
	return out, nil
}

func clone(in Response) Response {
	out := in
	out.ValidationIssues = append([]string(nil), in.ValidationIssues...)
	out.ValidatedAt = copyTime(in.ValidatedAt)
	out.ApprovedAt = copyTime(in.ApprovedAt)
	out.RejectedAt = copyTime(in.RejectedAt)
	out.SubmittedAt = copyTime(in.SubmittedAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ Repo = (*MemoryRepo)(nil)
