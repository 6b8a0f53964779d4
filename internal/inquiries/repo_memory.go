package inquiries

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores inquiries in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byID       map[string]Inquiry
	byExternal map[string]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:       make(map[string]Inquiry),
		byExternal: make(map[string]string),
	}
}

func externalKey(source, externalID string) string {
	return source + "\x00" + externalID
}

// Create stores the inquiry.
func (r *MemoryRepo) Create(ctx context.Context, inquiry Inquiry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[inquiry.ID]; ok {
		return ErrDuplicate
	}
	if inquiry.ExternalID != "" {
		key := externalKey(inquiry.Source, inquiry.ExternalID)
		if _, ok := r.byExternal[key]; ok {
			return ErrDuplicate
		}
		r.byExternal[key] = inquiry.ID
	}
	if inquiry.Version == 0 {
		inquiry.Version = 1
	}
	r.byID[inquiry.ID] = clone(inquiry)
	return nil
}

// GetByID returns an inquiry by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return Inquiry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	inquiry, ok := r.byID[id]
	if !ok {
		return Inquiry{}, ErrNotFound
	}
	return clone(inquiry), nil
}

// GetByExternalID returns the inquiry collected from source under externalID.
func (r *MemoryRepo) GetByExternalID(ctx context.Context, source, externalID string) (Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return Inquiry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExternal[externalKey(source, externalID)]
	if !ok {
		return Inquiry{}, ErrNotFound
	}
	return clone(r.byID[id]), nil
}

// Update replaces the stored inquiry when versions match.
func (r *MemoryRepo) Update(ctx context.Context, inquiry Inquiry) (Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return Inquiry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[inquiry.ID]
	if !ok {
		return Inquiry{}, ErrNotFound
	}
	if current.Version != inquiry.Version {
		return Inquiry{}, ErrConflict
	}
	inquiry.Version++
	inquiry.UpdatedAt = time.Now().UTC()
	r.byID[inquiry.ID] = clone(inquiry)
	return clone(inquiry), nil
}

// List returns inquiries matching filter, newest first.
func (r *MemoryRepo) List(ctx context.Context, filter Filter) ([]Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Inquiry, 0, len(r.byID))
	for _, inquiry := range r.byID {
		if filter.Status != "" && inquiry.Status != filter.Status {
			continue
		}
		if filter.RequiresHuman != nil && inquiry.RequiresHuman != *filter.RequiresHuman {
			continue
		}
		out = append(out, clone(inquiry))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// ListPending returns pending inquiries, oldest first.
func (r *MemoryRepo) ListPending(ctx context.Context, limit int) ([]Inquiry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Inquiry, 0)
	for _, inquiry := range r.byID {
		if inquiry.Status == StatusPending {
			out = append(out, clone(inquiry))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), nil
}

// ReclaimStale resets processing inquiries last updated before cutoff.
func (r *MemoryRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0)
	now := time.Now().UTC()
	for id, inquiry := range r.byID {
		if inquiry.Status != StatusProcessing || !inquiry.UpdatedAt.Before(cutoff) {
			continue
		}
		inquiry.Status = StatusPending
		inquiry.Version++
		inquiry.UpdatedAt = now
		r.byID[id] = inquiry
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func page(items []Inquiry, limit, offset int) []Inquiry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []Inquiry{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func clone(in Inquiry) Inquiry {
	out := in
	out.Keywords = append([]string(nil), in.Keywords...)
	if in.AnalyzedAt != nil {
		t := *in.AnalyzedAt
		out.AnalyzedAt = &t
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
