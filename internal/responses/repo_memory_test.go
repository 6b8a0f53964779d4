package responses

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoOneActiveResponsePerInquiry(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, Response{ID: "r1", InquiryID: "i1", Status: StatusDraft}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, Response{ID: "r2", InquiryID: "i1", Status: StatusDraft}); !errors.Is(err, ErrActiveExists) {
		t.Fatalf("expected ErrActiveExists, got %v", err)
	}

	r1, _ := repo.GetByID(ctx, "r1")
	r1.Status = StatusRejected
	if _, err := repo.Update(ctx, r1); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := repo.Create(ctx, Response{ID: "r2", InquiryID: "i1", Status: StatusDraft}); err != nil {
		t.Fatalf("create after rejection: %v", err)
	}
	active, err := repo.GetActiveByInquiry(ctx, "i1")
	if err != nil || active.ID != "r2" {
		t.Fatalf("expected r2 active, got %+v (%v)", active, err)
	}
}

func TestMemoryRepoUpdateAppendsEvents(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	created := Event{ID: "e1", ResponseID: "r1", InquiryID: "i1", ToStatus: StatusDraft, Actor: "system", CreatedAt: now}
	if err := repo.Create(ctx, Response{ID: "r1", InquiryID: "i1", Status: StatusDraft}, created); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, _ := repo.GetByID(ctx, "r1")
	stale := resp
	resp.Status = StatusPendingApproval
	moved := Event{ID: "e2", ResponseID: "r1", InquiryID: "i1", FromStatus: StatusDraft, ToStatus: StatusPendingApproval, Actor: "system", CreatedAt: now}
	if _, err := repo.Update(ctx, resp, moved); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale.Status = StatusRejected
	lost := Event{ID: "e3", ResponseID: "r1", ToStatus: StatusRejected}
	if _, err := repo.Update(ctx, stale, lost); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	events, err := repo.ListEvents(ctx, "r1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[1].ToStatus != StatusPendingApproval {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestResponseActiveAndTerminal(t *testing.T) {
	cases := []struct {
		status   string
		active   bool
		terminal bool
	}{
		{StatusDraft, true, false},
		{StatusPendingApproval, true, false},
		{StatusApproved, true, false},
		{StatusRejected, false, true},
		{StatusSubmitted, false, true},
	}
	for _, tc := range cases {
		r := Response{Status: tc.status}
		if r.Active() != tc.active || r.Terminal() != tc.terminal {
			t.Fatalf("%s: active=%v terminal=%v", tc.status, r.Active(), r.Terminal())
		}
	}
}
