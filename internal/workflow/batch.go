package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"csreply-backend/internal/shared/storage/object"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/shared/util"
)

// DefaultBatchSize is used when neither the caller nor the service sets one.
const DefaultBatchSize = 50

// BatchCounters aggregates a batch run.
type BatchCounters struct {
	Reclaimed     int `json:"reclaimed"`
	Collected     int `json:"collected"`
	Analyzed      int `json:"analyzed"`
	Generated     int `json:"generated"`
	Validated     int `json:"validated"`
	AutoApproved  int `json:"autoApproved"`
	Submitted     int `json:"submitted"`
	RequiresHuman int `json:"requiresHuman"`
	Errors        int `json:"errors"`
}

// BatchReport is the result of RunBatch. Outcomes are in the order the
// inquiries were collected; inquiries skipped by cancellation have no outcome.
type BatchReport struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Limit      int           `json:"limit"`
	Cancelled  bool          `json:"cancelled"`
	Counters   BatchCounters `json:"counters"`
	Outcomes   []Outcome     `json:"outcomes"`
	Errors     []string      `json:"errors"`
	ArchiveKey string        `json:"archiveKey,omitempty"`
}

// ReportKey is where a run's report is archived in the object store.
func ReportKey(runID string) string {
	return "reports/" + runID + ".json"
}

// RunBatch processes up to limit pending inquiries, oldest first, with at most
// Concurrency inquiries in flight. One inquiry's failure never stops the run.
// Cancelling ctx stops new inquiries from starting; inquiries already started
// run to completion so none is left half-processed.
func (s *Service) RunBatch(ctx context.Context, limit int) (BatchReport, error) {
	if limit <= 0 {
		limit = s.BatchSize
	}
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	report := BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		Limit:     limit,
		Outcomes:  []Outcome{},
		Errors:    []string{},
	}

	if s.StaleAfter > 0 {
		ids, err := s.Inquiries.ReclaimStale(ctx, s.now().Add(-s.StaleAfter))
		if err != nil {
			telemetry.Warn("batch.reclaim_failed", map[string]any{
				"run_id": report.RunID,
				"error":  util.SanitizeMessage(err.Error()),
			})
		} else if len(ids) > 0 {
			report.Counters.Reclaimed = len(ids)
			telemetry.Warn("batch.reclaimed_stale", map[string]any{
				"run_id":      report.RunID,
				"inquiry_ids": ids,
			})
		}
	}

	pending, err := s.Inquiries.ListPending(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("collect pending inquiries: %w", err)
	}
	report.Counters.Collected = len(pending)
	telemetry.Info("batch.started", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"run_id":     report.RunID,
		"collected":  len(pending),
		"limit":      limit,
	})

	concurrency := s.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]Outcome, len(pending))
	ran := make([]bool, len(pending))
	errs := make([]error, len(pending))
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, inq := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ran[i] = true
			outcomes[i], errs[i] = s.ProcessInquiry(work, inq.ID)
			return nil
		})
	}
	_ = g.Wait()

	for i := range pending {
		if !ran[i] {
			report.Cancelled = true
			continue
		}
		report.add(outcomes[i], errs[i])
	}
	report.FinishedAt = s.now()

	if s.Store != nil {
		key, err := s.archive(work, report)
		if err != nil {
			telemetry.Warn("batch.archive_failed", map[string]any{
				"run_id": report.RunID,
				"error":  util.SanitizeMessage(err.Error()),
			})
		} else {
			report.ArchiveKey = key
		}
	}

	telemetry.Info("batch.finished", map[string]any{
		"request_id":     requestIDFromContext(ctx),
		"run_id":         report.RunID,
		"cancelled":      report.Cancelled,
		"collected":      report.Counters.Collected,
		"analyzed":       report.Counters.Analyzed,
		"generated":      report.Counters.Generated,
		"validated":      report.Counters.Validated,
		"auto_approved":  report.Counters.AutoApproved,
		"submitted":      report.Counters.Submitted,
		"requires_human": report.Counters.RequiresHuman,
		"errors":         report.Counters.Errors,
		"duration_ms":    float64(report.FinishedAt.Sub(report.StartedAt).Microseconds()) / 1000.0,
	})
	return report, nil
}

func (r *BatchReport) add(out Outcome, err error) {
	r.Outcomes = append(r.Outcomes, out)
	if out.Analyzed {
		r.Counters.Analyzed++
	}
	if out.Generated {
		r.Counters.Generated++
	}
	if out.Validated {
		r.Counters.Validated++
	}
	if out.AutoApproved {
		r.Counters.AutoApproved++
	}
	if out.Submitted {
		r.Counters.Submitted++
	}
	if out.RequiresHuman {
		r.Counters.RequiresHuman++
	}
	if err != nil || out.Failed() {
		r.Counters.Errors++
		r.Errors = append(r.Errors, fmt.Sprintf("inquiry %s (%s): %s", out.InquiryID, out.Stage, out.Error))
	}
}

func (s *Service) archive(ctx context.Context, report BatchReport) (string, error) {
	key := ReportKey(report.RunID)
	report.ArchiveKey = key
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch report: %w", err)
	}
	if _, err := s.Store.Put(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("store batch report: %w", err)
	}
	return key, nil
}

// GetBatchReport loads an archived batch report.
func (s *Service) GetBatchReport(ctx context.Context, runID string) (BatchReport, error) {
	if s.Store == nil {
		return BatchReport{}, ErrReportsNotConfigured
	}
	if _, err := uuid.Parse(runID); err != nil {
		return BatchReport{}, fmt.Errorf("%w: run id must be a uuid", ErrInvalidInput)
	}
	rc, err := s.Store.Open(ctx, ReportKey(runID))
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return BatchReport{}, ErrReportNotFound
		}
		return BatchReport{}, err
	}
	defer rc.Close()

	var report BatchReport
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return BatchReport{}, fmt.Errorf("decode batch report: %w", err)
	}
	return report, nil
}
