package responses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, inquiry_id, response_text, original_response, generation_method, generation_confidence,
       confidence_score, risk_level, validation_passed, format_check_passed, content_check_passed,
       validation_issues, validated_at, status, approved_by, approved_at, auto_approved,
       rejected_by, rejection_reason, rejected_at, submission_status, submission_error,
       submission_attempts, submitted_at, edit_count, version, created_at, updated_at
FROM responses`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a response and its events in one transaction. The partial
// unique index on active responses turns a second active response into
// ErrActiveExists.
func (r *PGRepo) Create(ctx context.Context, resp Response, events ...Event) error {
	const query = `
INSERT INTO responses (
	id, inquiry_id, response_text, generation_method, generation_confidence, confidence_score,
	validation_issues, status, version, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)`
	issues, err := marshalIssues(resp.ValidationIssues)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query,
		resp.ID,
		resp.InquiryID,
		resp.ResponseText,
		resp.GenerationMethod,
		resp.GenerationConfidence,
		resp.ConfidenceScore,
		issues,
		resp.Status,
		resp.CreatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveExists
		}
		return err
	}
	if err := insertEvents(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns a response by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Response, error) {
	return scanResponse(r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1
LIMIT 1`, id))
}

// GetActiveByInquiry returns the inquiry's active response.
func (r *PGRepo) GetActiveByInquiry(ctx context.Context, inquiryID string) (Response, error) {
	return scanResponse(r.DB.QueryRowContext(ctx, selectColumns+`
WHERE inquiry_id = $1 AND status IN ('draft', 'pending_approval', 'approved')
LIMIT 1`, inquiryID))
}

// Update writes the mutable columns guarded by the version column and
// appends events in the same transaction.
func (r *PGRepo) Update(ctx context.Context, resp Response, events ...Event) (Response, error) {
	const query = `
UPDATE responses
SET response_text = $3,
    original_response = $4,
    confidence_score = $5,
    risk_level = $6,
    validation_passed = $7,
    format_check_passed = $8,
    content_check_passed = $9,
    validation_issues = $10,
    validated_at = $11,
    status = $12,
    approved_by = $13,
    approved_at = $14,
    auto_approved = $15,
    rejected_by = $16,
    rejection_reason = $17,
    rejected_at = $18,
    submission_status = $19,
    submission_error = $20,
    submission_attempts = $21,
    submitted_at = $22,
    edit_count = $23,
    version = version + 1,
    updated_at = NOW()
WHERE id = $1 AND version = $2
RETURNING version, updated_at`
	issues, err := marshalIssues(resp.ValidationIssues)
	if err != nil {
		return Response{}, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Response{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, query,
		resp.ID,
		resp.Version,
		resp.ResponseText,
		nullString(resp.OriginalResponse),
		resp.ConfidenceScore,
		nullString(resp.RiskLevel),
		resp.ValidationPassed,
		resp.FormatCheckPassed,
		resp.ContentCheckPassed,
		issues,
		nullTime(resp.ValidatedAt),
		resp.Status,
		nullString(resp.ApprovedBy),
		nullTime(resp.ApprovedAt),
		resp.AutoApproved,
		nullString(resp.RejectedBy),
		nullString(resp.RejectionReason),
		nullTime(resp.RejectedAt),
		nullString(resp.SubmissionStatus),
		nullString(resp.SubmissionError),
		resp.SubmissionAttempts,
		nullTime(resp.SubmittedAt),
		resp.EditCount,
	).Scan(&resp.Version, &resp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM responses WHERE id = $1)`, resp.ID).Scan(&exists); err != nil {
				return Response{}, err
			}
			if !exists {
				return Response{}, ErrNotFound
			}
			return Response{}, ErrConflict
		}
		return Response{}, err
	}
	if err := insertEvents(ctx, tx, events); err != nil {
		return Response{}, err
	}
	if err := tx.Commit(); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// List returns responses matching filter, newest first.
func (r *PGRepo) List(ctx context.Context, filter Filter) ([]Response, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.InquiryID != "" {
		args = append(args, filter.InquiryID)
		where = append(where, fmt.Sprintf("inquiry_id = $%d", len(args)))
	}
	query := selectColumns
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf("\nOFFSET $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Response, 0)
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// ListEvents returns the audit trail for a response, oldest first.
func (r *PGRepo) ListEvents(ctx context.Context, responseID string) ([]Event, error) {
	const query = `
SELECT id, response_id, inquiry_id, from_status, to_status, actor, note, created_at
FROM response_events
WHERE response_id = $1
ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		var from, note sql.NullString
		if err := rows.Scan(&e.ID, &e.ResponseID, &e.InquiryID, &from, &e.ToStatus, &e.Actor, &note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatus = from.String
		e.Note = note.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEvents(ctx context.Context, db execer, events []Event) error {
	const query = `
INSERT INTO response_events (id, response_id, inquiry_id, from_status, to_status, actor, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, e := range events {
		if _, err := db.ExecContext(ctx, query,
			e.ID,
			e.ResponseID,
			e.InquiryID,
			nullString(e.FromStatus),
			e.ToStatus,
			e.Actor,
			nullString(e.Note),
			e.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert response event: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResponse(s scanner) (Response, error) {
	var resp Response
	var original, riskLevel, approvedBy, rejectedBy, rejectionReason sql.NullString
	var submissionStatus, submissionError sql.NullString
	var validatedAt, approvedAt, rejectedAt, submittedAt sql.NullTime
	var issues []byte
	err := s.Scan(
		&resp.ID,
		&resp.InquiryID,
		&resp.ResponseText,
		&original,
		&resp.GenerationMethod,
		&resp.GenerationConfidence,
		&resp.ConfidenceScore,
		&riskLevel,
		&resp.ValidationPassed,
		&resp.FormatCheckPassed,
		&resp.ContentCheckPassed,
		&issues,
		&validatedAt,
		&resp.Status,
		&approvedBy,
		&approvedAt,
		&resp.AutoApproved,
		&rejectedBy,
		&rejectionReason,
		&rejectedAt,
		&submissionStatus,
		&submissionError,
		&resp.SubmissionAttempts,
		&submittedAt,
		&resp.EditCount,
		&resp.Version,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, ErrNotFound
		}
		return Response{}, err
	}
	resp.OriginalResponse = original.String
	resp.RiskLevel = riskLevel.String
	resp.ApprovedBy = approvedBy.String
	resp.RejectedBy = rejectedBy.String
	resp.RejectionReason = rejectionReason.String
	resp.SubmissionStatus = submissionStatus.String
	resp.SubmissionError = submissionError.String
	resp.ValidatedAt = timePtr(validatedAt)
	resp.ApprovedAt = timePtr(approvedAt)
	resp.RejectedAt = timePtr(rejectedAt)
	resp.SubmittedAt = timePtr(submittedAt)
	resp.ValidationIssues = []string{}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &resp.ValidationIssues); err != nil {
			return Response{}, fmt.Errorf("decode validation issues for response %s: %w", resp.ID, err)
		}
	}
	return resp, nil
}

func marshalIssues(issues []string) ([]byte, error) {
	if issues == nil {
		issues = []string{}
	}
	return json.Marshal(issues)
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ Repo = (*PGRepo)(nil)
