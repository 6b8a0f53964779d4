package inquiries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, source, external_id, customer_name, order_number, product_name, inquiry_text,
       classified_category, confidence_score, risk_level, keywords, sentiment, complexity_score,
       requires_human, is_urgent, status, error_code, error_message, received_at, analyzed_at,
       version, created_at, updated_at
FROM inquiries`

// Create inserts a new inquiry.
func (r *PGRepo) Create(ctx context.Context, inquiry Inquiry) error {
	const query = `
INSERT INTO inquiries (
	id, source, external_id, customer_name, order_number, product_name, inquiry_text,
	status, keywords, received_at, version, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11)`
	keywords, err := marshalKeywords(inquiry.Keywords)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		inquiry.ID,
		inquiry.Source,
		nullString(inquiry.ExternalID),
		nullString(inquiry.CustomerName),
		nullString(inquiry.OrderNumber),
		nullString(inquiry.ProductName),
		inquiry.Text,
		inquiry.Status,
		keywords,
		inquiry.ReceivedAt,
		inquiry.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns an inquiry by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Inquiry, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1
LIMIT 1`, id)
	return scanInquiry(row)
}

// GetByExternalID returns the inquiry collected from source under externalID.
func (r *PGRepo) GetByExternalID(ctx context.Context, source, externalID string) (Inquiry, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+`
WHERE source = $1 AND external_id = $2
LIMIT 1`, source, externalID)
	return scanInquiry(row)
}

// Update writes the triage fields guarded by the version column.
func (r *PGRepo) Update(ctx context.Context, inquiry Inquiry) (Inquiry, error) {
	const query = `
UPDATE inquiries
SET classified_category = $3,
    confidence_score = $4,
    risk_level = $5,
    keywords = $6,
    sentiment = $7,
    complexity_score = $8,
    requires_human = requires_human OR $9,
    is_urgent = $10,
    status = $11,
    error_code = $12,
    error_message = $13,
    analyzed_at = $14,
    version = version + 1,
    updated_at = NOW()
WHERE id = $1 AND version = $2
RETURNING version, updated_at`
	keywords, err := marshalKeywords(inquiry.Keywords)
	if err != nil {
		return Inquiry{}, err
	}
	var analyzedAt sql.NullTime
	if inquiry.AnalyzedAt != nil {
		analyzedAt = sql.NullTime{Time: *inquiry.AnalyzedAt, Valid: true}
	}
	err = r.DB.QueryRowContext(ctx, query,
		inquiry.ID,
		inquiry.Version,
		nullString(inquiry.ClassifiedCategory),
		inquiry.ConfidenceScore,
		nullString(inquiry.RiskLevel),
		keywords,
		nullString(inquiry.Sentiment),
		inquiry.ComplexityScore,
		inquiry.RequiresHuman,
		inquiry.IsUrgent,
		inquiry.Status,
		nullString(inquiry.ErrorCode),
		nullString(inquiry.ErrorMessage),
		analyzedAt,
	).Scan(&inquiry.Version, &inquiry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, inquiry.ID); errors.Is(getErr, ErrNotFound) {
				return Inquiry{}, ErrNotFound
			}
			return Inquiry{}, ErrConflict
		}
		return Inquiry{}, err
	}
	return inquiry, nil
}

// List returns inquiries matching filter, newest first.
func (r *PGRepo) List(ctx context.Context, filter Filter) ([]Inquiry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RequiresHuman != nil {
		args = append(args, *filter.RequiresHuman)
		where = append(where, fmt.Sprintf("requires_human = $%d", len(args)))
	}
	query := selectColumns
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY received_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf("\nOFFSET $%d", len(args))
	}
	return r.query(ctx, query, args...)
}

// ListPending returns pending inquiries, oldest first.
func (r *PGRepo) ListPending(ctx context.Context, limit int) ([]Inquiry, error) {
	if limit <= 0 {
		return r.query(ctx, selectColumns+`
WHERE status = $1
ORDER BY received_at ASC, id ASC`, StatusPending)
	}
	return r.query(ctx, selectColumns+`
WHERE status = $1
ORDER BY received_at ASC, id ASC
LIMIT $2`, StatusPending, limit)
}

// ReclaimStale resets processing inquiries last updated before cutoff.
func (r *PGRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
UPDATE inquiries
SET status = $1,
    version = version + 1,
    updated_at = NOW()
WHERE status = $2 AND updated_at < $3
RETURNING id`, StatusPending, StatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]Inquiry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Inquiry, 0)
	for rows.Next() {
		inquiry, err := scanInquiry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inquiry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInquiry(s scanner) (Inquiry, error) {
	var i Inquiry
	var externalID, customerName, orderNumber, productName sql.NullString
	var category, riskLevel, sentiment, errorCode, errorMessage sql.NullString
	var keywords []byte
	var analyzedAt sql.NullTime
	err := s.Scan(
		&i.ID,
		&i.Source,
		&externalID,
		&customerName,
		&orderNumber,
		&productName,
		&i.Text,
		&category,
		&i.ConfidenceScore,
		&riskLevel,
		&keywords,
		&sentiment,
		&i.ComplexityScore,
		&i.RequiresHuman,
		&i.IsUrgent,
		&i.Status,
		&errorCode,
		&errorMessage,
		&i.ReceivedAt,
		&analyzedAt,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Inquiry{}, ErrNotFound
		}
		return Inquiry{}, err
	}
	i.ExternalID = externalID.String
	i.CustomerName = customerName.String
	i.OrderNumber = orderNumber.String
	i.ProductName = productName.String
	i.ClassifiedCategory = category.String
	i.RiskLevel = riskLevel.String
	i.Sentiment = sentiment.String
	i.ErrorCode = errorCode.String
	i.ErrorMessage = errorMessage.String
	if analyzedAt.Valid {
		t := analyzedAt.Time
		i.AnalyzedAt = &t
	}
	i.Keywords = []string{}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &i.Keywords); err != nil {
			return Inquiry{}, fmt.Errorf("decode keywords for inquiry %s: %w", i.ID, err)
		}
	}
	return i, nil
}

func marshalKeywords(keywords []string) ([]byte, error) {
	if keywords == nil {
		keywords = []string{}
	}
	return json.Marshal(keywords)
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Repo = (*PGRepo)(nil)
