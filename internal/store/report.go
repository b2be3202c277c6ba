// ABOUTME: Persistence for validation reports: creation, status transitions,
// ABOUTME: retrieval, and keyset-paginated listing built with squirrel.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Report statuses.
const (
	ReportPending  = "pending"
	ReportRunning  = "running"
	ReportComplete = "complete"
	ReportFailed   = "failed"
)

// ValidationReport is one row of validation_reports. The raw document XML is
// loaded separately via GetReportDocument; it can be tens of megabytes and
// list queries must never drag it along.
type ValidationReport struct {
	ID              uuid.UUID       `json:"id"`
	Status          string          `json:"status"`
	DocumentName    *string         `json:"document_name,omitempty"`
	DocumentSHA256  string          `json:"document_sha256"`
	DocumentBytes   int32           `json:"document_bytes"`
	StandardVersion string          `json:"standard_version"`
	Valid           *bool           `json:"valid,omitempty"`
	ErrorCount      int32           `json:"error_count"`
	WarningCount    int32           `json:"warning_count"`
	Records         json.RawMessage `json:"records,omitempty"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// reportColumns is the column list for every report SELECT; document_xml is
// deliberately absent.
const reportColumns = `id, status, document_name, document_sha256, document_bytes,
	standard_version, valid, error_count, warning_count, records, failure_reason,
	created_at, completed_at`

// CreateReportParams describes a new report row.
type CreateReportParams struct {
	Status          string
	DocumentName    *string
	DocumentXML     string
	DocumentSHA256  string
	DocumentBytes   int32
	StandardVersion string
}

// CreateReport inserts a new report row and returns its ID.
func (s *Store) CreateReport(ctx context.Context, p CreateReportParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO validation_reports
			(status, document_name, document_xml, document_sha256, document_bytes, standard_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.Status, p.DocumentName, p.DocumentXML, p.DocumentSHA256, p.DocumentBytes, p.StandardVersion,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create report: %w", err)
	}
	return id, nil
}

// GetReport returns the report row for id, or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*ValidationReport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM validation_reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return r, nil
}

// GetReportDocument returns the stored raw XML for a report, or ErrNotFound.
func (s *Store) GetReportDocument(ctx context.Context, id uuid.UUID) (string, error) {
	var doc string
	err := s.pool.QueryRow(ctx,
		`SELECT document_xml FROM validation_reports WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get report document %s: %w", id, err)
	}
	return doc, nil
}

// StartReport transitions a report to 'running'.
func (s *Store) StartReport(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE validation_reports SET status = $2 WHERE id = $1`, id, ReportRunning); err != nil {
		return fmt.Errorf("start report %s: %w", id, err)
	}
	return nil
}

// CompleteReport stores a finished validation outcome.
func (s *Store) CompleteReport(
	ctx context.Context,
	id uuid.UUID,
	valid bool,
	errorCount, warningCount int32,
	records json.RawMessage,
) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE validation_reports
		SET status = $2, valid = $3, error_count = $4, warning_count = $5,
		    records = $6, completed_at = now()
		WHERE id = $1`,
		id, ReportComplete, valid, errorCount, warningCount, records); err != nil {
		return fmt.Errorf("complete report %s: %w", id, err)
	}
	return nil
}

// FailReport marks a report as failed with a human-readable reason.
func (s *Store) FailReport(ctx context.Context, id uuid.UUID, reason string) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE validation_reports
		SET status = $2, failure_reason = $3, completed_at = now()
		WHERE id = $1`,
		id, ReportFailed, reason); err != nil {
		return fmt.Errorf("fail report %s: %w", id, err)
	}
	return nil
}

// ListReportsParams filters and paginates ListReports. Pagination is keyset:
// pass the CreatedAt and ID of the last row of the previous page.
type ListReportsParams struct {
	Status        string // empty = all statuses
	Version       string // empty = all versions
	BeforeCreated *time.Time
	BeforeID      *uuid.UUID
	Limit         int32
}

// ListReports returns a page of reports ordered by created_at desc, id desc.
func (s *Store) ListReports(ctx context.Context, p ListReportsParams) ([]ValidationReport, error) {
	limit := p.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := psql.Select(reportColumns).
		From("validation_reports").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	if p.Status != "" {
		q = q.Where(sq.Eq{"status": p.Status})
	}
	if p.Version != "" {
		q = q.Where(sq.Eq{"standard_version": p.Version})
	}
	if p.BeforeCreated != nil && p.BeforeID != nil {
		q = q.Where(sq.Expr("(created_at, id) < (?, ?)", *p.BeforeCreated, *p.BeforeID))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []ValidationReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (*ValidationReport, error) {
	var r ValidationReport
	err := row.Scan(
		&r.ID, &r.Status, &r.DocumentName, &r.DocumentSHA256, &r.DocumentBytes,
		&r.StandardVersion, &r.Valid, &r.ErrorCount, &r.WarningCount, &r.Records,
		&r.FailureReason, &r.CreatedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
