// Package report provides moderation reports against marketplace content.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/validate"
)

// Status is the moderation state of a report.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusActioned  Status = "Actioned"
	StatusDismissed Status = "Dismissed"
)

var ErrNotFound = apperr.NotFound("report not found")

// Report flags a piece of content for moderators.
type Report struct {
	ID         string     `json:"id"`
	ReporterID string     `json:"reporter_id"`
	TargetType string     `json:"target_type"`
	TargetID   string     `json:"target_id"`
	Reason     string     `json:"reason"`
	Notes      string     `json:"notes,omitempty"`
	Status     Status     `json:"status"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateInput holds the fields a reporter supplies.
type CreateInput struct {
	TargetType string `json:"target_type" validate:"required,oneof=item wanted event user message"`
	TargetID   string `json:"target_id" validate:"required,max=64"`
	Reason     string `json:"reason" validate:"required,oneof=Counterfeit Inappropriate Spam Other"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// Repository provides data access for reports.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a report repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, reporter_id, target_type, target_id, reason, notes, status, resolved_by, resolved_at, created_at`

func scanReport(row interface{ Scan(...interface{}) error }) (*Report, error) {
	var r Report
	var status string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.ReporterID, &r.TargetType, &r.TargetID, &r.Reason, &r.Notes,
		&status, &resolvedBy, &resolvedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	if resolvedBy.Valid {
		r.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	return &r, nil
}

// Create files a new Open report.
func (r *Repository) Create(ctx context.Context, reporterID string, in CreateInput) (*Report, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (id, reporter_id, target_type, target_id, reason, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, reporterID, in.TargetType, in.TargetID, in.Reason, in.Notes, string(StatusOpen), db.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting report: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a report by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM reports WHERE id = ?", selectColumns), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report %s: %w", id, err)
	}
	return rep, nil
}

// List returns reports with the given status (all when empty), oldest first.
func (r *Repository) List(ctx context.Context, status Status) (reports []*Report, err error) {
	query := fmt.Sprintf("SELECT %s FROM reports", selectColumns)
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	reports = []*Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// Resolve closes an Open report as Actioned or Dismissed.
func (r *Repository) Resolve(ctx context.Context, id, moderatorID string, status Status) (*Report, error) {
	if status != StatusActioned && status != StatusDismissed {
		return nil, apperr.Invalid("status must be Actioned or Dismissed")
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE reports SET status = ?, resolved_by = ?, resolved_at = ? WHERE id = ? AND status = ?",
		string(status), moderatorID, db.Now(), id, string(StatusOpen),
	)
	if err != nil {
		return nil, fmt.Errorf("resolving report: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperr.WithMessage(apperr.ErrConflict, "report is already resolved")
	}
	return r.GetByID(ctx, id)
}
