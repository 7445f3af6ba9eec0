// Package review stores member reviews of sellers and the rating
// summaries shown on their profiles.
package review

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/validate"
)

var (
	ErrSelfReview = apperr.Invalid("you cannot review yourself")
	ErrReviewed   = apperr.WithMessage(apperr.ErrConflict, "you have already reviewed this member")
)

// Review is one member's rating of another.
type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateInput holds the fields a reviewer supplies.
type CreateInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// Summary aggregates the reviews of one member. Average is zero when
// there are none.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Repository provides data access for reviews.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a review repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create stores reviewerID's review of revieweeID. Each member may
// review another once.
func (r *Repository) Create(ctx context.Context, reviewerID, revieweeID string, in CreateInput) (*Review, error) {
	if reviewerID == revieweeID {
		return nil, ErrSelfReview
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	rv := &Review{
		ID:         uuid.NewString(),
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
		CreatedAt:  db.Now(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, reviewer_id, reviewee_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rv.ID, rv.ReviewerID, rv.RevieweeID, rv.Rating, rv.Comment, rv.CreatedAt,
	)
	switch {
	case db.IsUniqueViolation(err):
		return nil, ErrReviewed
	case db.IsForeignKeyViolation(err):
		return nil, apperr.NotFound("User not found")
	case err != nil:
		return nil, fmt.Errorf("inserting review: %w", err)
	}
	return rv, nil
}

// ListFor returns the reviews of revieweeID, newest first.
func (r *Repository) ListFor(ctx context.Context, revieweeID string) (out []*Review, err error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reviewer_id, reviewee_id, rating, comment, created_at FROM reviews
		WHERE reviewee_id = ? ORDER BY created_at DESC, rowid DESC`, revieweeID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	out = []*Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ReviewerID, &rv.RevieweeID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		out = append(out, &rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}
	return out, nil
}

// Summarize returns the review count and average rating of revieweeID.
func (r *Repository) Summarize(ctx context.Context, revieweeID string) (Summary, error) {
	var s Summary
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(rating) FROM reviews WHERE reviewee_id = ?", revieweeID,
	).Scan(&s.Count, &avg)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing reviews: %w", err)
	}
	s.Average = avg.Float64
	return s, nil
}
