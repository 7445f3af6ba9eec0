package listing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/school"
	"github.com/evcraddock/mela/internal/validate"
)

// Listing list limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	// ErrNotFound is returned for unknown or deleted listings.
	ErrNotFound = apperr.NotFound("Item not found")
	// ErrNotOwner is returned when a user changes someone else's listing.
	ErrNotOwner = apperr.Forbidden("only the seller can change this listing")
)

// Repository provides CRUD operations for listings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a listing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, user_id, title, description, category, condition, price_eur, allow_offer,
	images, locality, location_text, status, views_count, favorites_count, created_at, updated_at, school_id`

const insertSQL = `INSERT INTO listings
	(id, user_id, title, description, category, condition, price_eur, allow_offer,
	 images, locality, location_text, status, created_at, updated_at, school_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Create validates in and stores a new Active listing owned by userID.
func (r *Repository) Create(ctx context.Context, userID string, in CreateInput) (*Listing, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	locality, _ := market.CanonicalLocality(in.Locality)
	if in.SchoolID != "" {
		if err := r.checkSchool(ctx, in.SchoolID); err != nil {
			return nil, err
		}
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encoding images: %w", err)
	}

	id := uuid.NewString()
	now := db.Now()
	_, err = r.db.ExecContext(ctx, insertSQL,
		id, userID, in.Title, strings.TrimSpace(in.Description), in.Category, in.Condition,
		in.PriceEUR.String(), in.AllowOffer, string(imagesJSON), locality,
		strings.TrimSpace(in.LocationText), string(market.ListingActive), now, now,
		sql.NullString{String: in.SchoolID, Valid: in.SchoolID != ""},
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("inserting listing: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a listing by its ID. Deleted listings are not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = ? AND status <> ?", selectColumns)
	row := r.db.QueryRowContext(ctx, query, id, string(market.ListingDeleted))

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %s: %w", id, err)
	}

	return l, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	// Status defaults to Active, or to every non-deleted status when
	// UserID is set.
	Status   market.ListingStatus
	Category market.Category
	Locality string
	// Query matches title or locality, case-insensitively.
	Query  string
	UserID string
	// School limits results to listings linked to that school.
	School string
	Limit  int
	Offset int
}

// List returns listings newest first.
func (r *Repository) List(ctx context.Context, opts ListOptions) (listings []*Listing, err error) {
	query := fmt.Sprintf("SELECT %s FROM listings", selectColumns)
	var args []interface{}
	var conditions []string

	switch {
	case opts.Status != "":
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	case opts.UserID != "":
		conditions = append(conditions, "status <> ?")
		args = append(args, string(market.ListingDeleted))
	default:
		conditions = append(conditions, "status = ?")
		args = append(args, string(market.ListingActive))
	}

	if opts.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(opts.Category))
	}
	if opts.Locality != "" {
		locality := opts.Locality
		if canonical, ok := market.CanonicalLocality(locality); ok {
			locality = canonical
		}
		conditions = append(conditions, "locality = ?")
		args = append(args, locality)
	}
	if opts.School != "" {
		conditions = append(conditions, "school_id = ?")
		args = append(args, opts.School)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := db.LikePattern(q)
		conditions = append(conditions, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(locality) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query += " WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(opts.Limit), max(opts.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	listings = []*Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	return listings, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Update applies in to a listing owned by userID.
func (r *Repository) Update(ctx context.Context, id, userID string, in UpdateInput) (*Listing, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := r.checkOwner(ctx, id, userID); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.WithFields(apperr.ErrValidation, "title is required", map[string]string{"title": "is required"})
		}
		set("title", title)
	}
	if in.Description != nil {
		set("description", strings.TrimSpace(*in.Description))
	}
	if in.Category != nil {
		set("category", *in.Category)
	}
	if in.Condition != nil {
		set("condition", *in.Condition)
	}
	if in.PriceEUR != nil {
		set("price_eur", in.PriceEUR.String())
	}
	if in.AllowOffer != nil {
		set("allow_offer", *in.AllowOffer)
	}
	if in.Images != nil {
		images := *in.Images
		if images == nil {
			images = []string{}
		}
		b, err := json.Marshal(images)
		if err != nil {
			return nil, fmt.Errorf("encoding images: %w", err)
		}
		set("images", string(b))
	}
	if in.Locality != nil {
		locality, _ := market.CanonicalLocality(*in.Locality)
		set("locality", locality)
	}
	if in.LocationText != nil {
		set("location_text", strings.TrimSpace(*in.LocationText))
	}
	if in.SchoolID != nil {
		id := strings.TrimSpace(*in.SchoolID)
		if id != "" {
			if err := r.checkSchool(ctx, id); err != nil {
				return nil, err
			}
		}
		set("school_id", sql.NullString{String: id, Valid: id != ""})
	}

	if len(sets) > 0 {
		set("updated_at", db.Now())
		args = append(args, id)
		query := "UPDATE listings SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("updating listing %s: %w", id, err)
		}
	}

	return r.GetByID(ctx, id)
}

// SetStatus changes the status of a listing owned by userID.
func (r *Repository) SetStatus(ctx context.Context, id, userID string, status market.ListingStatus) error {
	if !status.IsValid() {
		return apperr.Invalid(fmt.Sprintf("invalid listing status: %s", status))
	}
	if err := r.checkOwner(ctx, id, userID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE listings SET status = ?, updated_at = ? WHERE id = ?",
		string(status), db.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating listing status: %w", err)
	}
	return nil
}

// Delete soft-deletes a listing owned by userID.
func (r *Repository) Delete(ctx context.Context, id, userID string) error {
	return r.SetStatus(ctx, id, userID, market.ListingDeleted)
}

// RecordView increments the view counter.
func (r *Repository) RecordView(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE listings SET views_count = views_count + 1 WHERE id = ? AND status <> ?",
		id, string(market.ListingDeleted),
	)
	if err != nil {
		return fmt.Errorf("recording view: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// checkOwner returns ErrNotFound or ErrNotOwner unless userID owns id.
func (r *Repository) checkOwner(ctx context.Context, id, userID string) error {
	var owner string
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id FROM listings WHERE id = ? AND status <> ?",
		id, string(market.ListingDeleted),
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking listing owner: %w", err)
	}
	if owner != userID {
		return ErrNotOwner
	}
	return nil
}

// checkSchool returns school.ErrNotFound unless id names a school.
func (r *Repository) checkSchool(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM schools WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return school.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking school: %w", err)
	}
	return nil
}
