// Package services provides local service listings and keyword
// recommendations over them.
package services

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
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/validate"
)

var (
	ErrNotFound      = apperr.NotFound("Service not found")
	ErrNotOwner      = apperr.Forbidden("only the provider can change this service")
	ErrQueryRequired = apperr.Invalid("Query is required")
)

// NoMatches is the recommendation text when nothing matches.
const NoMatches = "No matching services found."

// maxRecommendations caps how many services a recommendation lists.
const maxRecommendations = 3

// Service is a local service offered by a user.
type Service struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Locality    string               `json:"locality"`
	PriceRange  string               `json:"price_range"`
	ContactInfo string               `json:"contact_info"`
	Status      market.ServiceStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// CreateInput holds the fields for a new service.
type CreateInput struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=4000"`
	Category    string `json:"category" validate:"required,max=60"`
	Locality    string `json:"locality" validate:"omitempty,locality"`
	PriceRange  string `json:"price_range" validate:"max=60"`
	ContactInfo string `json:"contact_info" validate:"max=200"`
}

// Repository provides data access for services.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a service repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, user_id, title, description, category, locality, price_range, contact_info, status, created_at, updated_at`

func scanService(row interface{ Scan(...interface{}) error }) (*Service, error) {
	var s Service
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Description, &s.Category, &s.Locality,
		&s.PriceRange, &s.ContactInfo, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = market.ServiceStatus(status)
	return &s, nil
}

// Create validates in and stores a new Active service.
func (r *Repository) Create(ctx context.Context, userID string, in CreateInput) (*Service, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if canonical, ok := market.CanonicalLocality(in.Locality); ok {
		in.Locality = canonical
	}

	id := uuid.NewString()
	now := db.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO services (id, user_id, title, description, category, locality, price_range, contact_info, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.Title, strings.TrimSpace(in.Description), in.Category, in.Locality,
		in.PriceRange, in.ContactInfo, string(market.ServiceActive), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting service: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a service by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Service, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM services WHERE id = ?", selectColumns), id)
	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying service %s: %w", id, err)
	}
	return s, nil
}

// List returns Active services newest first.
func (r *Repository) List(ctx context.Context) ([]*Service, error) {
	return r.query(ctx, fmt.Sprintf(
		"SELECT %s FROM services WHERE status = ? ORDER BY created_at DESC, rowid DESC", selectColumns),
		string(market.ServiceActive))
}

// SetStatus activates or deactivates a service owned by userID.
func (r *Repository) SetStatus(ctx context.Context, id, userID string, status market.ServiceStatus) error {
	if !status.IsValid() {
		return apperr.Invalid(fmt.Sprintf("invalid service status: %s", status))
	}
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.UserID != userID {
		return ErrNotOwner
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE services SET status = ?, updated_at = ? WHERE id = ?",
		string(status), db.Now(), id); err != nil {
		return fmt.Errorf("updating service status: %w", err)
	}
	return nil
}

// Recommend returns a plain-text recommendation of up to three Active
// services whose title, description, category or locality contains query.
func (r *Repository) Recommend(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrQueryRequired
	}

	active, err := r.query(ctx, fmt.Sprintf(
		"SELECT %s FROM services WHERE status = ? ORDER BY created_at ASC, rowid ASC", selectColumns),
		string(market.ServiceActive))
	if err != nil {
		return "", err
	}

	return FormatRecommendation(query, Filter(active, query)), nil
}

// Filter returns the services matching query as a lowercase substring.
func Filter(all []*Service, query string) []*Service {
	q := strings.ToLower(query)
	var out []*Service
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Description), q) ||
			strings.Contains(strings.ToLower(s.Category), q) ||
			strings.Contains(strings.ToLower(s.Locality), q) {
			out = append(out, s)
		}
	}
	return out
}

// FormatRecommendation renders the top matches.
func FormatRecommendation(query string, matches []*Service) string {
	if len(matches) == 0 {
		return NoMatches
	}
	if len(matches) > maxRecommendations {
		matches = matches[:maxRecommendations]
	}

	entries := make([]string, len(matches))
	for i, s := range matches {
		entries[i] = fmt.Sprintf("• %s (%s)\n  %s\n  Location: %s", s.Title, s.Category, s.Description, s.Locality)
	}
	return fmt.Sprintf("Based on your search for \"%s\", here are some recommended services:\n\n", query) +
		strings.Join(entries, "\n\n")
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) (out []*Service, err error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	out = []*Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating services: %w", err)
	}
	return out, nil
}
