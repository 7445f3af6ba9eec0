// Package school provides the schools that uniform listings can be
// linked to.
package school

import (
	"context"
	"database/sql"
	"encoding/json"
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
	ErrNotFound = apperr.NotFound("School not found")
	ErrExists   = apperr.WithMessage(apperr.ErrConflict, "a school with this name already exists")
)

// School is a school whose uniforms are traded on the marketplace.
type School struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	City          string    `json:"city"`
	Houses        []string  `json:"houses"`
	UniformsNotes string    `json:"uniforms_notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateInput holds the fields for a new school.
type CreateInput struct {
	Name          string   `json:"name" validate:"required,max=120"`
	City          string   `json:"city" validate:"required,locality"`
	Houses        []string `json:"houses" validate:"max=12,dive,required,max=40"`
	UniformsNotes string   `json:"uniforms_notes" validate:"max=2000"`
}

// Repository provides data access for schools.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a school repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, name, city, houses, uniforms_notes, created_at, updated_at`

func scanSchool(row interface{ Scan(...interface{}) error }) (*School, error) {
	var s School
	var houses string
	if err := row.Scan(&s.ID, &s.Name, &s.City, &houses, &s.UniformsNotes, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(houses), &s.Houses); err != nil {
		return nil, fmt.Errorf("parsing houses: %w", err)
	}
	if s.Houses == nil {
		s.Houses = []string{}
	}
	return &s, nil
}

// Create validates in and stores a new school. Names are unique
// regardless of case.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*School, error) {
	in.Name = strings.TrimSpace(in.Name)
	for i, h := range in.Houses {
		in.Houses[i] = strings.TrimSpace(h)
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	city, _ := market.CanonicalLocality(in.City)

	houses := in.Houses
	if houses == nil {
		houses = []string{}
	}
	housesJSON, err := json.Marshal(houses)
	if err != nil {
		return nil, fmt.Errorf("encoding houses: %w", err)
	}

	id := uuid.NewString()
	now := db.Now()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO schools (id, name, city, houses, uniforms_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, city, string(housesJSON), strings.TrimSpace(in.UniformsNotes), now, now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("inserting school: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a school by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*School, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM schools WHERE id = ?", selectColumns), id)
	s, err := scanSchool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying school %s: %w", id, err)
	}
	return s, nil
}

// List returns schools by name, optionally only those in city.
func (r *Repository) List(ctx context.Context, city string) (out []*School, err error) {
	query := fmt.Sprintf("SELECT %s FROM schools", selectColumns)
	var args []interface{}
	if city != "" {
		if canonical, ok := market.CanonicalLocality(city); ok {
			city = canonical
		}
		query += " WHERE city = ?"
		args = append(args, city)
	}
	query += " ORDER BY name COLLATE NOCASE"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schools: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	out = []*School{}
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning school: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schools: %w", err)
	}
	return out, nil
}
