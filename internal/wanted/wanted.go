// Package wanted provides wanted ads: requests for items a user is looking for.
package wanted

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/validate"
)

var (
	ErrNotFound = apperr.NotFound("Wanted ad not found")
	ErrNotOwner = apperr.Forbidden("only the author can change this wanted ad")
)

// Ad is a wanted ad.
type Ad struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    market.Category     `json:"category"`
	BudgetEUR   *decimal.Decimal    `json:"budget_eur,omitempty"`
	Locality    string              `json:"locality"`
	Status      market.WantedStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// CreateInput holds the fields for a new wanted ad.
type CreateInput struct {
	Title       string           `json:"title" validate:"required,max=120"`
	Description string           `json:"description" validate:"max=4000"`
	Category    string           `json:"category" validate:"required,category"`
	BudgetEUR   *decimal.Decimal `json:"budget_eur" validate:"omitempty,gt=0,lte=100000"`
	Locality    string           `json:"locality" validate:"required,locality"`
}

// ListOptions controls filtering for List.
type ListOptions struct {
	Category market.Category
	Locality string
	Query    string
	UserID   string
	Limit    int
}

// Repository provides data access for wanted ads.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a wanted ad repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, user_id, title, description, category, budget_eur, locality, status, created_at, updated_at`

func scanAd(row interface{ Scan(...interface{}) error }) (*Ad, error) {
	var a Ad
	var category, status string
	var budget sql.NullString

	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &category, &budget,
		&a.Locality, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	a.Category = market.Category(category)
	a.Status = market.WantedStatus(status)
	if budget.Valid {
		d, err := decimal.NewFromString(budget.String)
		if err != nil {
			return nil, fmt.Errorf("parsing budget %q: %w", budget.String, err)
		}
		a.BudgetEUR = &d
	}
	return &a, nil
}

// Create validates in and stores a new Active wanted ad.
func (r *Repository) Create(ctx context.Context, userID string, in CreateInput) (*Ad, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	locality, _ := market.CanonicalLocality(in.Locality)

	var budget sql.NullString
	if in.BudgetEUR != nil {
		budget = sql.NullString{String: in.BudgetEUR.String(), Valid: true}
	}

	id := uuid.NewString()
	now := db.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wanted_ads (id, user_id, title, description, category, budget_eur, locality, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.Title, strings.TrimSpace(in.Description), in.Category, budget, locality,
		string(market.WantedActive), now, now,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("inserting wanted ad: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns a wanted ad. Deleted ads are not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*Ad, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM wanted_ads WHERE id = ? AND status <> ?", selectColumns),
		id, string(market.WantedDeleted),
	)
	a, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying wanted ad %s: %w", id, err)
	}
	return a, nil
}

// List returns Active wanted ads newest first, or all of a user's
// non-deleted ads when UserID is set.
func (r *Repository) List(ctx context.Context, opts ListOptions) (ads []*Ad, err error) {
	var conditions []string
	var args []interface{}

	if opts.UserID != "" {
		conditions = append(conditions, "user_id = ?", "status <> ?")
		args = append(args, opts.UserID, string(market.WantedDeleted))
	} else {
		conditions = append(conditions, "status = ?")
		args = append(args, string(market.WantedActive))
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
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := db.LikePattern(q)
		conditions = append(conditions, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf("SELECT %s FROM wanted_ads WHERE %s ORDER BY created_at DESC, rowid DESC LIMIT ?",
		selectColumns, strings.Join(conditions, " AND "))
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing wanted ads: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	ads = []*Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning wanted ad: %w", err)
		}
		ads = append(ads, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wanted ads: %w", err)
	}
	return ads, nil
}

// SetStatus changes the status of an ad owned by userID.
func (r *Repository) SetStatus(ctx context.Context, id, userID string, status market.WantedStatus) error {
	if !status.IsValid() {
		return apperr.Invalid(fmt.Sprintf("invalid wanted status: %s", status))
	}

	ad, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ad.UserID != userID {
		return ErrNotOwner
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE wanted_ads SET status = ?, updated_at = ? WHERE id = ?",
		string(status), db.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating wanted status: %w", err)
	}
	return nil
}
