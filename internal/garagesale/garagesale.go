// Package garagesale provides "leaving the island" garage sales with
// featured items.
package garagesale

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
	"github.com/evcraddock/mela/internal/validate"
)

var (
	ErrNotFound = apperr.NotFound("Garage sale not found")
	ErrNotOwner = apperr.Forbidden("only the organiser can change this garage sale")
)

// Sale is a garage sale with an open day.
type Sale struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
	OpenDate      string          `json:"open_date"` // YYYY-MM-DD
	OpenTime      string          `json:"open_time"`
	ContactInfo   string          `json:"contact_info"`
	ItemsCount    int             `json:"items_count"`
	FeaturedItems []*FeaturedItem `json:"featured_items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// FeaturedItem is a highlighted item of a sale.
type FeaturedItem struct {
	ID                string           `json:"id"`
	GarageSaleID      string           `json:"garage_sale_id"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	ImageURL          string           `json:"image_url,omitempty"`
	EstimatedValueEUR *decimal.Decimal `json:"estimated_value_eur,omitempty"`
	SortOrder         int              `json:"sort_order"`
	CreatedAt         time.Time        `json:"created_at"`
}

// CreateInput holds the fields for a new garage sale.
type CreateInput struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=4000"`
	Location    string `json:"location" validate:"required,max=200"`
	OpenDate    string `json:"open_date" validate:"required,isodate"`
	OpenTime    string `json:"open_time" validate:"required,max=40"`
	ContactInfo string `json:"contact_info" validate:"max=200"`
	ItemsCount  int    `json:"items_count" validate:"gte=0"`
}

// ItemInput holds the fields for a featured item.
type ItemInput struct {
	Name              string           `json:"name" validate:"required,max=120"`
	Description       string           `json:"description" validate:"max=1000"`
	ImageURL          string           `json:"image_url" validate:"omitempty,url"`
	EstimatedValueEUR *decimal.Decimal `json:"estimated_value_eur" validate:"omitempty,gte=0"`
	SortOrder         int              `json:"sort_order"`
}

// Repository provides data access for garage sales.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a garage sale repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, user_id, title, description, location, open_date, open_time, contact_info, items_count, created_at, updated_at`

func scanSale(row interface{ Scan(...interface{}) error }) (*Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.Description, &s.Location, &s.OpenDate,
		&s.OpenTime, &s.ContactInfo, &s.ItemsCount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create validates in and stores a new garage sale.
func (r *Repository) Create(ctx context.Context, userID string, in CreateInput) (*Sale, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := time.Parse("2006-01-02", in.OpenDate); err != nil {
		return nil, apperr.WithFields(apperr.ErrValidation, "invalid open date",
			map[string]string{"open_date": "must be a real calendar date"})
	}

	id := uuid.NewString()
	now := db.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO garage_sales (id, user_id, title, description, location, open_date, open_time, contact_info, items_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.Title, strings.TrimSpace(in.Description), in.Location, in.OpenDate,
		in.OpenTime, in.ContactInfo, in.ItemsCount, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting garage sale: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a sale with its featured items.
func (r *Repository) GetByID(ctx context.Context, id string) (*Sale, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM garage_sales WHERE id = ?", selectColumns), id)
	s, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying garage sale %s: %w", id, err)
	}

	s.FeaturedItems, err = r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns sales whose open day is on or after from (YYYY-MM-DD),
// soonest first. An empty from lists every sale.
func (r *Repository) List(ctx context.Context, from string) (sales []*Sale, err error) {
	query := fmt.Sprintf("SELECT %s FROM garage_sales", selectColumns)
	var args []interface{}
	if from != "" {
		query += " WHERE open_date >= ?"
		args = append(args, from)
	}
	query += " ORDER BY open_date ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing garage sales: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	sales = []*Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning garage sale: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating garage sales: %w", err)
	}
	return sales, nil
}

// AddFeaturedItem attaches an item to a sale owned by userID.
func (r *Repository) AddFeaturedItem(ctx context.Context, saleID, userID string, in ItemInput) (*FeaturedItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var owner string
	err := r.db.QueryRowContext(ctx, "SELECT user_id FROM garage_sales WHERE id = ?", saleID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking garage sale owner: %w", err)
	}
	if owner != userID {
		return nil, ErrNotOwner
	}

	var value sql.NullString
	if in.EstimatedValueEUR != nil {
		value = sql.NullString{String: in.EstimatedValueEUR.String(), Valid: true}
	}

	item := &FeaturedItem{
		ID:                uuid.NewString(),
		GarageSaleID:      saleID,
		Name:              in.Name,
		Description:       strings.TrimSpace(in.Description),
		ImageURL:          in.ImageURL,
		EstimatedValueEUR: in.EstimatedValueEUR,
		SortOrder:         in.SortOrder,
		CreatedAt:         db.Now(),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO garage_sale_items (id, garage_sale_id, name, description, image_url, estimated_value_eur, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, saleID, item.Name, item.Description, item.ImageURL, value, item.SortOrder, item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting featured item: %w", err)
	}
	return item, nil
}

func (r *Repository) items(ctx context.Context, saleID string) (items []*FeaturedItem, err error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, garage_sale_id, name, description, image_url, estimated_value_eur, sort_order, created_at
		FROM garage_sale_items WHERE garage_sale_id = ? ORDER BY sort_order ASC, created_at ASC`, saleID)
	if err != nil {
		return nil, fmt.Errorf("listing featured items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var it FeaturedItem
		var value sql.NullString
		if err := rows.Scan(&it.ID, &it.GarageSaleID, &it.Name, &it.Description, &it.ImageURL,
			&value, &it.SortOrder, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning featured item: %w", err)
		}
		if value.Valid {
			d, err := decimal.NewFromString(value.String)
			if err != nil {
				return nil, fmt.Errorf("parsing estimated value: %w", err)
			}
			it.EstimatedValueEUR = &d
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating featured items: %w", err)
	}
	return items, nil
}
