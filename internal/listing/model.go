// Package listing provides the item listing model, favorites and data access.
package listing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evcraddock/mela/internal/market"
)

// Listing is an item offered for sale.
type Listing struct {
	ID             string               `json:"id"`
	UserID         string               `json:"user_id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Category       market.Category      `json:"category"`
	Condition      market.Condition     `json:"condition"`
	PriceEUR       decimal.Decimal      `json:"price_eur"`
	AllowOffer     bool                 `json:"allow_offer"`
	Images         []string             `json:"images"`
	Locality       string               `json:"locality"`
	LocationText   string               `json:"location_text,omitempty"`
	Status         market.ListingStatus `json:"status"`
	ViewsCount     int                  `json:"views_count"`
	FavoritesCount int                  `json:"favorites_count"`
	SchoolID       *string              `json:"school_id"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// CreateInput holds the fields a seller supplies for a new listing.
type CreateInput struct {
	Title        string          `json:"title" validate:"required,max=120"`
	Description  string          `json:"description" validate:"max=4000"`
	Category     string          `json:"category" validate:"required,category"`
	Condition    string          `json:"condition" validate:"required,condition"`
	PriceEUR     decimal.Decimal `json:"price_eur" validate:"gte=0,lte=100000"`
	AllowOffer   bool            `json:"allow_offer"`
	Images       []string        `json:"images" validate:"max=8,dive,url"`
	Locality     string          `json:"locality" validate:"required,locality"`
	LocationText string          `json:"location_text" validate:"max=200"`
	SchoolID     string          `json:"school_id" validate:"omitempty,uuid"`
}

// UpdateInput holds optional changes to a listing. Nil fields are left alone.
type UpdateInput struct {
	Title        *string          `json:"title" validate:"omitempty,min=1,max=120"`
	Description  *string          `json:"description" validate:"omitempty,max=4000"`
	Category     *string          `json:"category" validate:"omitempty,category"`
	Condition    *string          `json:"condition" validate:"omitempty,condition"`
	PriceEUR     *decimal.Decimal `json:"price_eur" validate:"omitempty,gte=0,lte=100000"`
	AllowOffer   *bool            `json:"allow_offer"`
	Images       *[]string        `json:"images" validate:"omitempty,max=8,dive,url"`
	Locality     *string          `json:"locality" validate:"omitempty,locality"`
	LocationText *string          `json:"location_text" validate:"omitempty,max=200"`
	// SchoolID set to "" unlinks the school.
	SchoolID *string `json:"school_id"`
}

// scanListing scans a listing from a database row.
func scanListing(row interface{ Scan(...interface{}) error }) (*Listing, error) {
	var l Listing
	var price, images, category, condition, status string
	var school sql.NullString

	err := row.Scan(
		&l.ID, &l.UserID, &l.Title, &l.Description, &category, &condition,
		&price, &l.AllowOffer, &images, &l.Locality, &l.LocationText, &status,
		&l.ViewsCount, &l.FavoritesCount, &l.CreatedAt, &l.UpdatedAt, &school,
	)
	if err != nil {
		return nil, err
	}
	if school.Valid {
		l.SchoolID = &school.String
	}

	l.Category = market.Category(category)
	l.Condition = market.Condition(condition)
	l.Status = market.ListingStatus(status)

	l.PriceEUR, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parsing price %q: %w", price, err)
	}

	if err := json.Unmarshal([]byte(images), &l.Images); err != nil {
		return nil, fmt.Errorf("parsing images: %w", err)
	}
	if l.Images == nil {
		l.Images = []string{}
	}

	return &l, nil
}
