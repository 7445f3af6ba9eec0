// Package event provides community events and RSVPs.
package event

import (
	"database/sql"
	"time"

	"github.com/evcraddock/mela/internal/market"
)

// Event is a community event hosted by a user.
type Event struct {
	ID            string             `json:"id"`
	HostUserID    string             `json:"host_user_id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	VenueName     string             `json:"venue_name"`
	Address       string             `json:"address"`
	Locality      string             `json:"locality"`
	DateStart     time.Time          `json:"date_start"`
	DateEnd       *time.Time         `json:"date_end,omitempty"`
	Capacity      *int               `json:"capacity,omitempty"`
	CoverImageURL string             `json:"cover_image_url,omitempty"`
	Status        market.EventStatus `json:"status"`
	RSVPCount     int                `json:"rsvp_count"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Full reports whether the event has reached its capacity.
func (e *Event) Full() bool {
	return e.Capacity != nil && e.RSVPCount >= *e.Capacity
}

// CreateInput holds the fields for a new event.
type CreateInput struct {
	Title         string     `json:"title" validate:"required,max=120"`
	Description   string     `json:"description" validate:"max=4000"`
	VenueName     string     `json:"venue_name" validate:"max=120"`
	Address       string     `json:"address" validate:"max=200"`
	Locality      string     `json:"locality" validate:"required,locality"`
	DateStart     time.Time  `json:"date_start" validate:"required"`
	DateEnd       *time.Time `json:"date_end"`
	Capacity      *int       `json:"capacity" validate:"omitempty,gt=0"`
	CoverImageURL string     `json:"cover_image_url" validate:"omitempty,url"`
}

const selectColumns = `id, host_user_id, title, description, venue_name, address, locality,
	date_start, date_end, capacity, cover_image_url, status, rsvp_count, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*Event, error) {
	var e Event
	var status string
	var dateEnd sql.NullTime
	var capacity sql.NullInt64

	err := row.Scan(&e.ID, &e.HostUserID, &e.Title, &e.Description, &e.VenueName, &e.Address,
		&e.Locality, &e.DateStart, &dateEnd, &capacity, &e.CoverImageURL, &status,
		&e.RSVPCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Status = market.EventStatus(status)
	if dateEnd.Valid {
		t := dateEnd.Time
		e.DateEnd = &t
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		e.Capacity = &c
	}
	return &e, nil
}
