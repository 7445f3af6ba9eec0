package event

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
	ErrNotFound  = apperr.NotFound("Event not found")
	ErrNotHost   = apperr.Forbidden("only the host can change this event")
	ErrFull      = apperr.WithMessage(apperr.ErrConflict, "event is full")
	ErrCancelled = apperr.WithMessage(apperr.ErrConflict, "event is cancelled")
)

// Repository provides data access for events and RSVPs.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an event repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create validates in and stores a new Upcoming event hosted by hostID.
func (r *Repository) Create(ctx context.Context, hostID string, in CreateInput) (*Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.DateEnd != nil && in.DateEnd.Before(in.DateStart) {
		return nil, apperr.WithFields(apperr.ErrValidation, "date_end must not precede date_start",
			map[string]string{"date_end": "must not precede date_start"})
	}
	locality, _ := market.CanonicalLocality(in.Locality)

	var dateEnd sql.NullTime
	if in.DateEnd != nil {
		dateEnd = sql.NullTime{Time: in.DateEnd.UTC(), Valid: true}
	}
	var capacity sql.NullInt64
	if in.Capacity != nil {
		capacity = sql.NullInt64{Int64: int64(*in.Capacity), Valid: true}
	}

	id := uuid.NewString()
	now := db.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, host_user_id, title, description, venue_name, address, locality,
			date_start, date_end, capacity, cover_image_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, hostID, in.Title, strings.TrimSpace(in.Description), in.VenueName, in.Address, locality,
		in.DateStart.UTC(), dateEnd, capacity, in.CoverImageURL, string(market.EventUpcoming), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID returns an event by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM events WHERE id = ?", selectColumns), id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying event %s: %w", id, err)
	}
	return e, nil
}

// ListUpcoming returns Upcoming events that have not ended by now,
// soonest first.
func (r *Repository) ListUpcoming(ctx context.Context, now time.Time, limit int) (events []*Event, err error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM events
		WHERE status = ? AND COALESCE(date_end, date_start) >= ?
		ORDER BY date_start ASC, rowid ASC LIMIT ?`, selectColumns)
	rows, err := r.db.QueryContext(ctx, query, string(market.EventUpcoming), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	events = []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// RSVP registers userID for an event. Repeating an RSVP is a no-op.
func (r *Repository) RSVP(ctx context.Context, eventID, userID string) error {
	e, err := r.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if e.Status == market.EventCancelled {
		return ErrCancelled
	}

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO event_rsvps (event_id, user_id, created_at) VALUES (?, ?, ?)",
			eventID, userID, db.Now(),
		)
		if err != nil {
			return fmt.Errorf("inserting rsvp: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}

		result, err = tx.ExecContext(ctx,
			`UPDATE events SET rsvp_count = rsvp_count + 1
			WHERE id = ? AND (capacity IS NULL OR rsvp_count < capacity)`,
			eventID,
		)
		if err != nil {
			return fmt.Errorf("updating rsvp count: %w", err)
		}
		if n, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return ErrFull
		}
		return nil
	})
}

// CancelRSVP removes userID's RSVP. Cancelling a missing RSVP is a no-op.
func (r *Repository) CancelRSVP(ctx context.Context, eventID, userID string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"DELETE FROM event_rsvps WHERE event_id = ? AND user_id = ?", eventID, userID)
		if err != nil {
			return fmt.Errorf("deleting rsvp: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE events SET rsvp_count = rsvp_count - 1 WHERE id = ? AND rsvp_count > 0", eventID); err != nil {
			return fmt.Errorf("updating rsvp count: %w", err)
		}
		return nil
	})
}

// Attendees returns the ids of users who RSVP'd, earliest first.
func (r *Repository) Attendees(ctx context.Context, eventID string) (ids []string, err error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM event_rsvps WHERE event_id = ? ORDER BY created_at, rowid", eventID)
	if err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning attendee: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Cancel marks an event hosted by hostID as Cancelled.
func (r *Repository) Cancel(ctx context.Context, eventID, hostID string) (*Event, error) {
	e, err := r.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.HostUserID != hostID {
		return nil, ErrNotHost
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE events SET status = ?, updated_at = ? WHERE id = ?",
		string(market.EventCancelled), db.Now(), eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("cancelling event: %w", err)
	}
	return r.GetByID(ctx, eventID)
}
