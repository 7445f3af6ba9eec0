// Package notification stores in-app notifications.
package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
)

// Type classifies a notification.
type Type string

const (
	TypeMatchWishlist Type = "match_wishlist"
	TypeMatchOwned    Type = "match_owned"
	TypeMessage       Type = "message"
	TypeEvent         Type = "event"
	TypeSystem        Type = "system"
)

// IsValid checks if a notification type is recognized.
func (t Type) IsValid() bool {
	switch t {
	case TypeMatchWishlist, TypeMatchOwned, TypeMessage, TypeEvent, TypeSystem:
		return true
	}
	return false
}

// ErrNotFound is returned when a notification does not exist for the user.
var ErrNotFound = apperr.NotFound("notification not found")

// Notification is a message shown to a single user.
type Notification struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Type              Type      `json:"type"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	RelatedItemID     *string   `json:"related_item_id,omitempty"`
	RelatedWantedAdID *string   `json:"related_wanted_ad_id,omitempty"`
	IsRead            bool      `json:"is_read"`
	CreatedAt         time.Time `json:"created_at"`
}

// Repository provides data access for notifications.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a notification repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, user_id, type, title, body, related_item_id, related_wanted_ad_id, is_read, created_at`

const insertSQL = `INSERT INTO notifications
	(id, user_id, type, title, body, related_item_id, related_wanted_ad_id, is_read, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// prepare fills ID and CreatedAt and checks the type.
func prepare(n *Notification, now time.Time) error {
	if !n.Type.IsValid() {
		return apperr.Invalid(fmt.Sprintf("invalid notification type: %s", n.Type))
	}
	if n.UserID == "" {
		return apperr.Invalid("notification user is required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = now
	n.IsRead = false
	return nil
}

func insert(ctx context.Context, ex execer, n *Notification) error {
	_, err := ex.ExecContext(ctx, insertSQL,
		n.ID, n.UserID, string(n.Type), n.Title, n.Body,
		n.RelatedItemID, n.RelatedWantedAdID, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification for %s: %w", n.UserID, err)
	}
	return nil
}

// Insert stores a single notification, filling its ID and timestamp.
func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	if err := prepare(n, db.Now()); err != nil {
		return err
	}
	return insert(ctx, r.db, n)
}

// InsertBatch stores every notification in one transaction: all rows
// are written or none are.
func (r *Repository) InsertBatch(ctx context.Context, batch []*Notification) error {
	if len(batch) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.InsertBatchTx(ctx, tx, batch)
	})
}

// InsertBatchTx stores batch inside the caller's transaction.
func (r *Repository) InsertBatchTx(ctx context.Context, tx *sql.Tx, batch []*Notification) error {
	now := db.Now()
	for _, n := range batch {
		if err := prepare(n, now); err != nil {
			return err
		}
	}
	for _, n := range batch {
		if err := insert(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}

func scanNotification(row interface{ Scan(...interface{}) error }) (*Notification, error) {
	var n Notification
	var typ string
	var item, wanted sql.NullString
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Body, &item, &wanted, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	if item.Valid {
		n.RelatedItemID = &item.String
	}
	if wanted.Valid {
		n.RelatedWantedAdID = &wanted.String
	}
	return &n, nil
}

// ListByUser returns a user's notifications newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE user_id = ?", selectColumns)
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT 200"
	return r.query(ctx, query, userID)
}

// PendingDigest returns unread notifications that have not been emailed yet,
// oldest first.
func (r *Repository) PendingDigest(ctx context.Context, userID string) ([]*Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications
		WHERE user_id = ? AND is_read = 0 AND emailed_at IS NULL
		ORDER BY created_at ASC, rowid ASC`, selectColumns)
	return r.query(ctx, query, userID)
}

// MarkEmailed records that the given notifications went out in a digest.
func (r *Repository) MarkEmailed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, db.Now())
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf("UPDATE notifications SET emailed_at = ? WHERE id IN (%s)", db.Placeholders(len(ids)))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking notifications emailed: %w", err)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) (out []*Notification, err error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	out = []*Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one of userID's notifications as read.
func (r *Repository) MarkRead(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
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

// MarkAllRead marks every unread notification of userID as read and
// returns how many changed.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// UnreadCount returns the number of unread notifications for userID.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
