package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
	"github.com/evcraddock/mela/internal/notification"
)

var (
	ErrNotFound       = apperr.NotFound("Thread not found")
	ErrNotParticipant = apperr.Forbidden("you are not part of this conversation")
)

// Notifier records in-app notifications for new messages within the
// transaction that stores the message.
type Notifier interface {
	InsertBatchTx(ctx context.Context, tx *sql.Tx, batch []*notification.Notification) error
}

// Repository provides data access for threads and messages.
type Repository struct {
	db       *sql.DB
	notifier Notifier
}

// NewRepository creates a message repository. A nil notifier skips
// message notifications.
func NewRepository(db *sql.DB, notifier Notifier) *Repository {
	return &Repository{db: db, notifier: notifier}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// StartThread returns the thread between starter and other about subject,
// creating it when none exists.
func (r *Repository) StartThread(ctx context.Context, starter, other string, subject Subject) (*Thread, error) {
	if other == "" || starter == other {
		return nil, apperr.Invalid("a conversation needs another participant")
	}

	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT t.id FROM message_threads t
		JOIN thread_participants a ON a.thread_id = t.id AND a.user_id = ?
		JOIN thread_participants b ON b.thread_id = t.id AND b.user_id = ?
		WHERE t.item_id IS ? AND t.wanted_ad_id IS ?
		ORDER BY t.created_at LIMIT 1`,
		starter, other, nullable(subject.ItemID), nullable(subject.WantedAdID),
	).Scan(&id)
	if err == nil {
		return r.getThread(ctx, id, starter)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding thread: %w", err)
	}

	id = uuid.NewString()
	now := db.Now()
	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_threads (id, item_id, wanted_ad_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, nullable(subject.ItemID), nullable(subject.WantedAdID), now, now,
		); err != nil {
			return fmt.Errorf("inserting thread: %w", err)
		}
		for _, u := range []string{starter, other} {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO thread_participants (thread_id, user_id) VALUES (?, ?)", id, u,
			); err != nil {
				return fmt.Errorf("adding participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("participant or subject not found")
		}
		return nil, err
	}

	return r.getThread(ctx, id, starter)
}

// Send posts body to a thread. Only participants may send.
func (r *Repository) Send(ctx context.Context, threadID, senderID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Invalid("message body is required")
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return nil, apperr.Invalid(fmt.Sprintf("message must be at most %d characters", maxBodyLen))
	}

	thread, err := r.getThread(ctx, threadID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: db.Now(),
	}

	var batch []*notification.Notification
	if r.notifier != nil {
		for _, p := range thread.Participants {
			if p == senderID {
				continue
			}
			batch = append(batch, &notification.Notification{
				UserID:            p,
				Type:              notification.TypeMessage,
				Title:             "New message",
				Body:              preview(body),
				RelatedItemID:     thread.ItemID,
				RelatedWantedAdID: thread.WantedAdID,
			})
		}
	}

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages (id, thread_id, sender_id, body, created_at) VALUES (?, ?, ?, ?, ?)",
			msg.ID, msg.ThreadID, msg.SenderID, msg.Body, msg.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE message_threads SET updated_at = ? WHERE id = ?", msg.CreatedAt, threadID,
		); err != nil {
			return fmt.Errorf("touching thread: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE thread_participants SET last_seen_at = ? WHERE thread_id = ? AND user_id = ?",
			msg.CreatedAt, threadID, senderID,
		); err != nil {
			return fmt.Errorf("updating sender seen: %w", err)
		}
		if len(batch) > 0 {
			if err := r.notifier.InsertBatchTx(ctx, tx, batch); err != nil {
				return fmt.Errorf("notifying participants: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// ListThreads returns userID's threads, most recent activity first,
// with unread counts.
func (r *Repository) ListThreads(ctx context.Context, userID string) (threads []*Thread, err error) {
	rows, err := r.db.QueryContext(ctx, threadQuery+" ORDER BY t.updated_at DESC, t.rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	threads = []*Thread{}
	byID := map[string]*Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}

	if err := r.fillParticipants(ctx, byID); err != nil {
		return nil, err
	}
	return threads, nil
}

// ListMessages returns a thread's messages oldest first.
func (r *Repository) ListMessages(ctx context.Context, threadID, userID string) (msgs []*Message, err error) {
	if _, err := r.getThread(ctx, threadID, userID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, thread_id, sender_id, body, created_at FROM messages
		WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	msgs = []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// MarkSeen records that userID has read everything in a thread.
func (r *Repository) MarkSeen(ctx context.Context, threadID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE thread_participants SET last_seen_at = ? WHERE thread_id = ? AND user_id = ?",
		db.Now(), threadID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking thread seen: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return r.missingOrForbidden(ctx, threadID)
	}
	return nil
}

const threadQuery = `SELECT t.id, t.item_id, t.wanted_ad_id, t.created_at, t.updated_at,
	COALESCE((SELECT m.body FROM messages m WHERE m.thread_id = t.id
		ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1), ''),
	(SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id AND m.sender_id <> p.user_id
		AND (p.last_seen_at IS NULL OR m.created_at > p.last_seen_at))
	FROM message_threads t
	JOIN thread_participants p ON p.thread_id = t.id AND p.user_id = ?`

func scanThread(row interface{ Scan(...interface{}) error }) (*Thread, error) {
	var t Thread
	var item, wanted sql.NullString
	if err := row.Scan(&t.ID, &item, &wanted, &t.CreatedAt, &t.UpdatedAt, &t.LastMessage, &t.UnreadCount); err != nil {
		return nil, err
	}
	if item.Valid {
		t.ItemID = &item.String
	}
	if wanted.Valid {
		t.WantedAdID = &wanted.String
	}
	return &t, nil
}

// getThread loads a thread as seen by userID.
func (r *Repository) getThread(ctx context.Context, threadID, userID string) (*Thread, error) {
	t, err := scanThread(r.db.QueryRowContext(ctx, threadQuery+" WHERE t.id = ?", userID, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrForbidden(ctx, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread %s: %w", threadID, err)
	}
	if err := r.fillParticipants(ctx, map[string]*Thread{t.ID: t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repository) missingOrForbidden(ctx context.Context, threadID string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM message_threads WHERE id = ?", threadID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking thread: %w", err)
	}
	return ErrNotParticipant
}

func (r *Repository) fillParticipants(ctx context.Context, byID map[string]*Thread) (err error) {
	if len(byID) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(byID))
	for id := range byID {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT thread_id, user_id FROM thread_participants WHERE thread_id IN (%s) ORDER BY rowid",
		db.Placeholders(len(args))), args...)
	if err != nil {
		return fmt.Errorf("listing participants: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var threadID, userID string
		if err := rows.Scan(&threadID, &userID); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		if t, ok := byID[threadID]; ok {
			t.Participants = append(t.Participants, userID)
		}
	}
	return rows.Err()
}
