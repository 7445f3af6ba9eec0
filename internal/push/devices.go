// Package push delivers notifications to users' mobile devices.
package push

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
)

// Platforms a device may register as.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

var ErrInvalidToken = apperr.Invalid("device token is required")

// Device is a registered push token.
type Device struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	Platform   string    `json:"platform"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Store provides data access for device tokens.
type Store struct {
	db *sql.DB
}

// NewStore creates a device store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Register records token for userID. A token already registered to
// another user moves to userID, since a device has one signed-in user.
func (s *Store) Register(ctx context.Context, userID, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	switch platform {
	case PlatformAndroid, PlatformIOS, PlatformWeb, "":
	default:
		return apperr.Invalid("platform must be one of android, ios, web")
	}

	now := db.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			platform = excluded.platform,
			last_seen_at = excluded.last_seen_at`,
		token, userID, platform, now, now,
	)
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	return nil
}

// Unregister removes token if it belongs to userID.
func (s *Store) Unregister(ctx context.Context, userID, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ? AND user_id = ?`, token, userID); err != nil {
		return fmt.Errorf("unregistering device: %w", err)
	}
	return nil
}

// Remove deletes token regardless of owner.
func (s *Store) Remove(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("removing device: %w", err)
	}
	return nil
}

// ListByUser returns a user's devices, most recently seen first.
func (s *Store) ListByUser(ctx context.Context, userID string) (devices []Device, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, user_id, platform, created_at, last_seen_at
		FROM device_tokens WHERE user_id = ?
		ORDER BY last_seen_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	devices = []Device{}
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.Token, &d.UserID, &d.Platform, &d.CreatedAt, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// TokensForUser returns the push tokens registered to userID.
func (s *Store) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	devices, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}
	return tokens, nil
}
