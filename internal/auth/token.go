package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/db"
)

const tokenExpiry = 15 * time.Minute

var ErrInvalidToken = apperr.WithMessage(apperr.ErrUnauthorized, "invalid or expired login link")

// TokenStore manages single-use magic link tokens.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenStore creates a token store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, now: dbNow}
}

func dbNow() time.Time { return db.Now() }

// Create generates a magic link token for email.
func (s *TokenStore) Create(ctx context.Context, email string) (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO auth_tokens (token, email, expires_at) VALUES (?, ?, ?)",
		token, normalizeEmail(email), s.now().Add(tokenExpiry),
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return token, nil
}

// Consume checks a token and returns its email. The token is burned in
// the same statement so two concurrent verifications cannot both pass.
func (s *TokenStore) Consume(ctx context.Context, token string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`UPDATE auth_tokens SET used = 1
		WHERE token = ? AND used = 0 AND expires_at > ?
		RETURNING email`,
		token, s.now(),
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("consuming token: %w", err)
	}
	return email, nil
}

// Cleanup removes expired and used tokens.
func (s *TokenStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM auth_tokens WHERE expires_at < ? OR used = 1", s.now(),
	); err != nil {
		return fmt.Errorf("cleaning up tokens: %w", err)
	}
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
