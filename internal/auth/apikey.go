package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/mela/internal/apperr"
)

const (
	apiKeyBytes = 32
	// APIKeyPrefix starts every raw key.
	APIKeyPrefix = "mk_"
)

var (
	ErrInvalidAPIKey  = apperr.WithMessage(apperr.ErrUnauthorized, "invalid API key")
	ErrAPIKeyNotFound = apperr.NotFound("API key not found")
)

// APIKey is the stored representation of an API key. The raw key is
// never stored.
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages users' API keys.
type APIKeyStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db, now: dbNow}
}

// Create issues a key for userID. The raw key is returned once.
func (s *APIKeyStore) Create(ctx context.Context, userID, name string) (string, *APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "API key"
	}

	secret, err := randomHex(apiKeyBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}
	raw := APIKeyPrefix + secret
	prefix := raw[:len(APIKeyPrefix)+8]
	now := s.now()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO api_keys (user_id, name, key_prefix, key_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, name, prefix, hashAPIKey(raw), now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	return raw, &APIKey{ID: id, UserID: userID, Name: name, KeyPrefix: prefix, CreatedAt: now}, nil
}

// ListByUser returns userID's keys, newest first.
func (s *APIKeyStore) ListByUser(ctx context.Context, userID string) (keys []APIKey, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, key_prefix, created_at, last_used_at
		FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	keys = []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keys: %w", err)
	}
	return keys, nil
}

// Delete revokes one of userID's keys.
func (s *APIKeyStore) Delete(ctx context.Context, id int64, userID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// Authenticate resolves a raw key to its owner and records the use.
func (s *APIKeyStore) Authenticate(ctx context.Context, rawKey string) (string, error) {
	if !strings.HasPrefix(rawKey, APIKeyPrefix) {
		return "", ErrInvalidAPIKey
	}

	var userID string
	err := s.db.QueryRowContext(ctx,
		"UPDATE api_keys SET last_used_at = ? WHERE key_hash = ? RETURNING user_id",
		s.now(), hashAPIKey(rawKey),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("validating key: %w", err)
	}
	return userID, nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
