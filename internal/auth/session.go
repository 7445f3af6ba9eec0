package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/evcraddock/mela/internal/apperr"
)

const (
	sessionExpiry = 30 * 24 * time.Hour
	// CookieName is the session cookie.
	CookieName = "mela_session"
)

var ErrNoSession = apperr.WithMessage(apperr.ErrUnauthorized, "not signed in")

// SessionStore manages browser sessions.
type SessionStore struct {
	db     *sql.DB
	secure bool
	now    func() time.Time
}

// NewSessionStore creates a session store. secure marks cookies
// Secure and should be set when serving over HTTPS.
func NewSessionStore(db *sql.DB, secure bool) *SessionStore {
	return &SessionStore{db: db, secure: secure, now: dbNow}
}

// Create starts a session for email and sets the cookie.
func (s *SessionStore) Create(ctx context.Context, w http.ResponseWriter, email string) error {
	id, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("generating session ID: %w", err)
	}

	expiresAt := s.now().Add(sessionExpiry)
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, email, expires_at) VALUES (?, ?, ?)",
		id, normalizeEmail(email), expiresAt,
	); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Validate returns the email of the session in r's cookie.
func (s *SessionStore) Validate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}

	var email string
	var expiresAt time.Time
	err = s.db.QueryRowContext(r.Context(),
		"SELECT email, expires_at FROM sessions WHERE id = ?", cookie.Value,
	).Scan(&email, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("querying session: %w", err)
	}

	if s.now().After(expiresAt) {
		if _, err := s.db.ExecContext(r.Context(), "DELETE FROM sessions WHERE id = ?", cookie.Value); err != nil {
			return "", fmt.Errorf("deleting expired session: %w", err)
		}
		return "", ErrNoSession
	}
	return email, nil
}

// Destroy ends the session in r and clears the cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}

	if _, err := s.db.ExecContext(r.Context(), "DELETE FROM sessions WHERE id = ?", cookie.Value); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// DestroyAll ends every session of email.
func (s *SessionStore) DestroyAll(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE email = ?", normalizeEmail(email)); err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}
	return nil
}

// Cleanup removes expired sessions.
func (s *SessionStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", s.now()); err != nil {
		return fmt.Errorf("cleaning up sessions: %w", err)
	}
	return nil
}
