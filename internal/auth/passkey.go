package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/mela/internal/apperr"
)

var ErrPasskeyNotFound = apperr.NotFound("passkey not found")

// PasskeyUser adapts a User to webauthn.User. The user handle is the
// user ID, so discoverable logins resolve straight to the account.
type PasskeyUser struct {
	user        *User
	credentials []webauthn.Credential
}

// NewPasskeyUser creates a PasskeyUser.
func NewPasskeyUser(u *User, credentials []webauthn.Credential) *PasskeyUser {
	return &PasskeyUser{user: u, credentials: credentials}
}

// User returns the wrapped user.
func (u *PasskeyUser) User() *User { return u.user }

// WebAuthnID returns the user ID.
func (u *PasskeyUser) WebAuthnID() []byte { return []byte(u.user.ID) }

// WebAuthnName returns the email.
func (u *PasskeyUser) WebAuthnName() string { return u.user.Email }

// WebAuthnDisplayName prefers the username.
func (u *PasskeyUser) WebAuthnDisplayName() string {
	if u.user.Username != "" {
		return u.user.Username
	}
	return u.user.Email
}

// WebAuthnCredentials returns the stored credentials.
func (u *PasskeyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// StoredCredential is a passkey with its metadata.
type StoredCredential struct {
	ID         string              `json:"id"`
	Email      string              `json:"email"`
	Name       string              `json:"name"`
	CreatedAt  time.Time           `json:"created_at"`
	Credential webauthn.Credential `json:"-"`
}

// PasskeyStore manages passkey credentials.
type PasskeyStore struct {
	db *sql.DB
}

// NewPasskeyStore creates a passkey store.
func NewPasskeyStore(db *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: db}
}

// Save stores a credential for email.
func (s *PasskeyStore) Save(ctx context.Context, email, name string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Passkey"
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO passkey_credentials (id, email, name, credential_json, created_at) VALUES (?, ?, ?, ?, ?)",
		fmt.Sprintf("%x", cred.ID), normalizeEmail(email), name, string(data), dbNow(),
	); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}

// ListByEmail returns email's credentials, oldest first.
func (s *PasskeyStore) ListByEmail(ctx context.Context, email string) (creds []StoredCredential, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, name, credential_json, created_at
		FROM passkey_credentials WHERE email = ? ORDER BY created_at, rowid`,
		normalizeEmail(email),
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	creds = []StoredCredential{}
	for rows.Next() {
		var sc StoredCredential
		var data string
		if err := rows.Scan(&sc.ID, &sc.Email, &sc.Name, &data, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential: %w", err)
		}
		creds = append(creds, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return creds, nil
}

// WebAuthnCredentials returns just the credentials for email.
func (s *PasskeyStore) WebAuthnCredentials(ctx context.Context, email string) ([]webauthn.Credential, error) {
	stored, err := s.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	creds := make([]webauthn.Credential, len(stored))
	for i, sc := range stored {
		creds[i] = sc.Credential
	}
	return creds, nil
}

// UpdateCredential stores the credential's refreshed sign count.
func (s *PasskeyStore) UpdateCredential(ctx context.Context, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE passkey_credentials SET credential_json = ? WHERE id = ?",
		string(data), fmt.Sprintf("%x", cred.ID),
	); err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	return nil
}

// Delete removes one of email's credentials.
func (s *PasskeyStore) Delete(ctx context.Context, id, email string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM passkey_credentials WHERE id = ? AND email = ?", id, normalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrPasskeyNotFound
	}
	return nil
}
