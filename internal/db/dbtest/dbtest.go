// Package dbtest provides temp-dir databases and fixtures for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/db"
)

// Open creates a migrated database in t's temp dir, closed on cleanup.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open test db")
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return d
}

// User inserts a bare user row and returns its id. The username is
// derived from the email's local part.
func User(t *testing.T, d *sql.DB, email string) string {
	t.Helper()
	id := uuid.NewString()
	username := strings.SplitN(email, "@", 2)[0]
	now := db.Now()
	_, err := d.Exec(
		`INSERT INTO users (id, email, username, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, username, username, now, now,
	)
	require.NoError(t, err, "insert user %s", email)
	return id
}
