package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/db/dbtest"
)

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessionStore(dbtest.Open(t), true)
	ctx := context.Background()

	w := httptest.NewRecorder()
	require.NoError(t, s.Create(ctx, w, "Maria@Example.com"))
	c := sessionCookie(t, w)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	email, err := s.Validate(r)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", email)

	w2 := httptest.NewRecorder()
	require.NoError(t, s.Destroy(w2, r))
	assert.Equal(t, -1, sessionCookie(t, w2).MaxAge)

	_, err = s.Validate(r)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionMissingCookie(t *testing.T) {
	s := NewSessionStore(dbtest.Open(t), false)
	_, err := s.Validate(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, s.Destroy(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestSessionExpiry(t *testing.T) {
	s := NewSessionStore(dbtest.Open(t), false)
	now := time.Now().UTC()
	s.now = func() time.Time { return now }

	w := httptest.NewRecorder()
	require.NoError(t, s.Create(context.Background(), w, "m@example.com"))

	s.now = func() time.Time { return now.Add(31 * 24 * time.Hour) }
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(sessionCookie(t, w))
	_, err := s.Validate(r)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDestroyAll(t *testing.T) {
	s := NewSessionStore(dbtest.Open(t), false)
	ctx := context.Background()

	var cookies []*http.Cookie
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		require.NoError(t, s.Create(ctx, w, "m@example.com"))
		cookies = append(cookies, sessionCookie(t, w))
	}
	require.NoError(t, s.DestroyAll(ctx, "M@example.com"))

	for _, c := range cookies {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(c)
		_, err := s.Validate(r)
		assert.ErrorIs(t, err, ErrNoSession)
	}
	require.NoError(t, s.Cleanup(ctx))
}
