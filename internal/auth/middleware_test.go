package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/db/dbtest"
)

type authFixture struct {
	auth     *Authenticator
	users    *UserStore
	sessions *SessionStore
	apiKeys  *APIKeyStore
	user     *User
	key      string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	d := dbtest.Open(t)
	f := &authFixture{
		users:    NewUserStore(d, "admin@mela.mt"),
		sessions: NewSessionStore(d, false),
		apiKeys:  NewAPIKeyStore(d),
	}
	f.auth = NewAuthenticator(f.users, f.sessions, f.apiKeys, nil)

	var err error
	f.user, err = f.users.Create(context.Background(), SignupInput{Email: "m@example.com", Username: "maria"})
	require.NoError(t, err)
	f.key, _, err = f.apiKeys.Create(context.Background(), f.user.ID, "test")
	require.NoError(t, err)
	return f
}

func whoami(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFrom(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(u.Username))
}

func TestMiddlewareBearer(t *testing.T) {
	f := newAuthFixture(t)
	h := f.auth.Middleware(http.HandlerFunc(whoami))

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+f.key)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "maria", w.Body.String())
}

func TestMiddlewareSession(t *testing.T) {
	f := newAuthFixture(t)
	rec := httptest.NewRecorder()
	require.NoError(t, f.sessions.Create(context.Background(), rec, f.user.Email))

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.AddCookie(sessionCookie(t, rec))
	w := httptest.NewRecorder()
	f.auth.Middleware(http.HandlerFunc(whoami)).ServeHTTP(w, r)

	assert.Equal(t, "maria", w.Body.String())
}

func TestMiddlewareAnonymous(t *testing.T) {
	f := newAuthFixture(t)
	w := httptest.NewRecorder()
	f.auth.Middleware(http.HandlerFunc(whoami)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestMiddlewareInvalidKey(t *testing.T) {
	f := newAuthFixture(t)
	h := f.auth.Middleware(http.HandlerFunc(whoami))

	for _, header := range []string{"Bearer mk_wrong", "Basic abc"} {
		r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		r.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "invalid API key", body["error"])
	}
}

func TestMiddlewareRateLimitsBadKeys(t *testing.T) {
	f := newAuthFixture(t)
	h := f.auth.Middleware(http.HandlerFunc(whoami))

	send := func(key string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		r.Header.Set("Authorization", "Bearer "+key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusUnauthorized, send("mk_bad"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("mk_bad"))
	assert.Equal(t, http.StatusTooManyRequests, send(f.key), "blocked even with a valid key")
}

func TestRequire(t *testing.T) {
	f := newAuthFixture(t)
	h := f.auth.Require(http.HandlerFunc(whoami))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+f.key)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	f := newAuthFixture(t)
	h := f.auth.RequireRole(http.HandlerFunc(whoami), RoleModerator)

	call := func() int {
		r := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
		r.Header.Set("Authorization", "Bearer "+f.key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, call())

	_, err := f.users.SetRole(context.Background(), f.user.ID, RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call())
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Fail("ip")
	assert.False(t, rl.Blocked("ip"))
	rl.Fail("ip")
	assert.True(t, rl.Blocked("ip"))
	assert.False(t, rl.Blocked("other"))

	now = now.Add(61 * time.Second)
	assert.False(t, rl.Blocked("ip"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(r))
	r.RemoteAddr = "weird"
	assert.Equal(t, "weird", ClientIP(r))
}
