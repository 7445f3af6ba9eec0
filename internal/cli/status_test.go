package cli

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(t *testing.T) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, runStatus(t.Context(), &out))
	return out.String()
}

func TestStatusNoAPIKey(t *testing.T) {
	isolate(t, "http://localhost:9999")
	t.Setenv("MELA_API_KEY", "")

	out := status(t)
	assert.Contains(t, out, "Server:  http://localhost:9999")
	assert.Contains(t, out, "API Key: not configured")
	assert.Contains(t, out, "mela login")
}

func TestStatusShortAPIKey(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	t.Setenv("MELA_API_KEY", "mk_ab")

	out := status(t)
	assert.Contains(t, out, "API Key: mk_ab…")
	assert.Contains(t, out, "Status:  ✗ request failed")
}

func TestStatusAuthenticated(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/me", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer mk_validkey1234567890" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","username":"maria","role":"user"}`))
	})
	isolate(t, url)
	t.Setenv("MELA_API_KEY", "mk_validkey1234567890")

	out := status(t)
	assert.Contains(t, out, "API Key: mk_validkey…")
	assert.Contains(t, out, "Status:  ✓ connected as maria (user)")
}

func TestStatusInvalidKey(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid API key"}`))
	})
	isolate(t, url)

	out := status(t)
	assert.Contains(t, out, "Status:  ✗ invalid API key")
	assert.Contains(t, out, "re-authenticate")
}
