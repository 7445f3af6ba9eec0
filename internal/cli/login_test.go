package cli

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "mk_abc123def456", false},
		{"empty key", "", true},
		{"missing prefix", "abc123def456", true},
		{"wrong prefix", "sk_abc123", true},
		{"just prefix", "mk_", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAPIKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	var requested string
	url := apiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cli/auth", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requested = body["email"]
		_, _ = w.Write([]byte(`{"message":"If that email has an account, a login link is on its way."}`))
	})
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MELA_SERVER_URL", "")
	t.Setenv("MELA_API_KEY", "")

	out, err := executeWithInput("maria@example.com\nmk_pastedkey\n", "login", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", requested)
	assert.Contains(t, out, "a login link is on its way")
	assert.Contains(t, out, "You're logged in")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, CLIConfig{ServerURL: url, APIKey: "mk_pastedkey"}, cfg)
}

func TestLoginRejectsBadKey(t *testing.T) {
	url := apiServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"sent"}`))
	})
	t.Setenv("HOME", t.TempDir())

	_, err := executeWithInput("sk_oldkey", "login", "--server", url, "--email", "maria@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should start with mk_")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
}

func TestLoginNoInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := executeWithInput("", "login", "--server", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading input")
}
