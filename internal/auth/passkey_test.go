package auth

import (
	"context"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/config"
	"github.com/evcraddock/mela/internal/db/dbtest"
)

func TestPasskeyStore(t *testing.T) {
	s := NewPasskeyStore(dbtest.Open(t))
	ctx := context.Background()

	cred := &webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("key-1")}
	require.NoError(t, s.Save(ctx, "Maria@Example.com", "Laptop", cred))
	require.NoError(t, s.Save(ctx, "maria@example.com", "", &webauthn.Credential{ID: []byte("cred-2")}))

	stored, err := s.ListByEmail(ctx, "maria@example.com")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Laptop", stored[0].Name)
	assert.Equal(t, "Passkey", stored[1].Name)
	assert.Equal(t, cred.ID, stored[0].Credential.ID)

	cred.Authenticator.SignCount = 7
	require.NoError(t, s.UpdateCredential(ctx, cred))
	creds, err := s.WebAuthnCredentials(ctx, "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), creds[0].Authenticator.SignCount)

	assert.ErrorIs(t, s.Delete(ctx, stored[0].ID, "joe@example.com"), ErrPasskeyNotFound)
	require.NoError(t, s.Delete(ctx, stored[0].ID, "maria@example.com"))

	stored, err = s.ListByEmail(ctx, "maria@example.com")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestPasskeyUser(t *testing.T) {
	u := &User{ID: "user-1", Email: "m@example.com", Username: "maria"}
	pu := NewPasskeyUser(u, nil)

	assert.Equal(t, []byte("user-1"), pu.WebAuthnID())
	assert.Equal(t, "m@example.com", pu.WebAuthnName())
	assert.Equal(t, "maria", pu.WebAuthnDisplayName())
	assert.Same(t, u, pu.User())

	assert.Equal(t, "m@example.com", NewPasskeyUser(&User{Email: "m@example.com"}, nil).WebAuthnDisplayName())
}

func TestNewWebAuthn(t *testing.T) {
	wan, err := NewWebAuthn(config.AuthConfig{}, "https://mela.mt:8443/app")
	require.NoError(t, err)
	assert.Equal(t, "mela.mt", wan.Config.RPID)
	assert.Equal(t, "Mela", wan.Config.RPDisplayName)
	assert.Equal(t, []string{"https://mela.mt:8443"}, wan.Config.RPOrigins)

	wan, err = NewWebAuthn(config.AuthConfig{RPID: "mela.mt", RPName: "Mela Malta"}, "http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "mela.mt", wan.Config.RPID)
}
