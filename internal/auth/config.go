// Package auth provides accounts, magic link login, sessions, API keys,
// passkeys and the request authentication middleware.
package auth

import (
	"fmt"
	"net/url"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/mela/internal/config"
)

// NewWebAuthn configures the relying party from the server settings.
// The RP ID defaults to the base URL's host.
func NewWebAuthn(cfg config.AuthConfig, baseURL string) (*webauthn.WebAuthn, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	rpID := cfg.RPID
	if rpID == "" {
		rpID = parsed.Hostname()
	}
	rpName := cfg.RPName
	if rpName == "" {
		rpName = "Mela"
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: rpName,
		RPID:          rpID,
		RPOrigins:     []string{parsed.Scheme + "://" + parsed.Host},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}
	return wan, nil
}
