package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/auth"
)

const (
	ceremonyCookie = "mela_passkey"
	ceremonyTTL    = 5 * time.Minute
)

type ceremony struct {
	data    *webauthn.SessionData
	expires time.Time
}

// passkeyHandlers runs WebAuthn registration and login ceremonies.
// In-flight ceremonies live in memory: registrations keyed by user ID,
// logins keyed by a random cookie value.
type passkeyHandlers struct {
	wan *webauthn.WebAuthn
	s   *Server
	now func() time.Time

	mu            sync.Mutex
	registrations map[string]ceremony
	logins        map[string]ceremony
}

func newPasskeyHandlers(wan *webauthn.WebAuthn, s *Server) *passkeyHandlers {
	return &passkeyHandlers{
		wan:           wan,
		s:             s,
		now:           time.Now,
		registrations: make(map[string]ceremony),
		logins:        make(map[string]ceremony),
	}
}

func (h *passkeyHandlers) put(m map[string]ceremony, key string, data *webauthn.SessionData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	for k, c := range m {
		if now.After(c.expires) {
			delete(m, k)
		}
	}
	m[key] = ceremony{data: data, expires: now.Add(ceremonyTTL)}
}

func (h *passkeyHandlers) take(m map[string]ceremony, key string) (*webauthn.SessionData, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := m[key]
	delete(m, key)
	if !ok || h.now().After(c.expires) {
		return nil, false
	}
	return c.data, true
}

var errNoCeremony = apperr.WithMessage(apperr.ErrBadRequest, "no passkey ceremony in progress")

// handleBeginRegistration starts adding a passkey to the caller's account.
func (h *passkeyHandlers) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	u := caller(r)
	creds, err := h.s.passkeys.WebAuthnCredentials(r.Context(), u.Email)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	exclude := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		exclude[i] = c.Descriptor()
	}

	creation, session, err := h.wan.BeginRegistration(auth.NewPasskeyUser(u, creds), webauthn.WithExclusions(exclude))
	if err != nil {
		h.s.writeError(w, r, apperr.Wrap(err, apperr.ErrInternal, "beginning registration"))
		return
	}
	h.put(h.registrations, u.ID, session)
	writeJSON(w, http.StatusOK, creation)
}

// handleFinishRegistration stores the new passkey. The optional name
// query parameter labels it.
func (h *passkeyHandlers) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	u := caller(r)
	session, ok := h.take(h.registrations, u.ID)
	if !ok {
		h.s.writeError(w, r, errNoCeremony)
		return
	}

	creds, err := h.s.passkeys.WebAuthnCredentials(r.Context(), u.Email)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	credential, err := h.wan.FinishRegistration(auth.NewPasskeyUser(u, creds), *session, r)
	if err != nil {
		h.s.log.Warn("passkey registration failed", zap.String("user_id", u.ID), zap.Error(err))
		h.s.writeError(w, r, apperr.WithMessage(apperr.ErrBadRequest, "registration failed"))
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if err := h.s.passkeys.Save(r.Context(), u.Email, name, credential); err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// handleBeginLogin starts a discoverable passkey login.
func (h *passkeyHandlers) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, session, err := h.wan.BeginDiscoverableLogin()
	if err != nil {
		h.s.writeError(w, r, apperr.Wrap(err, apperr.ErrInternal, "beginning passkey login"))
		return
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		h.s.writeError(w, r, apperr.Wrap(err, apperr.ErrInternal, "generating ceremony id"))
		return
	}
	id := hex.EncodeToString(b)
	h.put(h.logins, id, session)

	http.SetCookie(w, &http.Cookie{
		Name:     ceremonyCookie,
		Value:    id,
		Path:     "/auth/passkey",
		MaxAge:   int(ceremonyTTL.Seconds()),
		HttpOnly: true,
		Secure:   isHTTPS(h.s.cfg.Server.BaseURL),
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, assertion)
}

// handleFinishLogin verifies the assertion and starts a session.
func (h *passkeyHandlers) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(ceremonyCookie)
	if err != nil {
		h.s.writeError(w, r, errNoCeremony)
		return
	}
	session, ok := h.take(h.logins, cookie.Value)
	if !ok {
		h.s.writeError(w, r, errNoCeremony)
		return
	}

	// The user handle is the user ID set at registration.
	lookup := func(_, userHandle []byte) (webauthn.User, error) {
		u, err := h.s.users.GetByID(r.Context(), string(userHandle))
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		if err != nil {
			return nil, err
		}
		creds, err := h.s.passkeys.WebAuthnCredentials(r.Context(), u.Email)
		if err != nil {
			return nil, err
		}
		return auth.NewPasskeyUser(u, creds), nil
	}

	found, credential, err := h.wan.FinishPasskeyLogin(lookup, *session, r)
	if err != nil {
		h.s.log.Warn("passkey login failed", zap.Error(err))
		h.s.writeError(w, r, apperr.WithMessage(apperr.ErrUnauthorized, "login failed"))
		return
	}
	pu, ok := found.(*auth.PasskeyUser)
	if !ok {
		h.s.writeError(w, r, apperr.New("internal_error", http.StatusInternalServerError, "unexpected passkey user"))
		return
	}
	u := pu.User()

	if err := h.s.passkeys.UpdateCredential(r.Context(), credential); err != nil {
		h.s.log.Warn("updating passkey sign count", zap.Error(err))
	}
	if err := h.s.sessions.Create(r.Context(), w, u.Email); err != nil {
		h.s.writeError(w, r, err)
		return
	}

	h.s.log.Info("login success", zap.String("user_id", u.ID), zap.String("method", "passkey"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// handleListPasskeys lists the caller's passkeys.
func (s *Server) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	creds, err := s.passkeys.ListByEmail(r.Context(), caller(r).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// handleDeletePasskey removes one of the caller's passkeys.
func (s *Server) handleDeletePasskey(w http.ResponseWriter, r *http.Request) {
	if err := s.passkeys.Delete(r.Context(), r.PathValue("id"), caller(r).Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
