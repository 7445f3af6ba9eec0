package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/auth"
)

// loginSentMessage is shown whether or not the email is registered,
// so the endpoint cannot be used to enumerate accounts.
const loginSentMessage = "If that email is registered, a login link has been sent. Check your inbox."

type emailRequest struct {
	Email string `json:"email"`
}

// handleSignup creates an account and emails a login link.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.users.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("signup", zap.String("user_id", u.ID))

	if err := s.sendLoginLink(r.Context(), u.Email, s.mailer.SendMagicLink); err != nil {
		s.log.Error("sending signup link", zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    u,
		"message": "Account created. Check your email for a login link.",
	})
}

// handleLogin emails a browser login link to a registered address.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.requestLink(w, r, s.mailer.SendMagicLink)
}

// handleCLILogin emails a link that finishes with an API key for the CLI.
func (s *Server) handleCLILogin(w http.ResponseWriter, r *http.Request) {
	s.requestLink(w, r, s.mailer.SendCLIMagicLink)
}

func (s *Server) requestLink(w http.ResponseWriter, r *http.Request, send func(to, token string) (string, error)) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		s.writeError(w, r, apperr.Invalid("Email is required"))
		return
	}

	_, err := s.users.GetByEmail(r.Context(), email)
	switch {
	case err == nil:
		if err := s.sendLoginLink(r.Context(), email, send); err != nil {
			s.log.Error("sending login link", zap.Error(err))
		}
	case !errors.Is(err, auth.ErrUserNotFound):
		s.log.Error("looking up login email", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": loginSentMessage})
}

func (s *Server) sendLoginLink(ctx context.Context, email string, send func(to, token string) (string, error)) error {
	token, err := s.tokens.Create(ctx, email)
	if err != nil {
		return err
	}
	_, err = send(email, token)
	return err
}

// redeem consumes a login token and returns its verified user.
func (s *Server) redeem(r *http.Request) (*auth.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	email, err := s.tokens.Consume(r.Context(), token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(r.Context(), email)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !u.IsVerified {
		if err := s.users.MarkVerified(r.Context(), u.ID); err != nil {
			return nil, err
		}
		u.IsVerified = true
	}
	return u, nil
}

// handleVerify redeems a magic link and starts a session.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	u, err := s.redeem(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.Create(r.Context(), w, u.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("login success", zap.String("user_id", u.ID), zap.String("method", "magic_link"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// handleCLIVerify redeems a CLI magic link and issues an API key.
func (s *Server) handleCLIVerify(w http.ResponseWriter, r *http.Request) {
	u, err := s.redeem(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, key, err := s.apiKeys.Create(r.Context(), u.ID, "CLI")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("login success", zap.String("user_id", u.ID), zap.String("method", "cli"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":     raw,
		"api_key": key,
		"message": "Paste this key into the mela CLI. It will not be shown again.",
	})
}

// handleLogout ends the browser session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		s.log.Error("destroying session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
