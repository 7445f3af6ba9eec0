package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/brand"
	"github.com/evcraddock/mela/internal/market"
)

// handleGetMe returns the caller's profile.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, caller(r))
}

// handleUpdateMe applies profile changes.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in auth.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.UpdateProfile(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleGetBrands returns the caller's owned and wishlist brands.
func (s *Server) handleGetBrands(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.brands.Get(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handleSetBrands replaces both brand sets.
func (s *Server) handleSetBrands(w http.ResponseWriter, r *http.Request) {
	var prefs brand.Preferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.brands.Set(r.Context(), caller(r).ID, prefs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleBrandCatalog lists the known brands.
func (s *Server) handleBrandCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"brands": brand.Catalog()})
}

// handleLocalities lists the known localities.
func (s *Server) handleLocalities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"localities": market.Localities()})
}

type deviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// handleListDevices lists the caller's push devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListByUser(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleRegisterDevice records a push token for the caller.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.devices.Register(r.Context(), caller(r).ID, req.Token, req.Platform); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnregisterDevice forgets one of the caller's push tokens.
func (s *Server) handleUnregisterDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.Unregister(r.Context(), caller(r).ID, r.PathValue("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListUsers lists every account (admin).
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type roleRequest struct {
	Role auth.Role `json:"role"`
}

// handleSetRole changes a user's role (admin).
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.SetRole(r.Context(), r.PathValue("id"), req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("role changed", zap.String("user_id", u.ID), zap.String("role", string(u.Role)), zap.String("by", caller(r).ID))
	writeJSON(w, http.StatusOK, u)
}

// handleDeleteUser removes an account and everything it owns (admin).
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == caller(r).ID {
		s.writeError(w, r, apperr.Invalid("cannot delete your own account"))
		return
	}
	target, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.DestroyAll(r.Context(), target.Email); err != nil {
		s.log.Warn("ending sessions of deleted user", zap.Error(err))
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("by", caller(r).ID))
	w.WriteHeader(http.StatusNoContent)
}
