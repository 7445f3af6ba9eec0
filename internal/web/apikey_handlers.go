package web

import (
	"net/http"
	"strconv"

	"github.com/evcraddock/mela/internal/apperr"
)

type createKeyRequest struct {
	Name string `json:"name"`
}

// handleListKeys lists the caller's API keys.
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.apiKeys.ListByUser(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// handleCreateKey issues a key. The raw key appears only in this response.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, key, err := s.apiKeys.Create(r.Context(), caller(r).ID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"key": raw, "api_key": key})
}

// handleDeleteKey revokes one of the caller's keys.
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, r, apperr.Invalid("invalid key ID"))
		return
	}
	if err := s.apiKeys.Delete(r.Context(), id, caller(r).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
