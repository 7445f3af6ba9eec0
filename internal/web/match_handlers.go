package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/matcher"
)

// handleMatchBrands runs a brand match synchronously and reports
// {success, brand, matchedUsersCount} or {message}. Errors are
// {"error": message}.
func (s *Server) handleMatchBrands(w http.ResponseWriter, r *http.Request) {
	var req matcher.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFunctionError(w, r, err)
		return
	}
	s.log.Info("matching request",
		zap.String("type", string(req.Type)), zap.String("item_id", req.ItemID), zap.String("wanted_ad_id", req.WantedAdID))

	res, err := s.matcher.Match(r.Context(), req)
	if err != nil {
		s.writeFunctionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
