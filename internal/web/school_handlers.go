package web

import (
	"net/http"

	"github.com/evcraddock/mela/internal/review"
	"github.com/evcraddock/mela/internal/school"
)

// handleListSchools lists schools by name, filtered by ?city=.
func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := s.schools.List(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schools)
}

func (s *Server) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	sc, err := s.schools.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	var in school.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sc, err := s.schools.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

type reviewsResponse struct {
	review.Summary
	Reviews []*review.Review `json:"reviews"`
}

// handleListReviews returns a member's rating summary and reviews.
func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.reviews.Summarize(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.reviews.ListFor(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewsResponse{Summary: sum, Reviews: list})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var in review.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rv, err := s.reviews.Create(r.Context(), caller(r).ID, r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
