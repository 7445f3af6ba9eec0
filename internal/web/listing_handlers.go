package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/matcher"
	"github.com/evcraddock/mela/internal/wanted"
)

type statusRequest struct {
	Status string `json:"status"`
}

// enqueueMatch schedules a brand match for a new record. A full queue
// only costs the notifications; the record itself is already saved and
// the dispatcher records the drop.
func (s *Server) enqueueMatch(req matcher.Request) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Enqueue(req)
}

// handleListListings lists listings with optional filters.
func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(q, "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := listing.ListOptions{
		Status:   market.ListingStatus(q.Get("status")),
		Category: market.Category(q.Get("category")),
		Locality: q.Get("locality"),
		Query:    q.Get("q"),
		UserID:   q.Get("user_id"),
		School:   q.Get("school"),
		Limit:    limit,
		Offset:   offset,
	}
	if opts.Status != "" && !opts.Status.IsValid() {
		s.writeError(w, r, apperr.Invalid("invalid status: "+string(opts.Status)))
		return
	}
	if opts.Category != "" && !opts.Category.IsValid() {
		s.writeError(w, r, apperr.Invalid("invalid category: "+string(opts.Category)))
		return
	}

	listings, err := s.listings.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// handleCreateListing saves a listing and queues a wishlist match.
func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var in listing.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.listings.Create(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.enqueueMatch(matcher.Request{Type: matcher.SourceListing, ItemID: l.ID})
	writeJSON(w, http.StatusCreated, l)
}

// handleGetListing returns a listing, counting the view unless the
// owner is looking.
func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.listings.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if l.UserID != callerID(r) {
		if err := s.listings.RecordView(r.Context(), l.ID); err != nil {
			s.log.Warn("recording view", zap.String("listing_id", l.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, l)
}

// handleUpdateListing applies owner changes to a listing.
func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	var in listing.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.listings.Update(r.Context(), r.PathValue("id"), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleSetListingStatus marks a listing reserved, sold, hidden or active.
func (s *Server) handleSetListingStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.listings.SetStatus(r.Context(), id, caller(r).ID, market.ListingStatus(req.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.listings.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleDeleteListing soft-deletes a listing.
func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := s.listings.Delete(r.Context(), r.PathValue("id"), caller(r).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.listings.AddFavorite(r.Context(), caller(r).ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.listings.RemoveFavorite(r.Context(), caller(r).ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListFavorites lists the caller's favorited listings.
func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	listings, err := s.listings.ListFavorites(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// handleListWanted lists active wanted ads.
func (s *Server) handleListWanted(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := wanted.ListOptions{
		Category: market.Category(q.Get("category")),
		Locality: q.Get("locality"),
		Query:    q.Get("q"),
		UserID:   q.Get("user_id"),
		Limit:    limit,
	}
	if opts.Category != "" && !opts.Category.IsValid() {
		s.writeError(w, r, apperr.Invalid("invalid category: "+string(opts.Category)))
		return
	}

	ads, err := s.wanted.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ads)
}

// handleCreateWanted saves a wanted ad and queues an owned-brand match.
func (s *Server) handleCreateWanted(w http.ResponseWriter, r *http.Request) {
	var in wanted.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	ad, err := s.wanted.Create(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.enqueueMatch(matcher.Request{Type: matcher.SourceWanted, WantedAdID: ad.ID})
	writeJSON(w, http.StatusCreated, ad)
}

func (s *Server) handleGetWanted(w http.ResponseWriter, r *http.Request) {
	ad, err := s.wanted.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

// handleSetWantedStatus marks a wanted ad fulfilled, hidden or deleted.
func (s *Server) handleSetWantedStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.wanted.SetStatus(r.Context(), id, caller(r).ID, market.WantedStatus(req.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}
	ad, err := s.wanted.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}
