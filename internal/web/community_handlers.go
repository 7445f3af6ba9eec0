package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/event"
	"github.com/evcraddock/mela/internal/garagesale"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/services"
)

// handleListEvents lists upcoming events, soonest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.events.ListUpcoming(r.Context(), time.Now().UTC(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in event.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.events.Create(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleEventAttendees lists attendee IDs. Only the host may see them.
func (s *Server) handleEventAttendees(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if e.HostUserID != caller(r).ID {
		s.writeError(w, r, event.ErrNotHost)
		return
	}
	ids, err := s.events.Attendees(r.Context(), e.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"attendees": ids})
}

func (s *Server) handleRSVP(w http.ResponseWriter, r *http.Request) {
	s.changeRSVP(w, r, s.events.RSVP)
}

func (s *Server) handleCancelRSVP(w http.ResponseWriter, r *http.Request) {
	s.changeRSVP(w, r, s.events.CancelRSVP)
}

func (s *Server) changeRSVP(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, eventID, userID string) error) {
	id := r.PathValue("id")
	if err := change(r.Context(), id, caller(r).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.events.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleCancelEvent cancels an event and tells everyone who RSVP'd.
func (s *Server) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	host := caller(r)
	e, err := s.events.Cancel(r.Context(), r.PathValue("id"), host.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	attendees, err := s.events.Attendees(r.Context(), e.ID)
	if err != nil {
		s.log.Warn("loading attendees of cancelled event", zap.String("event_id", e.ID), zap.Error(err))
	}
	batch := make([]*notification.Notification, 0, len(attendees))
	for _, id := range attendees {
		if id == host.ID {
			continue
		}
		batch = append(batch, &notification.Notification{
			UserID: id,
			Type:   notification.TypeEvent,
			Title:  "Event cancelled",
			Body:   fmt.Sprintf("%s on %s has been cancelled.", e.Title, e.DateStart.Format("2 Jan 2006")),
		})
	}
	if len(batch) > 0 {
		if err := s.notifications.InsertBatch(r.Context(), batch); err != nil {
			s.log.Warn("notifying attendees", zap.String("event_id", e.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, e)
}

// handleListServices lists active services, newest first.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	list, err := s.services.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var in services.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	svc, err := s.services.Create(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.services.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleSetServiceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.services.SetStatus(r.Context(), id, caller(r).ID, market.ServiceStatus(req.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}
	svc, err := s.services.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

type recommendRequest struct {
	Query string `json:"query"`
}

// handleRecommend suggests services for a free-text query.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFunctionError(w, r, err)
		return
	}
	text, err := s.services.Recommend(r.Context(), req.Query)
	if err != nil {
		s.writeFunctionError(w, r, err)
		return
	}
	s.log.Info("service recommendation generated", zap.String("query", req.Query))
	writeJSON(w, http.StatusOK, map[string]string{"recommendation": text})
}

// handleListSales lists garage sales opening on or after ?from
// (YYYY-MM-DD, default today). from=all lists past sales too.
func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	switch {
	case from == "":
		from = time.Now().UTC().Format(time.DateOnly)
	case from == "all":
		from = ""
	default:
		if _, err := time.Parse(time.DateOnly, from); err != nil {
			s.writeError(w, r, apperr.Invalid("from must be a date in YYYY-MM-DD format"))
			return
		}
	}

	sales, err := s.sales.List(r.Context(), from)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var in garagesale.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sale, err := s.sales.Create(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := s.sales.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// handleAddSaleItem features an item on the organiser's sale.
func (s *Server) handleAddSaleItem(w http.ResponseWriter, r *http.Request) {
	var in garagesale.ItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.sales.AddFeaturedItem(r.Context(), r.PathValue("id"), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
