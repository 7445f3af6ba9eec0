package web

import (
	"net/http"
	"strings"

	"github.com/evcraddock/mela/internal/message"
	"github.com/evcraddock/mela/internal/report"
)

type startThreadRequest struct {
	ParticipantID string `json:"participant_id"`
	ItemID        string `json:"item_id"`
	WantedAdID    string `json:"wanted_ad_id"`
	// Body optionally sends the first message.
	Body string `json:"body"`
}

type sendRequest struct {
	Body string `json:"body"`
}

// handleListThreads lists the caller's conversations, most recent first.
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.messages.ListThreads(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

// handleStartThread opens (or reuses) a conversation with another user.
func (s *Server) handleStartThread(w http.ResponseWriter, r *http.Request) {
	var req startThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	me := caller(r).ID

	thread, err := s.messages.StartThread(r.Context(), me, req.ParticipantID,
		message.Subject{ItemID: req.ItemID, WantedAdID: req.WantedAdID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{"thread": thread}
	if strings.TrimSpace(req.Body) != "" {
		msg, err := s.messages.Send(r.Context(), thread.ID, me, req.Body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp["message"] = msg
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListMessages returns a thread's messages and marks it seen.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, me := r.PathValue("id"), caller(r).ID
	msgs, err := s.messages.ListMessages(r.Context(), id, me)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.messages.MarkSeen(r.Context(), id, me); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.messages.Send(r.Context(), r.PathValue("id"), caller(r).ID, req.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleCreateReport flags content for the moderators.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var in report.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.reports.Create(r.Context(), caller(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// handleListReports lists reports, optionally by ?status (staff).
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reports.List(r.Context(), report.Status(r.URL.Query().Get("status")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleResolveReport closes a report as Actioned or Dismissed (staff).
func (s *Server) handleResolveReport(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.reports.Resolve(r.Context(), r.PathValue("id"), caller(r).ID, report.Status(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
