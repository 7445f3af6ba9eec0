package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/email"
)

// handleListNotifications lists the caller's notifications, newest
// first. ?unread=true limits the list to unread ones.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread")
	if unread != "" && unread != "true" && unread != "false" {
		s.writeError(w, r, apperr.Invalid("unread must be true or false"))
		return
	}
	notes, err := s.notifications.ListByUser(r.Context(), caller(r).ID, unread == "true")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), r.PathValue("id"), caller(r).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkAllRead(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.UnreadCount(r.Context(), caller(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

type digestRequest struct {
	DryRun bool `json:"dry_run"`
}

type digestResponse struct {
	Sent    bool   `json:"sent"`
	Count   int    `json:"count"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// handleDigest emails the caller their unread notifications that have
// not been emailed yet. dry_run returns the message without sending.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	var req digestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u := caller(r)

	pending, err := s.notifications.PendingDigest(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(pending) == 0 {
		writeJSON(w, http.StatusOK, digestResponse{})
		return
	}

	resp := digestResponse{
		Count:   len(pending),
		To:      u.Email,
		Subject: email.DigestSubject(len(pending)),
		Body:    email.FormatDigest(u.Name, pending, s.cfg.Server.BaseURL),
	}
	if req.DryRun {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if !s.cfg.SMTP.Configured() {
		s.writeError(w, r, apperr.WithMessage(apperr.ErrUnavailable, "SMTP is not configured"))
		return
	}
	if err := s.sendMail(s.cfg.SMTP, []string{u.Email}, resp.Subject, resp.Body); err != nil {
		s.writeError(w, r, apperr.Wrap(err, apperr.ErrUnavailable, "sending digest failed"))
		return
	}

	ids := make([]string, len(pending))
	for i, n := range pending {
		ids[i] = n.ID
	}
	if err := s.notifications.MarkEmailed(r.Context(), ids); err != nil {
		s.log.Error("marking digest emailed", zap.String("user_id", u.ID), zap.Error(err))
	}

	resp.Sent = true
	writeJSON(w, http.StatusOK, resp)
}
