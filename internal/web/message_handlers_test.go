package web

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/message"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/report"
)

func TestThreads(t *testing.T) {
	ts := newTestServer(t)
	seller, sellerKey := ts.member("maria@example.com", "maria")
	_, buyerKey := ts.member("joe@example.com", "joe")
	_, strangerKey := ts.member("ann@example.com", "ann")
	l := ts.createListing(sellerKey)

	w := ts.do(http.MethodPost, "/api/threads", buyerKey, map[string]string{
		"participant_id": seller.ID,
		"item_id":        l.ID,
		"body":           "Is the dress still available?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started struct {
		Thread  message.Thread  `json:"thread"`
		Message message.Message `json:"message"`
	}
	decode(t, w, &started)
	require.NotNil(t, started.Thread.ItemID)
	assert.Equal(t, l.ID, *started.Thread.ItemID)
	assert.Equal(t, "Is the dress still available?", started.Message.Body)

	// Starting again reuses the conversation.
	w = ts.do(http.MethodPost, "/api/threads", buyerKey, map[string]string{"participant_id": seller.ID, "item_id": l.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	var again struct {
		Thread  message.Thread   `json:"thread"`
		Message *message.Message `json:"message"`
	}
	decode(t, w, &again)
	assert.Equal(t, started.Thread.ID, again.Thread.ID)
	assert.Nil(t, again.Message)

	w = ts.do(http.MethodGet, "/api/notifications", sellerKey, nil)
	var notes []notification.Notification
	decode(t, w, &notes)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeMessage, notes[0].Type)

	w = ts.do(http.MethodGet, "/api/threads", sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var threads []message.Thread
	decode(t, w, &threads)
	require.Len(t, threads, 1)
	assert.Equal(t, 1, threads[0].UnreadCount)

	path := "/api/threads/" + started.Thread.ID + "/messages"
	w = ts.do(http.MethodGet, path, sellerKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []message.Message
	decode(t, w, &msgs)
	assert.Len(t, msgs, 1)

	w = ts.do(http.MethodGet, "/api/threads", sellerKey, nil)
	decode(t, w, &threads)
	assert.Equal(t, 0, threads[0].UnreadCount)

	w = ts.do(http.MethodPost, path, sellerKey, map[string]string{"body": "Yes, it is."})
	assert.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, path, strangerKey, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, path, strangerKey, map[string]string{"body": "hi"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, path, sellerKey, map[string]string{"body": "  "}).Code)
}

func TestStartThreadWithSelf(t *testing.T) {
	ts := newTestServer(t)
	u, key := ts.member("maria@example.com", "maria")

	w := ts.do(http.MethodPost, "/api/threads", key, map[string]string{"participant_id": u.ID})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReports(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")
	mod, _ := ts.member("mod@example.com", "moderator")
	_, err := ts.srv.users.SetRole(t.Context(), mod.ID, "moderator")
	require.NoError(t, err)
	modKey, _, err := ts.srv.apiKeys.Create(t.Context(), mod.ID, "mod")
	require.NoError(t, err)
	_, adminKey := ts.member("admin@mela.mt", "admin")
	l := ts.createListing(key)

	w := ts.do(http.MethodPost, "/api/reports", key, map[string]string{
		"target_type": "item",
		"target_id":   l.ID,
		"reason":      "Counterfeit",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rep report.Report
	decode(t, w, &rep)
	assert.Equal(t, report.StatusOpen, rep.Status)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/reports", key, map[string]string{
		"target_type": "item", "target_id": l.ID, "reason": "Boring",
	}).Code)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/reports", key, nil).Code)

	w = ts.do(http.MethodGet, "/api/reports?status=Open", modKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var open []report.Report
	decode(t, w, &open)
	assert.Len(t, open, 1)

	w = ts.do(http.MethodPost, "/api/reports/"+rep.ID+"/resolve", modKey, map[string]string{"status": "Actioned"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &rep)
	assert.Equal(t, report.StatusActioned, rep.Status)
	require.NotNil(t, rep.ResolvedBy)
	assert.Equal(t, mod.ID, *rep.ResolvedBy)

	// Admins pass every role check.
	w = ts.do(http.MethodGet, "/api/reports?status=Open", adminKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
