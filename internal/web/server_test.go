package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/config"
	"github.com/evcraddock/mela/internal/db/dbtest"
	"github.com/evcraddock/mela/internal/matcher"
	"github.com/evcraddock/mela/internal/metrics"
)

type fakeQueue struct {
	mu   sync.Mutex
	reqs []matcher.Request
	full bool
}

func (q *fakeQueue) Enqueue(req matcher.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.reqs = append(q.reqs, req)
	return true
}

func (q *fakeQueue) requests() []matcher.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]matcher.Request(nil), q.reqs...)
}

type testServer struct {
	t     *testing.T
	srv   *Server
	queue *fakeQueue
	logs  *observer.ObservedLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Server.DevMode = true
	cfg.Auth.AdminEmail = "admin@mela.mt"

	core, logs := observer.New(zap.InfoLevel)
	queue := &fakeQueue{}
	srv, err := NewServer(Deps{
		DB:         dbtest.Open(t),
		Config:     cfg,
		Dispatcher: queue,
		Metrics:    metrics.New(),
		Log:        zap.New(core),
	})
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, queue: queue, logs: logs}
}

// member creates a user and an API key for it.
func (ts *testServer) member(email, username string) (*auth.User, string) {
	ts.t.Helper()
	ctx := context.Background()
	u, err := ts.srv.users.Create(ctx, auth.SignupInput{Email: email, Username: username, Localities: []string{"Sliema"}})
	require.NoError(ts.t, err)
	raw, _, err := ts.srv.apiKeys.Create(ctx, u.ID, "test")
	require.NoError(ts.t, err)
	return u, raw
}

// do sends a request with an optional bearer key and JSON body.
func (ts *testServer) do(method, path, key string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(ts.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	return w
}

// lastLinkToken returns the token of the most recently logged magic link.
func (ts *testServer) lastLinkToken() string {
	ts.t.Helper()
	entries := ts.logs.FilterMessage("magic link").All()
	require.NotEmpty(ts.t, entries, "no magic link logged")
	link, ok := entries[len(entries)-1].ContextMap()["link"].(string)
	require.True(ts.t, ok)
	u, err := url.Parse(link)
	require.NoError(ts.t, err)
	return u.Query().Get("token")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decode(t, w, &body)
	msg, _ := body["error"].(string)
	return msg
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthDatabaseDown(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.srv.db.Close())

	w := ts.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/api/brands", "", nil)

	w := ts.do(http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mela_http_requests_total")
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/brands", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var brands map[string][]string
	decode(t, w, &brands)
	assert.Contains(t, brands["brands"], "Zara")

	w = ts.do(http.MethodGet, "/api/localities", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var localities map[string][]string
	decode(t, w, &localities)
	assert.Contains(t, localities["localities"], "Sliema")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/nothing-here", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization required", errorMessage(t, w))

	w = ts.do(http.MethodGet, "/api/me", "mk_nope", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t)
	_, key := ts.member("maria@example.com", "maria")

	w := ts.do(http.MethodPost, "/api/listings", key, "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid JSON body", errorMessage(t, w))
}

func TestIsHTTPS(t *testing.T) {
	assert.True(t, isHTTPS("https://mela.mt"))
	assert.False(t, isHTTPS("http://localhost:8080"))
	assert.False(t, isHTTPS(""))
}
