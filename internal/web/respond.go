package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
	"github.com/evcraddock/mela/internal/auth"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errInvalidJSON = apperr.WithMessage(apperr.ErrBadRequest, "invalid JSON body")

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// writeError renders err as an apperr payload. Internal errors are
// logged and their details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Status(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, code, map[string]string{"error": "internal error", "code": apperr.Code(err)})
		return
	}
	writeJSON(w, code, apperr.Payload(err))
}

// decodeJSON reads the request body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Wrap(err, errInvalidJSON, errInvalidJSON.Message)
}

// caller returns the authenticated user. Only valid behind Require.
func caller(r *http.Request) *auth.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}

// callerID returns the authenticated user's ID, or "" for anonymous
// requests.
func callerID(r *http.Request) string {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return u.ID
	}
	return ""
}

// queryInt parses an optional integer query parameter.
func queryInt(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(name + " must be a non-negative integer")
	}
	return n, nil
}

// corsHeaders are sent by the endpoints browsers call cross-origin.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// preflight answers CORS OPTIONS requests.
func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// writeFunctionError renders err as {"error": message}, the shape the
// browser-facing function endpoints have always returned.
func (s *Server) writeFunctionError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Status(err)
	msg := apperr.Message(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}
