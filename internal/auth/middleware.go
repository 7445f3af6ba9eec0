package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/apperr"
)

type ctxKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated user stored by the middleware.
func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}

// RateLimiter counts failures per client within a sliding window.
type RateLimiter struct {
	window  time.Duration
	max     int
	now     func() time.Time
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewRateLimiter blocks a client after max failures within window.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{window: window, max: max, now: time.Now, entries: make(map[string][]time.Time)}
}

func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	valid := rl.entries[key][:0]
	for _, t := range rl.entries[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(rl.entries, key)
		return nil
	}
	rl.entries[key] = valid
	return valid
}

// Blocked reports whether key has used up its failures.
func (rl *RateLimiter) Blocked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(key, rl.now())) >= rl.max
}

// Fail records a failure for key.
func (rl *RateLimiter) Fail(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	rl.entries[key] = append(rl.prune(key, now), now)
}

// ClientIP returns the request's remote IP without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var ErrRateLimited = apperr.WithMessage(apperr.ErrRateLimited, "Too many requests")

// Authenticator resolves the caller from an API key or session cookie.
type Authenticator struct {
	users    *UserStore
	sessions *SessionStore
	apiKeys  *APIKeyStore
	limiter  *RateLimiter
	log      *zap.Logger
}

// NewAuthenticator creates an authenticator. Ten bad API keys per
// minute from one IP earn a 429.
func NewAuthenticator(users *UserStore, sessions *SessionStore, apiKeys *APIKeyStore, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		users:    users,
		sessions: sessions,
		apiKeys:  apiKeys,
		limiter:  NewRateLimiter(time.Minute, 10),
		log:      log.Named("auth"),
	}
}

// Resolve returns the caller of r, or nil when r carries no
// credentials. A bearer key that does not match is an error; a stale
// session cookie is not.
func (a *Authenticator) Resolve(r *http.Request) (*User, error) {
	ctx := r.Context()

	if header := r.Header.Get("Authorization"); header != "" {
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return nil, ErrInvalidAPIKey
		}
		ip := ClientIP(r)
		if a.limiter.Blocked(ip) {
			return nil, ErrRateLimited
		}
		userID, err := a.apiKeys.Authenticate(ctx, strings.TrimSpace(key))
		if errors.Is(err, ErrInvalidAPIKey) {
			a.limiter.Fail(ip)
			a.log.Warn("invalid API key", zap.String("ip", ip))
		}
		if err != nil {
			return nil, err
		}
		return a.users.GetByID(ctx, userID)
	}

	email, err := a.sessions.Validate(r)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

// Middleware stores the caller, if any, in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.Resolve(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if u != nil {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without a caller with 401.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			writeError(w, apperr.WithMessage(apperr.ErrUnauthorized, "Authorization required"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireRole rejects callers without one of roles with 403. Admins
// pass every role check.
func (a *Authenticator) RequireRole(next http.Handler, roles ...Role) http.Handler {
	return a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFrom(r.Context())
		if a.users.IsAdmin(u) {
			next.ServeHTTP(w, r)
			return
		}
		for _, role := range roles {
			if u.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, apperr.Forbidden("insufficient permissions"))
	}))
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err))
	if encErr := json.NewEncoder(w).Encode(apperr.Payload(err)); encErr != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}
