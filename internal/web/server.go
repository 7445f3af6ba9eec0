// Package web provides the HTTP server and JSON handlers for the mela API.
package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/auth"
	"github.com/evcraddock/mela/internal/brand"
	"github.com/evcraddock/mela/internal/classifier"
	"github.com/evcraddock/mela/internal/config"
	"github.com/evcraddock/mela/internal/email"
	"github.com/evcraddock/mela/internal/event"
	"github.com/evcraddock/mela/internal/garagesale"
	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/logging"
	"github.com/evcraddock/mela/internal/matcher"
	"github.com/evcraddock/mela/internal/message"
	"github.com/evcraddock/mela/internal/metrics"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/push"
	"github.com/evcraddock/mela/internal/report"
	"github.com/evcraddock/mela/internal/review"
	"github.com/evcraddock/mela/internal/school"
	"github.com/evcraddock/mela/internal/services"
	"github.com/evcraddock/mela/internal/wanted"
)

// Enqueuer schedules asynchronous matches.
type Enqueuer interface {
	Enqueue(req matcher.Request) bool
}

// Deps are the collaborators of a Server. Matcher defaults to one
// backed by the offline catalog detector; Dispatcher, Metrics and Log
// are optional.
type Deps struct {
	DB         *sql.DB
	Config     config.Config
	Matcher    *matcher.Matcher
	Dispatcher Enqueuer
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// Server is the API HTTP server.
type Server struct {
	cfg     config.Config
	db      *sql.DB
	log     *zap.Logger
	metrics *metrics.Metrics

	users    *auth.UserStore
	tokens   *auth.TokenStore
	sessions *auth.SessionStore
	apiKeys  *auth.APIKeyStore
	passkeys *auth.PasskeyStore
	mailer   *auth.Mailer
	authn    *auth.Authenticator
	webauthn *passkeyHandlers

	listings      *listing.Repository
	wanted        *wanted.Repository
	events        *event.Repository
	services      *services.Repository
	sales         *garagesale.Repository
	messages      *message.Repository
	notifications *notification.Repository
	reports       *report.Repository
	schools       *school.Repository
	reviews       *review.Repository
	brands        *brand.Store
	devices       *push.Store

	matcher    *matcher.Matcher
	dispatcher Enqueuer
	sendMail   auth.SendFunc

	mux     *http.ServeMux
	handler http.Handler
}

// NewServer creates a server over d.DB.
func NewServer(d Deps) (*Server, error) {
	log := logging.OrNop(d.Log)
	notes := notification.NewRepository(d.DB)

	s := &Server{
		cfg:     d.Config,
		db:      d.DB,
		log:     log.Named("web"),
		metrics: d.Metrics,

		users:    auth.NewUserStore(d.DB, d.Config.Auth.AdminEmail),
		tokens:   auth.NewTokenStore(d.DB),
		sessions: auth.NewSessionStore(d.DB, isHTTPS(d.Config.Server.BaseURL)),
		apiKeys:  auth.NewAPIKeyStore(d.DB),
		passkeys: auth.NewPasskeyStore(d.DB),
		mailer:   auth.NewMailer(d.Config.SMTP, d.Config.Server.BaseURL, d.Config.Server.DevMode, log),

		listings:      listing.NewRepository(d.DB),
		wanted:        wanted.NewRepository(d.DB),
		events:        event.NewRepository(d.DB),
		services:      services.NewRepository(d.DB),
		sales:         garagesale.NewRepository(d.DB),
		messages:      message.NewRepository(d.DB, notes),
		notifications: notes,
		reports:       report.NewRepository(d.DB),
		schools:       school.NewRepository(d.DB),
		reviews:       review.NewRepository(d.DB),
		brands:        brand.NewStore(d.DB),
		devices:       push.NewStore(d.DB),

		matcher:    d.Matcher,
		dispatcher: d.Dispatcher,
		sendMail:   email.Send,
		mux:        http.NewServeMux(),
	}
	s.authn = auth.NewAuthenticator(s.users, s.sessions, s.apiKeys, log)

	if s.matcher == nil {
		s.matcher = matcher.New(matcher.Deps{
			Listings:      s.listings,
			WantedAds:     s.wanted,
			Preferences:   s.brands,
			Notifications: notes,
			Detector:      classifier.NewCatalogDetector(),
			Metrics:       d.Metrics,
			Log:           log,
		})
	}

	wan, err := auth.NewWebAuthn(d.Config.Auth, d.Config.Server.BaseURL)
	if err != nil {
		return nil, err
	}
	s.webauthn = newPasskeyHandlers(wan, s)

	s.routes()
	s.handler = logging.RequestLogger(log, s.metrics.Middleware(s.mux))
	return s, nil
}

func isHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}

func (s *Server) routes() {
	// public routes still resolve the caller when credentials are sent.
	public := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.authn.Middleware(h))
	}
	user := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.authn.Require(h))
	}
	staff := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.authn.RequireRole(h, auth.RoleModerator))
	}
	admin := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, s.authn.RequireRole(h, auth.RoleAdmin))
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("POST /auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /auth/verify", s.handleVerify)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)
	s.mux.HandleFunc("POST /cli/auth", s.handleCLILogin)
	s.mux.HandleFunc("GET /cli/auth/verify", s.handleCLIVerify)
	user("POST /auth/passkey/register/begin", s.webauthn.handleBeginRegistration)
	user("POST /auth/passkey/register/finish", s.webauthn.handleFinishRegistration)
	s.mux.HandleFunc("POST /auth/passkey/login/begin", s.webauthn.handleBeginLogin)
	s.mux.HandleFunc("POST /auth/passkey/login/finish", s.webauthn.handleFinishLogin)

	s.mux.HandleFunc("GET /api/brands", s.handleBrandCatalog)
	s.mux.HandleFunc("GET /api/localities", s.handleLocalities)

	user("GET /api/me", s.handleGetMe)
	user("PATCH /api/me", s.handleUpdateMe)
	user("GET /api/me/brands", s.handleGetBrands)
	user("PUT /api/me/brands", s.handleSetBrands)
	user("GET /api/me/devices", s.handleListDevices)
	user("POST /api/me/devices", s.handleRegisterDevice)
	user("DELETE /api/me/devices/{token}", s.handleUnregisterDevice)
	user("GET /api/me/favorites", s.handleListFavorites)
	user("GET /api/me/passkeys", s.handleListPasskeys)
	user("DELETE /api/me/passkeys/{id}", s.handleDeletePasskey)

	public("GET /api/listings", s.handleListListings)
	user("POST /api/listings", s.handleCreateListing)
	public("GET /api/listings/{id}", s.handleGetListing)
	user("PATCH /api/listings/{id}", s.handleUpdateListing)
	user("DELETE /api/listings/{id}", s.handleDeleteListing)
	user("POST /api/listings/{id}/status", s.handleSetListingStatus)
	user("POST /api/listings/{id}/favorite", s.handleAddFavorite)
	user("DELETE /api/listings/{id}/favorite", s.handleRemoveFavorite)

	public("GET /api/schools", s.handleListSchools)
	admin("POST /api/schools", s.handleCreateSchool)
	public("GET /api/schools/{id}", s.handleGetSchool)

	public("GET /api/users/{id}/reviews", s.handleListReviews)
	user("POST /api/users/{id}/reviews", s.handleCreateReview)

	public("GET /api/wanted", s.handleListWanted)
	user("POST /api/wanted", s.handleCreateWanted)
	public("GET /api/wanted/{id}", s.handleGetWanted)
	user("POST /api/wanted/{id}/status", s.handleSetWantedStatus)

	public("GET /api/events", s.handleListEvents)
	user("POST /api/events", s.handleCreateEvent)
	public("GET /api/events/{id}", s.handleGetEvent)
	user("GET /api/events/{id}/attendees", s.handleEventAttendees)
	user("POST /api/events/{id}/rsvp", s.handleRSVP)
	user("DELETE /api/events/{id}/rsvp", s.handleCancelRSVP)
	user("POST /api/events/{id}/cancel", s.handleCancelEvent)

	public("GET /api/services", s.handleListServices)
	user("POST /api/services", s.handleCreateService)
	public("GET /api/services/{id}", s.handleGetService)
	user("POST /api/services/{id}/status", s.handleSetServiceStatus)
	s.mux.Handle("OPTIONS /api/services/recommend", withCORS(http.HandlerFunc(preflight)))
	s.mux.Handle("POST /api/services/recommend", withCORS(http.HandlerFunc(s.handleRecommend)))

	public("GET /api/garage-sales", s.handleListSales)
	user("POST /api/garage-sales", s.handleCreateSale)
	public("GET /api/garage-sales/{id}", s.handleGetSale)
	user("POST /api/garage-sales/{id}/items", s.handleAddSaleItem)

	user("GET /api/threads", s.handleListThreads)
	user("POST /api/threads", s.handleStartThread)
	user("GET /api/threads/{id}/messages", s.handleListMessages)
	user("POST /api/threads/{id}/messages", s.handleSendMessage)

	user("GET /api/notifications", s.handleListNotifications)
	user("GET /api/notifications/unread-count", s.handleUnreadCount)
	user("POST /api/notifications/read-all", s.handleReadAll)
	user("POST /api/notifications/digest", s.handleDigest)
	user("POST /api/notifications/{id}/read", s.handleMarkRead)

	user("POST /api/reports", s.handleCreateReport)
	staff("GET /api/reports", s.handleListReports)
	staff("POST /api/reports/{id}/resolve", s.handleResolveReport)

	admin("GET /api/admin/users", s.handleListUsers)
	admin("PUT /api/admin/users/{id}/role", s.handleSetRole)
	admin("DELETE /api/admin/users/{id}", s.handleDeleteUser)

	user("GET /api/keys", s.handleListKeys)
	user("POST /api/keys", s.handleCreateKey)
	user("DELETE /api/keys/{id}", s.handleDeleteKey)

	s.mux.Handle("OPTIONS /api/match-brands", withCORS(http.HandlerFunc(preflight)))
	s.mux.Handle("POST /api/match-brands", withCORS(s.authn.Require(http.HandlerFunc(s.handleMatchBrands))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr), zap.String("base_url", s.cfg.Server.BaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// handleHealth reports whether the database is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
