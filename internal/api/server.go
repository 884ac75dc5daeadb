// Package api serves the TaskFlow HTTP API.
//
// Every response body is JSON. Errors use {"error": "..."}; validation
// failures add a "details" object keyed by field name. Data endpoints need
// a session from the identity provider; the unread-count endpoint answers
// anonymous callers with zero instead of 401.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"

	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/events"
	"github.com/Mschirtzinger/taskflow/internal/slack"
	tfsync "github.com/Mschirtzinger/taskflow/internal/sync"
	"github.com/Mschirtzinger/taskflow/internal/tokens"
)

// Deps are the collaborators the handlers use. Slack and GitHubOAuth may be
// nil when those integrations are not configured; their routes then answer 503.
type Deps struct {
	DB          *db.DB
	Auth        auth.Authenticator
	Tokens      *tokens.Store
	Sync        *tfsync.Service
	Emitter     *events.Emitter
	Live        http.Handler
	Slack       *slack.Installer
	GitHubOAuth *oauth2.Config

	// SecureCookies marks OAuth state cookies Secure (HTTPS deployments)
	SecureCookies bool

	// Logger for request errors (default: stderr logger)
	Logger *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	logger *log.Logger
	router chi.Router

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}
	s := &Server{deps: deps, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverJSON)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/slack/install", s.handleSlackInstall)
		r.Post("/slack/install", s.handleSlackInstall)
		r.Get("/slack/oauth_redirect", s.handleSlackRedirect)

		r.With(auth.OptionalSession(s.deps.Auth)).
			Get("/notifications/unread-count", s.handleUnreadCount)

		// Session required
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(s.deps.Auth))
			r.Use(s.ensureUser)

			r.Get("/github/repos", s.handleListRepos)
			r.Post("/github/sync", s.handleSync)
			r.Get("/github/connect", s.handleGitHubConnect)
			r.Get("/github/callback", s.handleGitHubCallback)
			r.Delete("/github/connection", s.handleGitHubDisconnect)

			r.Get("/notifications", s.handleListNotifications)
			r.Post("/notifications/{id}/read", s.handleMarkRead)

			r.Get("/tasks", s.handleListTasks)
			r.Post("/tasks", s.handleCreateTask)
			r.Patch("/tasks/{id}/status", s.handleUpdateStatus)
			r.Get("/tasks/{id}/events", s.handleTaskEvents)

			if s.deps.Live != nil {
				r.Get("/live", s.deps.Live.ServeHTTP)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})
	return r
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("API server listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Println("Stopping API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
