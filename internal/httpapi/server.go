// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

// Package httpapi exposes the identity and social-graph operations over
// HTTP. It extracts the bearer token from each inbound request, passes it
// through the session resolver, and translates domain outcomes into
// status codes; it holds no business logic of its own.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/pipit-social/pipit/internal/identity"
	"github.com/pipit-social/pipit/internal/observability"
)

// Authenticator is the slice of the auth service the API uses.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (*identity.User, error)
	Authenticate(ctx context.Context, username, password string) (*identity.User, error)
	IssueSession(user *identity.User) (string, error)
	ChangePassword(ctx context.Context, user *identity.User, current, next string) error
}

// Resolver validates a bearer token and resolves it to a live user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*identity.User, error)
}

// SocialGraph is the slice of the graph service the API uses.
type SocialGraph interface {
	Follow(ctx context.Context, actor *identity.User, targetID int64) error
	Unfollow(ctx context.Context, actor *identity.User, targetID int64) error
	Followers(ctx context.Context, id int64) ([]*identity.User, error)
	Following(ctx context.Context, id int64) ([]*identity.User, error)
	CheckFollowing(ctx context.Context, actorID, targetID int64) (bool, error)
}

// UserDirectory is the read/update slice of the user repository the API
// exposes publicly.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*identity.User, error)
	List(ctx context.Context) ([]*identity.User, error)
	UpdateProfile(ctx context.Context, id int64, update identity.ProfileUpdate) (*identity.User, error)
}

// Server serves the public API.
type Server struct {
	addr       string
	logger     *slog.Logger
	auth       Authenticator
	resolver   Resolver
	graph      SocialGraph
	users      UserDirectory
	metrics    *observability.Metrics
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates an API server. metrics may be nil, in which case no
// request counters are recorded.
func NewServer(addr string, logger *slog.Logger, auth Authenticator, resolver Resolver, graph SocialGraph, users UserDirectory, metrics *observability.Metrics) (*Server, error) {
	if logger == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("logger is required")
	}
	if auth == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("authenticator is required")
	}
	if resolver == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("resolver is required")
	}
	if graph == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("social graph is required")
	}
	if users == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("user directory is required")
	}
	return &Server{
		addr:     addr,
		logger:   logger,
		auth:     auth,
		resolver: resolver,
		graph:    graph,
		users:    users,
		metrics:  metrics,
	}, nil
}

// Router builds the chi router with all API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger(s.logger, s.metrics))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/token", s.handleToken)
		r.With(s.requireSession).Get("/me", s.handleMe)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.handleListUsers)
		r.Get("/{id}", s.handleGetUser)
		r.Get("/{id}/followers", s.handleFollowers)
		r.Get("/{id}/following", s.handleFollowing)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Patch("/me", s.handleUpdateProfile)
			r.Put("/me/password", s.handleChangePassword)
			r.Post("/{id}/follow", s.handleFollow)
			r.Delete("/{id}/follow", s.handleUnfollow)
			r.Get("/{id}/follow", s.handleCheckFollowing)
		})
	})

	return r
}

// Start begins serving the API. It returns an error channel that receives
// any server failure after startup; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return oops.With("operation", "shutdown api server").Wrap(err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
