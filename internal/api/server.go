// Package api is the HTTP layer: request decoding, validation, auth and
// rate-limit middleware, and translation of apperrors.Kind into the JSON
// error envelope described by the error handling design. It holds no
// orchestration logic of its own — every handler is a thin wrapper around
// the Session Registry, Executor, or Workspace Gateway.
package api

import (
	"log/slog"
	"net/http"

	"github.com/sandboxlabs/sandboxd/internal/auth"
	"github.com/sandboxlabs/sandboxd/internal/config"
	"github.com/sandboxlabs/sandboxd/internal/ratelimit"
)

// Server wires the core components behind net/http.
type Server struct {
	cfg       *config.Config
	registry  SessionRegistry
	executor  Executor
	workspace Workspace
	verifier  *auth.Verifier
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewServer builds a Server and registers its routes.
func NewServer(cfg *config.Config, reg SessionRegistry, exec Executor, ws Workspace, logger *slog.Logger) *Server {
	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret, "sandboxd")
	}

	s := &Server{
		cfg:       cfg,
		registry:  reg,
		executor:  exec,
		workspace: ws,
		verifier:  verifier,
		limiter:   ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped handler: request ID, then auth, then
// rate limit (which needs the user ID auth attaches to the context), then
// routing.
func (s *Server) Handler() http.Handler {
	h := ratelimit.Middleware(s.limiter, s.mux)
	h = auth.Middleware(s.cfg.APIKey, s.verifier, h)
	h = s.requestIDMiddleware(h)
	return h
}
