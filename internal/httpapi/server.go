// Package httpapi exposes the visitor-facing HTTP and websocket
// surface: the puzzle snapshot, solution verification, health and
// development helpers, and the websocket upgrade itself. The admin
// plane lives separately in internal/admin.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"hashpass/internal/audit"
	"hashpass/internal/blacklist"
	"hashpass/internal/hub"
	"hashpass/internal/puzzle"
	"hashpass/internal/ratelimit"
	"hashpass/internal/session"
	"hashpass/internal/turnstile"
	"hashpass/internal/webhook"
)

// Config bundles every collaborator the visitor-facing API needs.
type Config struct {
	Puzzle    *puzzle.Puzzle
	Sessions  *session.Registry
	Blacklist *blacklist.List
	Webhook   *webhook.Notifier
	Audit     *audit.Log
	Hub       *hub.Hub
	Turnstile turnstile.Verifier
	TestMode  bool
	Limiter   *ratelimit.Limiter
}

// Server holds the routed mux.Router and its dependencies.
type Server struct {
	cfg    Config
	Router *mux.Router
}

// New builds the router and wires every visitor-facing route.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, Router: mux.NewRouter()}

	api := s.Router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/puzzle", s.handleGetPuzzle).Methods(http.MethodPost)
	api.HandleFunc("/verify", s.handleVerify).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/dev/trace", s.handleDevTrace).Methods(http.MethodGet)
	api.HandleFunc("/turnstile/config", s.handleTurnstileConfig).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWebsocket)

	s.Router.Use(securityHeadersMiddleware)
	s.Router.Use(userAgentMiddleware)
	if cfg.Limiter != nil {
		s.Router.Use(rateLimitMiddleware(cfg.Limiter))
	}

	return s
}
