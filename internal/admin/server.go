// Package admin exposes the operator-only HTTP and websocket surface:
// status and log inspection, live parameter tuning, and connection
// and ban management. Every route requires the configured admin
// bearer token.
package admin

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hashpass/internal/audit"
	"hashpass/internal/blacklist"
	"hashpass/internal/hashrate"
	"hashpass/internal/hub"
	"hashpass/internal/puzzle"
	"hashpass/internal/session"
)

// Config bundles every collaborator the admin plane needs.
type Config struct {
	Puzzle    *puzzle.Puzzle
	Sessions  *session.Registry
	Blacklist *blacklist.List
	Hub       *hub.Hub
	Hashrate  *hashrate.Aggregator
	Audit     *audit.Log

	AdminToken string
	StartedAt  time.Time
}

// Server holds the routed mux.Router and its dependencies.
type Server struct {
	cfg    Config
	Router *mux.Router
}

// New builds the router and wires every admin route.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, Router: mux.NewRouter()}

	api := s.Router.PathPrefix("/api/admin").Subrouter()
	api.HandleFunc("/status", s.requireAdmin(s.handleStatus)).Methods(http.MethodGet)
	api.HandleFunc("/miners", s.requireAdmin(s.handleMiners)).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.requireAdmin(s.handleSessions)).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.requireAdmin(s.handleLogs)).Methods(http.MethodGet)
	api.HandleFunc("/logs/stats", s.requireAdmin(s.handleLogStats)).Methods(http.MethodGet)
	api.HandleFunc("/difficulty", s.requireAdmin(s.handleUpdateDifficulty)).Methods(http.MethodPost)
	api.HandleFunc("/target-time", s.requireAdmin(s.handleUpdateTargetTime)).Methods(http.MethodPost)
	api.HandleFunc("/argon2", s.requireAdmin(s.handleUpdateArgon2)).Methods(http.MethodPost)
	api.HandleFunc("/worker-count", s.requireAdmin(s.handleUpdateWorkerCount)).Methods(http.MethodPost)
	api.HandleFunc("/max-nonce-speed", s.requireAdmin(s.handleUpdateMaxNonceSpeed)).Methods(http.MethodPost)
	api.HandleFunc("/reset-puzzle", s.requireAdmin(s.handleResetPuzzle)).Methods(http.MethodPost)
	api.HandleFunc("/kick-all", s.requireAdmin(s.handleKickAll)).Methods(http.MethodPost)
	api.HandleFunc("/kick", s.requireAdmin(s.handleKickIP)).Methods(http.MethodPost)
	api.HandleFunc("/unban", s.requireAdmin(s.handleUnban)).Methods(http.MethodPost)
	api.HandleFunc("/blacklist", s.requireAdmin(s.handleGetBlacklist)).Methods(http.MethodGet)
	api.HandleFunc("/clear-sessions", s.requireAdmin(s.handleClearSessions)).Methods(http.MethodPost)
	api.HandleFunc("/regenerate-hmac", s.requireAdmin(s.handleRegenerateHmac)).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleAdminWebsocket)

	return s
}
