package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	herrors "hashpass/errors"
)

// requireAdmin rejects any request that does not carry a Bearer token
// matching the configured admin token, using a constant-time compare
// to avoid leaking the token through response-time side channels.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			respondWithError(w, herrors.AdminError(herrors.AdminUnauthorized, "ADMIN_TOKEN not configured"))
			return
		}

		authorization := r.Header.Get("Authorization")
		if authorization == "" {
			respondWithError(w, herrors.AdminError(herrors.AdminUnauthorized, "missing Authorization header"))
			return
		}
		const prefix = "Bearer "
		if !strings.HasPrefix(authorization, prefix) {
			respondWithError(w, herrors.AdminError(herrors.AdminUnauthorized,
				"invalid Authorization format (expected 'Bearer <token>')"))
			return
		}
		token := strings.TrimPrefix(authorization, prefix)

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			respondWithJSON(w, http.StatusForbidden, map[string]string{"error": "invalid admin token"})
			return
		}

		next(w, r)
	}
}

// validAdminToken reports whether token matches the configured admin
// token, for the admin websocket's query-param auth (which has no
// Authorization header to work with).
func (s *Server) validAdminToken(token string) bool {
	if s.cfg.AdminToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) == 1
}
