package httpapi

import (
	"net/http"

	"hashpass/internal/ratelimit"
	"hashpass/internal/useragent"
)

// uaExemptPaths lists routes reachable without passing the
// User-Agent allow-list, mirroring the original service's health and
// local-development endpoints.
var uaExemptPaths = map[string]struct{}{
	"/api/health":    {},
	"/api/dev/trace": {},
}

// securityHeadersMiddleware sets a fixed set of defensive headers on
// every response, including ones later middleware rejects.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-inline' https://challenges.cloudflare.com; "+
				"style-src 'self' 'unsafe-inline'; connect-src 'self' wss: https:; "+
				"frame-src https://challenges.cloudflare.com; img-src 'self' data:")
		next.ServeHTTP(w, r)
	})
}

// userAgentMiddleware rejects requests from disallowed User-Agents
// before they reach any route handler, except the exempt paths.
func userAgentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, exempt := uaExemptPaths[r.URL.Path]; exempt {
			next.ServeHTTP(w, r)
			return
		}
		if ok, reason := useragent.Validate(r.UserAgent()); !ok {
			respondWithError(w, errUserAgentRejected(reason))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware throttles requests per client IP using the
// injected limiter (the /api/verify-facing "client" bucket).
func rateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
