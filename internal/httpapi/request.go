package httpapi

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the connecting client's address, preferring
// Cloudflare's cf-connecting-ip header (the deployment this server
// was built for always sits behind Cloudflare) and falling back to
// the raw socket address for local development.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("cf-connecting-ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, returning "" if the header is missing or malformed.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
