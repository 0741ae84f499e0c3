// Package session implements the session token registry: opaque
// bearer tokens minted when a realtime connection passes the human
// challenge, validated on every subsequent request, and swept for
// expiry after a grace window following disconnect.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"sync"
	"time"

	herrors "hashpass/errors"
)

// DisconnectGrace is how long a disconnected session remains valid
// before the sweeper revokes it, per spec §4.4.
const DisconnectGrace = 5 * time.Minute

// sweepInterval is how often the background sweeper scans for expired
// sessions.
const sweepInterval = 60 * time.Second

// tokenBytes is the raw entropy size of a minted token (128 bits).
const tokenBytes = 16

// Entry is a read-only snapshot of one session's state, for the admin
// plane's /sessions listing.
type Entry struct {
	IP             string
	ChannelID      string
	Connected      bool
	IssuedAt       time.Time
	LastSeenAt     time.Time
	DisconnectedAt *time.Time
}

type record struct {
	token          string
	ip             string
	channelID      string
	connected      bool
	issuedAt       time.Time
	lastSeenAt     time.Time
	disconnectedAt *time.Time
}

// Registry holds every live session token, indexed by an HMAC digest
// of the token rather than the token itself so a leaked map key (via a
// panic dump, a debugger, or a heap profile) does not itself hand over
// a bearer credential.
type Registry struct {
	mu      sync.Mutex
	secret  []byte
	entries map[string]*record

	done chan struct{}
}

// New constructs a Registry and starts its background expiry sweeper.
// secret is used solely to derive lookup indices; it need not be the
// same secret as the puzzle's invite-minting secret.
func New(secret []byte) *Registry {
	r := &Registry{
		secret:  secret,
		entries: make(map[string]*record),
		done:    make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Close stops the background sweeper.
func (r *Registry) Close() {
	close(r.done)
}

func (r *Registry) index(token string) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(token))
	return string(mac.Sum(nil))
}

// Issue mints a new bearer token bound to ip and registers it as
// connected-pending (no channel yet) in the registry.
func (r *Registry) Issue(ip string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now()
	rec := &record{
		token:      token,
		ip:         ip,
		issuedAt:   now,
		lastSeenAt: now,
	}

	r.mu.Lock()
	r.entries[r.index(token)] = rec
	r.mu.Unlock()

	return token, nil
}

// Validate confirms token exists, has not expired, and was issued to
// ip. It touches lastSeenAt on success.
func (r *Registry) Validate(token, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[r.index(token)]
	if !ok {
		return herrors.IdentityError(herrors.SessionMissing, "unknown session token")
	}
	if subtle.ConstantTimeCompare([]byte(rec.token), []byte(token)) != 1 {
		return herrors.IdentityError(herrors.SessionMissing, "unknown session token")
	}
	if rec.disconnectedAt != nil && time.Since(*rec.disconnectedAt) > DisconnectGrace {
		delete(r.entries, r.index(token))
		return herrors.IdentityError(herrors.SessionExpired, "session grace period elapsed")
	}
	if rec.ip != ip {
		return herrors.IdentityError(herrors.IdentityMismatch, "session issued to a different address")
	}
	rec.lastSeenAt = time.Now()
	return nil
}

// MarkConnected records that token is now attached to a live
// connection identified by channelID.
func (r *Registry) MarkConnected(token, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[r.index(token)]
	if !ok {
		return herrors.IdentityError(herrors.SessionMissing, "unknown session token")
	}
	rec.connected = true
	rec.channelID = channelID
	rec.disconnectedAt = nil
	rec.lastSeenAt = time.Now()
	return nil
}

// MarkDisconnected records the disconnect time that starts the grace
// window, without revoking the token outright.
func (r *Registry) MarkDisconnected(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.entries[r.index(token)]
	if !ok {
		return
	}
	rec.connected = false
	now := time.Now()
	rec.disconnectedAt = &now
}

// Revoke deletes a single token immediately.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, r.index(token))
}

// RevokeByIP deletes every token issued to ip, returning how many were
// removed. Used by the admin kick action.
func (r *Registry) RevokeByIP(ip string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for k, rec := range r.entries {
		if rec.ip == ip {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}

// ClearAll removes every session, for the admin clear-sessions action.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[string]*record)
	return n
}

// List returns a snapshot of every live session, for the admin plane.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, rec := range r.entries {
		out = append(out, Entry{
			IP:             rec.ip,
			ChannelID:      rec.channelID,
			Connected:      rec.connected,
			IssuedAt:       rec.issuedAt,
			LastSeenAt:     rec.lastSeenAt,
			DisconnectedAt: rec.disconnectedAt,
		})
	}
	return out
}

// ChannelIDFor returns the channel id currently attached to token, if
// any, for callers (the verify path) that need to tie a submission
// back to the realtime connection it arrived over.
func (r *Registry) ChannelIDFor(token string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.entries[r.index(token)]
	if !ok {
		return ""
	}
	return rec.channelID
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepOnce()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) sweepOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for k, rec := range r.entries {
		if rec.disconnectedAt != nil && now.Sub(*rec.disconnectedAt) > DisconnectGrace {
			delete(r.entries, k)
			log.Debugf("session: swept expired token for %s", rec.ip)
		}
	}
}
