// Package hub maintains the set of live websocket connections,
// enforces the browser/human/per-IP preconditions on upgrade, and
// fans out puzzle-reset and hashrate broadcasts.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	herrors "hashpass/errors"
	"hashpass/internal/hashrate"
	"hashpass/internal/session"
	"hashpass/internal/useragent"
)

// maxPerIP is the maximum number of simultaneous connections a single
// address may hold; a new connection from the same IP kicks the old
// one rather than being rejected, per spec §4.4's reconnect policy.
const maxPerIP = 1

// hashrateReportCeiling bounds a self-reported hashrate value before
// it is trusted enough to aggregate at all.
const hashrateReportCeiling = 1000

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Config bundles every collaborator Hub needs, following the same
// dependency-injected shape used across this codebase in place of
// package-level singletons.
type Config struct {
	Sessions  *session.Registry
	Hashrate  *hashrate.Aggregator
	Challenge ChallengeVerifier

	// OnMiningStart/OnMiningStop are invoked when a connection's miner
	// toggles on or off, keyed by channel id.
	OnMiningStart func(channelID string)
	OnMiningStop  func(channelID string)
}

// ChallengeVerifier is the narrow slice of the turnstile.Verifier
// interface the hub needs at upgrade time, for the one-shot human
// challenge path (a connection with no session token yet).
type ChallengeVerifier interface {
	VerifyToken(token, ip string) error
}

// Hub owns the registry of connected clients.
type Hub struct {
	cfg Config

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	byIP     map[string][]*Client

	register   chan *Client
	unregister chan *Client
}

// New constructs a Hub and starts its registration loop.
func New(cfg Config) *Hub {
	h := &Hub{
		cfg:        cfg,
		clients:    make(map[*Client]struct{}),
		byIP:       make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	// Single-active-connection-per-IP: kick any existing connections
	// from this address before admitting the new one.
	if len(h.byIP[c.ip]) >= maxPerIP {
		for _, old := range h.byIP[c.ip] {
			old.close()
		}
		h.byIP[c.ip] = nil
	}
	h.clients[c] = struct{}{}
	h.byIP[c.ip] = append(h.byIP[c.ip], c)
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	peers := h.byIP[c.ip]
	for i, p := range peers {
		if p == c {
			h.byIP[c.ip] = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	if len(h.byIP[c.ip]) == 0 {
		delete(h.byIP, c.ip)
	}
	h.mu.Unlock()

	c.close()
	if h.cfg.Hashrate != nil {
		h.cfg.Hashrate.Remove(c.channelID)
	}
	if h.cfg.OnMiningStop != nil {
		h.cfg.OnMiningStop(c.channelID)
	}
	if c.token != "" {
		h.cfg.Sessions.MarkDisconnected(c.token)
	}
}

// dispatch handles one inbound envelope from c.
func (h *Hub) dispatch(c *Client, env Envelope) {
	switch env.Type {
	case InPing:
		c.deliver(mustEncode(OutPong, PongPayload{Online: h.Count()}))

	case InMiningStart:
		if h.cfg.OnMiningStart != nil {
			h.cfg.OnMiningStart(c.channelID)
		}

	case InMiningStop:
		if h.cfg.OnMiningStop != nil {
			h.cfg.OnMiningStop(c.channelID)
		}
		if h.cfg.Hashrate != nil {
			h.cfg.Hashrate.Remove(c.channelID)
		}

	case InHashrate:
		var report HashrateReport
		if err := json.Unmarshal(env.Payload, &report); err != nil {
			return
		}
		// Sanity-bound self-reported rates before trusting them at all;
		// anything outside [0, hashrateReportCeiling) is almost
		// certainly bogus and is dropped rather than aggregated.
		if report.Rate < 0 || report.Rate >= hashrateReportCeiling {
			log.Debugf("hub: rejecting implausible hashrate report %v from %s", report.Rate, c.ip)
			return
		}
		if h.cfg.Hashrate != nil {
			h.cfg.Hashrate.Report(c.channelID, report.Rate)
		}

	default:
		log.Debugf("hub: unrecognized message type %q from %s", env.Type, c.ip)
	}
}

// Broadcast sends msg to every connected client without blocking on
// any individual connection.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	msg, err := encode(msgType, payload)
	if err != nil {
		log.Errorf("hub: failed to encode broadcast %s: %v", msgType, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.deliver(msg)
	}
}

// Send delivers msg to a single connection identified by channelID,
// if still connected.
func (h *Hub) Send(channelID, msgType string, payload interface{}) {
	msg, err := encode(msgType, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.channelID == channelID {
			c.deliver(msg)
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientInfo is a read-only view of one live connection, for the
// admin plane's miners/status listings.
type ClientInfo struct {
	IP        string
	ChannelID string
}

// Clients returns a snapshot of every live connection.
func (h *Hub) Clients() []ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ClientInfo, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, ClientInfo{IP: c.ip, ChannelID: c.channelID})
	}
	return out
}

// KickAll forcibly closes every live connection, for the admin
// plane's kick-all action. The caller is responsible for revoking
// sessions separately.
func (h *Hub) KickAll() int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	return len(clients)
}

// KickIP forcibly closes every live connection from ip, for the admin
// plane's kick/ban-ip action.
func (h *Hub) KickIP(ip string) int {
	h.mu.RLock()
	peers := append([]*Client(nil), h.byIP[ip]...)
	h.mu.RUnlock()

	for _, c := range peers {
		c.close()
	}
	return len(peers)
}

// Upgrade validates a connecting client's User-Agent and identity,
// then promotes the HTTP connection to a websocket and starts its
// read/write pumps.
//
// rawToken is tried first as a session token (the reconnect path);
// if that fails, it is tried as a one-shot human-challenge token (the
// first-time-visitor path), in which case a session token is minted
// and delivered as the first message.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, ip, rawToken string) error {
	if ok, reason := useragent.Validate(r.UserAgent()); !ok {
		return herrors.IdentityError(herrors.UserAgentRejected, reason)
	}
	if rawToken == "" {
		return herrors.IdentityError(herrors.SessionMissing, "missing token query parameter")
	}

	isReconnect := h.cfg.Sessions.Validate(rawToken, ip) == nil

	token := rawToken
	if !isReconnect {
		if h.cfg.Challenge == nil {
			return herrors.IdentityError(herrors.ChallengeUnavailable, "no human-challenge verifier configured")
		}
		if err := h.cfg.Challenge.VerifyToken(rawToken, ip); err != nil {
			return err
		}
		issued, err := h.cfg.Sessions.Issue(ip)
		if err != nil {
			return err
		}
		token = issued
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	channelID := ip + ":" + token[:8]
	c := newClient(h, conn, ip, channelID, token)

	if err := h.cfg.Sessions.MarkConnected(token, channelID); err != nil {
		conn.Close()
		return err
	}

	h.register <- c

	if !isReconnect {
		c.deliver(mustEncode(OutSessionToken, SessionTokenPayload{Token: token}))
	}

	go c.writePump()
	go c.readPump()
	return nil
}

func mustEncode(msgType string, payload interface{}) []byte {
	msg, err := encode(msgType, payload)
	if err != nil {
		return nil
	}
	return msg
}
