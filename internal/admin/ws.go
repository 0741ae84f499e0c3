package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// statusPushInterval is how often the admin websocket pushes a fresh
// status snapshot to a connected dashboard.
const statusPushInterval = 2 * time.Second

var adminUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleAdminWebsocket upgrades GET /api/admin/ws and pushes a
// STATUS_UPDATE message every statusPushInterval until the connection
// closes. Auth is by query-param token, since a websocket handshake
// carries no Authorization header the browser controls.
func (s *Server) handleAdminWebsocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !s.validAdminToken(token) {
		http.Error(w, "invalid admin token", http.StatusForbidden)
		return
	}

	conn, err := adminUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("admin: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	log.Infof("admin: websocket connected from %s", r.RemoteAddr)
	defer log.Infof("admin: websocket disconnected from %s", r.RemoteAddr)

	// A read goroutine exists solely to notice the client closing the
	// connection; the admin dashboard never sends anything itself.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			msg := s.statusPushPayload()
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) statusPushPayload() []byte {
	snap := s.cfg.Puzzle.Snapshot()
	payload := map[string]interface{}{
		"type":           "STATUS_UPDATE",
		"seed":           snap.Seed,
		"difficulty":     snap.Difficulty,
		"min_difficulty": snap.MinDifficulty,
		"max_difficulty": snap.MaxDifficulty,
		"active_miners":  s.cfg.Puzzle.ActiveMinerCount(),
	}
	if s.cfg.Hub != nil {
		payload["connected_clients"] = s.cfg.Hub.Count()
	}
	if s.cfg.Hashrate != nil {
		hrSnap := s.cfg.Hashrate.Snapshot()
		payload["total_hashrate"] = hrSnap.TotalHashesPerSecond
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return []byte(`{"type":"STATUS_UPDATE"}`)
	}
	return msg
}
