package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maxMessageSize bounds inbound frame size; the only sizeable
	// inbound payload is a hashrate report, which is tiny.
	maxMessageSize = 1024

	// maxPingMisses is how many unanswered pings are tolerated before
	// the connection is considered dead.
	maxPingMisses = 3

	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one established websocket connection.
type Client struct {
	hub *Hub
	ws  *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	ip        string
	channelID string
	token     string

	pingMisses int
}

func newClient(h *Hub, conn *websocket.Conn, ip, channelID, token string) *Client {
	return &Client{
		hub:       h,
		ws:        conn,
		send:      make(chan []byte, 16),
		done:      make(chan struct{}),
		ip:        ip,
		channelID: channelID,
		token:     token,
	}
}

// readPump parses and dispatches inbound messages until the
// connection errors or closes. Must run in its own goroutine.
func (c *Client) readPump() {
	defer func() { c.hub.unregister <- c }()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		c.pingMisses = 0
		return nil
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("hub: read error from %s: %v", c.ip, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.hub.dispatch(c, env)
	}
}

// writePump drains c.send to the socket and answers the ping ticker,
// closing the connection after maxPingMisses unanswered pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debugf("hub: write error to %s: %v", c.ip, err)
				return
			}
		case <-ticker.C:
			if c.pingMisses >= maxPingMisses {
				log.Debugf("hub: closing unresponsive connection from %s", c.ip)
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.pingMisses++
		case <-c.done:
			return
		}
	}
}

// deliver enqueues msg for delivery without blocking; if the client's
// outbound buffer is full it is treated as unreachable and closed
// rather than backpressuring the broadcaster.
func (c *Client) deliver(msg []byte) {
	select {
	case c.send <- msg:
	default:
		log.Debugf("hub: dropping slow client %s", c.ip)
		c.hub.unregister <- c
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
