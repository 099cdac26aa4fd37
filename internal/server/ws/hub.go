// Package ws implements the realtime notification hub: a registry of live
// websocket connections keyed by user identity, fed by the signal bus.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// bridgedChannels are the bus channels whose payloads are broadcast to every
// live connection.
var bridgedChannels = []string{
	domain.ChannelAuctions,
	domain.ChannelBids,
}

// upgrader configures the websocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware in front.
		return true
	},
}

// client is a single websocket connection. One user may hold several at once
// (browser tabs); each is registered and released independently.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	releaseOnce sync.Once
}

// inboundMsg is the JSON shape of client-to-server messages.
type inboundMsg struct {
	Type      string `json:"type"`
	AuctionID string `json:"auction_id,omitempty"`
}

// Hub manages the set of connected clients and fans bus events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]bool // user id -> connections

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	// done is closed when Run exits so senders never block on a loop that
	// is no longer draining the channels.
	done chan struct{}

	bus    domain.SignalBus
	logger *slog.Logger
}

// NewHub creates a hub that bridges the signal bus to websocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger,
	}
}

// Run starts the hub's event loop and the bus bridge goroutines. It blocks
// until ctx is cancelled, then closes every connection's send channel.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range bridgedChannels {
		go h.bridgeChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, conns := range h.clients {
				for c := range conns {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]bool)
			h.mu.Unlock()
			close(h.done)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*client]bool)
			}
			h.clients[c.userID][c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("user_id", c.userID),
				slog.Int("total_connections", h.ConnectionCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[c.userID]; ok && conns[c] {
				delete(conns, c)
				if len(conns) == 0 {
					delete(h.clients, c.userID)
				}
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.String("user_id", c.userID),
				slog.Int("total_connections", h.ConnectionCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, conns := range h.clients {
				for c := range conns {
					select {
					case c.send <- msg:
					default:
						// Send buffer full; drop the message for this client.
						h.logger.Warn("ws: dropping message for slow client",
							slog.String("user_id", c.userID))
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every live connection. After the hub has
// shut down the message is discarded.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// SendToUser queues a message for every connection held by one user. It
// reports whether the user had at least one live connection.
func (h *Hub) SendToUser(userID string, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.clients[userID]
	if !ok || len(conns) == 0 {
		return false
	}
	for c := range conns {
		select {
		case c.send <- msg:
		default:
		}
	}
	return true
}

// ConnectionCount returns the number of live connections across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// bridgeChannel subscribes to one bus channel and forwards its payloads into
// the broadcast loop.
func (h *Hub) bridgeChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: bridged channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", channel))
				return
			}
			select {
			case h.broadcast <- data:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and registers the connection under the user
// id carried in the path.
// GET /ws/{user_id}
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// release unregisters the client and closes the socket. Both pumps call it on
// exit; the connection is released exactly once.
func (c *client) release() {
	c.releaseOnce.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			// Run already closed the send channels on shutdown.
		}
		c.conn.Close()
	})
}

// readPump reads client messages and answers the two inbound types:
// join_auction acks with joined_auction, heartbeat acks with
// heartbeat_response. Anything else is ignored.
func (c *client) readPump() {
	defer c.release()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()))
			}
			return
		}

		var in inboundMsg
		if err := json.Unmarshal(message, &in); err != nil {
			continue
		}
		switch in.Type {
		case "join_auction":
			c.reply(map[string]any{
				"type":       domain.EventJoinedAuction,
				"auction_id": in.AuctionID,
			})
		case "heartbeat":
			c.reply(map[string]any{
				"type":      domain.EventHeartbeatResponse,
				"timestamp": domain.Now().Format(time.RFC3339),
			})
		}
	}
}

// reply queues a JSON message on this connection only.
func (c *client) reply(v map[string]any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump pumps queued messages to the socket as JSON text frames and sends
// periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.release()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
