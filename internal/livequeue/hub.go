// Package livequeue pushes moderation events to connected reviewers over
// websockets.
package livequeue

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"modgate/internal/metrics"
	"modgate/internal/moderation"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is how many events may queue for one client before it is
	// considered too slow and dropped.
	sendBuffer = 64
)

// Hub fans moderation events out to websocket clients. It implements
// moderation.Notifier; Publish never blocks on a slow client.
type Hub struct {
	upgrader websocket.Upgrader
	encoder  *zstd.Encoder

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

var _ moderation.Notifier = (*Hub)(nil)

type client struct {
	conn     *websocket.Conn
	userID   string
	compress bool
	send     chan []byte
	once     sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	// A nil writer is allowed when only EncodeAll is used.
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		log.Fatal().Err(err).Msg("livequeue: failed to create zstd encoder")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		encoder: encoder,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish sends ev to every connected client.
func (h *Hub) Publish(ev moderation.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", string(ev.Type)).Msg("livequeue: failed to marshal event")
		return
	}

	var compressed []byte
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		msg := payload
		if c.compress {
			if compressed == nil {
				compressed = h.encoder.EncodeAll(payload, nil)
			}
			msg = compressed
		}
		select {
		case c.send <- msg:
		default:
			log.Warn().Str("user", c.userID).Msg("livequeue: client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

// Serve upgrades the request and streams events to it until the connection
// closes. Callers authorise userID first. Clients that pass compress=true get
// zstd-compressed binary frames.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("livequeue: upgrade failed")
		return
	}

	c := &client{
		conn:     conn,
		userID:   userID,
		compress: r.URL.Query().Get("compress") == "true",
		send:     make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveQueueClients.Inc()

	log.Info().Str("user", userID).Bool("compress", c.compress).Msg("livequeue: client connected")

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.encoder.Close()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.LiveQueueClients.Dec()
	c.once.Do(func() { close(c.send) })
}

// readPump discards client messages and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		log.Info().Str("user", c.userID).Msg("livequeue: client disconnected")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	msgType := websocket.TextMessage
	if c.compress {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msgType, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
