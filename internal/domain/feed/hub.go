// Package feed pushes booking events to connected admin dashboards over
// websockets.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

// Message is what clients receive.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type command struct {
	Type       string `json:"type"`
	PropertyID int64  `json:"property_id"`
}

// connection is one dashboard tab. An empty properties set means all.
type connection struct {
	actorID    int64
	conn       *websocket.Conn
	send       chan []byte
	properties map[int64]bool
}

type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]struct{}
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		connections: make(map[*connection]struct{}),
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.send)
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Publish fans an event out to every subscribed dashboard. Slow clients miss
// messages rather than block the caller.
func (h *Hub) Publish(_ context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var ref struct {
		PropertyID int64 `json:"property_id"`
	}
	_ = json.Unmarshal(body, &ref)

	data, err := json.Marshal(Message{Type: eventType, Payload: body})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if len(c.properties) > 0 && !c.properties[ref.PropertyID] {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn("feed client too slow, dropping event", zap.Int64("actor_id", c.actorID), zap.String("event", eventType))
		}
	}
	return nil
}

// ServeWS upgrades the request. It expects JWT middleware to have set
// actor_id.
func (h *Hub) ServeWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", zap.Error(err))
		return
	}
	conn := &connection{
		actorID:    c.GetInt64("actor_id"),
		conn:       ws,
		send:       make(chan []byte, sendBuffer),
		properties: make(map[int64]bool),
	}
	h.register(conn)

	go h.writePump(conn)
	h.readPump(conn)
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(msg, &cmd); err != nil || cmd.PropertyID <= 0 {
			continue
		}
		h.mu.Lock()
		switch cmd.Type {
		case "subscribe":
			c.properties[cmd.PropertyID] = true
		case "unsubscribe":
			delete(c.properties, cmd.PropertyID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// RegisterRoutes mounts the feed on an authenticated admin group.
func (h *Hub) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/feed", h.ServeWS)
}
