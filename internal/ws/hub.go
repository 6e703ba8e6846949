package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one live websocket view.
type Client struct {
	conn       *websocket.Conn
	info       ConnInfo
	kind       string
	resourceID string

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, info ConnInfo, kind, resourceID string) *Client {
	return &Client{conn: conn, info: info, kind: kind, resourceID: resourceID}
}

// Send writes one JSON frame. A failed write closes the connection, which ends the
// client's read loop and tears the view down.
func (c *Client) Send(frame any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(frame); err != nil {
		log.Printf("websocket write error kind=%s resource_id=%s conn_id=%s: %v", c.kind, c.resourceID, c.info.ConnID, err)
		publishWSEvent(context.Background(), c.kind, c.resourceID, "ws_error", c.info, err.Error())
		c.conn.Close()
	}
}

// closeWith sends a close frame and closes the connection.
func (c *Client) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}

// Hub tracks live websocket views by kind and resource.
type Hub struct {
	clients map[string]map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[string]map[*Client]struct{})}
}

// Add registers a client.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.kind]; !ok {
		h.clients[c.kind] = make(map[string]map[*Client]struct{})
	}
	if _, ok := h.clients[c.kind][c.resourceID]; !ok {
		h.clients[c.kind][c.resourceID] = make(map[*Client]struct{})
	}
	h.clients[c.kind][c.resourceID][c] = struct{}{}
}

// Remove unregisters a client.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	resources, ok := h.clients[c.kind]
	if !ok {
		return
	}
	if conns, ok := resources[c.resourceID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(resources, c.resourceID)
		}
	}
	if len(resources) == 0 {
		delete(h.clients, c.kind)
	}
}

// Count reports the live clients of a kind on a resource.
func (h *Hub) Count(kind, resourceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[kind][resourceID])
}

// CloseAll closes every live connection, as on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, resources := range h.clients {
		for _, conns := range resources {
			for c := range conns {
				all = append(all, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}
