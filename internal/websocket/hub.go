package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"tallyboard/internal/service"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Heartbeat interval for revision checks. Clients only refetch stats
	// when the revision changes, at most once per heartbeat.
	revisionHeartbeatInterval = 2 * time.Second
)

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts revision updates to
// them. It polls the store-side revision counter instead of receiving pushes,
// so mutations from any process sharing the store are picked up.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	tally *service.TallyService

	mu           sync.RWMutex
	lastRevision int64
}

// RevisionUpdate is the heartbeat message sent to clients
type RevisionUpdate struct {
	Type     string `json:"type"`
	Revision int64  `json:"revision"`
}

// NewHub creates a new WebSocket hub
func NewHub(tally *service.TallyService) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		tally:      tally,
	}
}

// Run starts the WebSocket hub loop
func (h *Hub) Run(ctx context.Context) {
	log.Println("WebSocket hub started")

	ticker := time.NewTicker(revisionHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client connected (total: %d)", h.GetClientCount())

			h.sendInitialRevision(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("Client disconnected (total: %d)", h.GetClientCount())

		case <-ticker.C:
			h.checkAndBroadcastRevision(ctx)

		case <-ctx.Done():
			log.Println("WebSocket hub shutting down")
			return
		}
	}
}

// checkAndBroadcastRevision broadcasts when the collection revision moved
func (h *Hub) checkAndBroadcastRevision(ctx context.Context) {
	revision, err := h.tally.Revision(ctx)
	if err != nil {
		log.Printf("Failed to get revision: %v", err)
		return
	}

	if revision == h.lastRevision {
		return
	}
	h.lastRevision = revision

	message, err := json.Marshal(RevisionUpdate{
		Type:     "REVISION_UPDATE",
		Revision: revision,
	})
	if err != nil {
		log.Printf("Failed to marshal revision update: %v", err)
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, skip this client
		}
	}
	h.mu.RUnlock()
}

// sendInitialRevision tells a newly connected client where the collection is
func (h *Hub) sendInitialRevision(ctx context.Context, client *Client) {
	revision, err := h.tally.Revision(ctx)
	if err != nil {
		log.Printf("Failed to get initial revision: %v", err)
		return
	}

	if h.lastRevision == 0 {
		h.lastRevision = revision
	}

	message, err := json.Marshal(RevisionUpdate{
		Type:     "REVISION_UPDATE",
		Revision: revision,
	})
	if err != nil {
		log.Printf("Failed to marshal initial revision: %v", err)
		return
	}

	select {
	case client.send <- message:
	case <-time.After(2 * time.Second):
		log.Println("Timeout sending initial revision, client may be slow")
	}
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection until the client goes away. Clients are not
// expected to send anything.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket unexpected close: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		// Fold queued messages into the same frame
		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write([]byte{'\n'})
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}

	// The hub closed the channel
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS attaches a fresh client to the hub and blocks until it disconnects
func ServeWS(hub *Hub, conn *websocket.Conn) {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	client.readPump()
}
