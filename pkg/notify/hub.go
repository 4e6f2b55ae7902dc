package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Viewer pages are served from a different origin than the API.
		return true
	},
}

type client struct {
	scopeID string
	conn    *websocket.Conn
	send    chan Event
}

// Hub fans lifecycle events out to websocket viewers grouped by collection.
// It implements Notifier; Publish never blocks on a slow viewer.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*client]bool
	register   chan *client
	unregister chan *client
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.scopeID] == nil {
				h.rooms[c.scopeID] = make(map[*client]bool)
			}
			h.rooms[c.scopeID][c] = true
			h.mu.Unlock()
			log.Infof("viewer joined collection %s", c.scopeID)

		case c := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[c.scopeID]; ok {
				if _, ok := room[c]; ok {
					delete(room, c)
					close(c.send)
					if len(room) == 0 {
						delete(h.rooms, c.scopeID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Publish(scopeID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[scopeID] {
		select {
		case c.send <- event:
		default:
			// Channel full, skip this viewer.
			log.Warnf("dropping event for slow viewer in collection %s", scopeID)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to scopeID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, scopeID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade: %s", err)
		return
	}

	c := &client{
		scopeID: scopeID,
		conn:    conn,
		send:    make(chan Event, sendBufferSize),
	}

	h.register <- c

	go c.writePump(h)
	go c.readPump(h)
}

func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump exists to notice disconnects; viewers never send anything we act on.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
