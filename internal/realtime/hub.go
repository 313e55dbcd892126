// Package realtime pushes session lifecycle events (QR codes, logins,
// logouts) to connected frontends over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// event is the JSON envelope every push uses.
type event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub fans events out to every connected client. Clients that cannot keep up
// are dropped rather than blocking the broadcaster.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Handler accepts WebSocket upgrades and keeps the connection registered
// until the peer goes away.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Printf("WebSocket accept failed: %v", err)
			return
		}

		h.mu.Lock()
		h.conns[conn] = struct{}{}
		h.mu.Unlock()
		log.Println("connection")

		// Drain (and ignore) client frames until the connection dies.
		ctx := r.Context()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				break
			}
		}

		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		log.Println("Disconnect")
	})
}

// Emit broadcasts one event to every connected client.
func (h *Hub) Emit(name string, data interface{}) {
	payload, err := json.Marshal(event{Event: name, Data: data})
	if err != nil {
		log.Printf("Could not encode %s event: %v", name, err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.drop(conn)
		}
	}
}

// Shutdown tells clients the server is going away and closes everything.
func (h *Hub) Shutdown() {
	h.Emit("shutdown", map[string]int{"success": 1})

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.conns, conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.conns[conn]; exists {
		delete(h.conns, conn)
		conn.Close(websocket.StatusPolicyViolation, "write timeout")
	}
}
