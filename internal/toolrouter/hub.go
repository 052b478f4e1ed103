package toolrouter

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// wsBufferSize bounds how many pending events a slow subscriber may
// queue before further events for it are dropped, mirroring the teacher's Hub broadcast
// channel sizing (internal/server/hub.go).
const wsBufferSize = 256

// wsClient is one connected live-update subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan statestore.Event
}

// Hub fans out statestore.Bus events to websocket subscribers,
// generalized from the teacher's dashboard-state Hub to spec.md §5's
// "subscribers that cannot keep up are dropped (not blocked)"
// backpressure policy: the bus already drops at the channel layer, and
// this hub additionally drops events for a client whose own send buffer
// is full; the client itself stays connected.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]bool
	upgrader websocket.Upgrader
}

// NewHub builds a websocket broadcast hub subscribed to store's bus.
func NewHub(store *statestore.Store) *Hub {
	h := &Hub{
		clients: make(map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	events, _ := store.Bus().Subscribe()
	go func() {
		for ev := range events {
			h.broadcast(ev)
		}
	}()
	return h
}

// ServeWS upgrades an HTTP connection to a websocket live-update stream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn, send: make(chan statestore.Event, wsBufferSize)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
	}()

	for ev := range client.send {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// ClientCount reports the number of connected live-update subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev statestore.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// client's buffer is full; drop the event for it rather than
			// block the bus's delivery goroutine.
		}
	}
}
