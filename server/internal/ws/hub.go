package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/memviz/memviz/server/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	// Same-origin UI; REST already answers with Access-Control-Allow-Origin: *.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventTeams is the event name of every message the hub sends.
const EventTeams = "teams"

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string          `json:"event"`
	Data  store.Selection `json:"data"`
}

// Hub pushes the current team selection to connected clients on connect, on
// every change, and every interval.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a Hub reading from st and subscribes it to selection changes.
func New(st *store.Store, interval time.Duration) *Hub {
	h := &Hub{
		store:    st,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
	st.Subscribe(h.Publish)
	return h
}

// Run re-sends the current selection every interval until ctx is cancelled,
// then closes all connections. A non-positive interval disables the ticker.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.interval > 0 {
		t := time.NewTicker(h.interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-tick:
			h.Publish(h.store.Get())
		}
	}
}

// Publish sends sel to every client without blocking. Clients whose buffer
// is full are dropped.
func (h *Hub) Publish(sel store.Selection) {
	data, err := encode(sel)
	if err != nil {
		slog.Error("ws: encode selection", "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !h.offer(c, data) {
			h.unregister(c)
		}
	}
}

// ServeHTTP upgrades the connection, sends the current selection and then
// streams updates. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := newClient(conn)
	h.register(c)
	defer h.unregister(c)

	if data, err := encode(h.store.Get()); err == nil {
		h.offer(c, data)
	}

	go c.writeLoop()
	c.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func encode(sel store.Selection) ([]byte, error) {
	return json.Marshal(Message{Event: EventTeams, Data: sel})
}

// offer queues data for c. It holds the read lock so that the channel cannot
// be closed underneath the send.
func (h *Hub) offer(c *client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
