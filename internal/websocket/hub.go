package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event types pushed to reviewers
const (
	EventInboxQueued     = "INBOX_QUEUED"
	EventInboxResolved   = "INBOX_RESOLVED"
	EventImportCompleted = "IMPORT_COMPLETED"
)

// Event is the envelope sent to every listener.
type Event struct {
	Type    string      `json:"type"`
	StoreID string      `json:"storeId,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type outbound struct {
	storeID string
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{} // closed when Run returns

	// Mutex for thread-safe access to clients map
	mu  sync.RWMutex
	log *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
		log:        log.Named("ws"),
	}
}

// Run starts the hub's main loop until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Debug("listener connected", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Debug("listener disconnected", zap.String("client_id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				if !c.wants(msg.storeID) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// slow listener, drop it
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c; a stopped hub already dropped every client.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues ev for every listener subscribed to its store (or to all stores).
// It never blocks; events are dropped when the queue is full.
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- outbound{storeID: ev.StoreID, payload: payload}:
	default:
		h.log.Warn("event queue full, dropping", zap.String("type", ev.Type))
	}
}

// ClientCount returns the number of connected listeners.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
