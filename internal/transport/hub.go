// Package transport provides the SSE multiplexer: client registry, outbound
// queues, and the HTTP surface for connecting and posting requests.
package transport

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// queueSize bounds each client's outbound queue. On overflow the oldest
// message is dropped so a slow SSE consumer cannot grow memory unbounded.
const queueSize = 256

// ErrClientNotFound is returned when a message targets an unknown client id.
var ErrClientNotFound = errors.New("client not found")

// Client is one connected SSE consumer. Owned exclusively by the Hub.
type Client struct {
	ID        string
	CreatedAt time.Time

	queue chan []byte
}

// Messages exposes the client's outbound queue to its SSE writer.
func (c *Client) Messages() <-chan []byte { return c.queue }

// push enqueues data, dropping the oldest queued message when full.
func (c *Client) push(data []byte) {
	for {
		select {
		case c.queue <- data:
			return
		default:
			select {
			case <-c.queue:
				log.Printf("WARN: client %s queue full, dropped oldest message", c.ID)
			default:
			}
		}
	}
}

// Hub manages the registry of connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Connect registers a new client and returns it.
func (h *Hub) Connect() *Client {
	client := &Client{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		queue:     make(chan []byte, queueSize),
	}
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	log.Printf("SSE client connected: %s", client.ID)
	return client
}

// Disconnect removes the client. Messages enqueued afterwards are lost.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		log.Printf("SSE client disconnected: %s", id)
	}
}

// Has reports whether a client id is registered.
func (h *Hub) Has(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

// Enqueue marshals v onto the client's queue in FIFO order.
func (h *Hub) Enqueue(id string, v any) error {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	client.push(data)
	return nil
}

// Broadcast enqueues v to every registered client. A failure for one client
// is logged and does not affect the others.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: broadcast marshal failed: %v", err)
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.push(data)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
