package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/automeet/logger"
)

// clientBuffer is the number of undelivered events a client may queue
// before further events to it are dropped.
const clientBuffer = 64

// Client is one connected subscriber.
type Client struct {
	id     string
	events chan Event
}

// NewClient creates a client with a buffered event channel.
func NewClient(id string) *Client {
	return &Client{id: id, events: make(chan Event, clientBuffer)}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Events returns the client's event channel. It is closed when the client
// is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// send queues e without blocking. It returns false if the buffer is full.
func (c *Client) send(e Event) bool {
	select {
	case c.events <- e:
		return true
	default:
		return false
	}
}

type message struct {
	pattern string
	event   Event
}

// Hub routes events to clients. Run must be running for Register,
// Unregister and Publish to make progress; after Stop they return at once.
type Hub struct {
	log *logger.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a hub. Start it with Run.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get("sse")
	}
	return &Hub{
		log:        log,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.id]; ok {
				close(old.events)
			}
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("sse client registered", logger.Fields("client_id", c.id, "clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
				close(c.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("sse client unregistered", logger.Fields("client_id", c.id, "clients", total))

		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

// Stop shuts the hub down. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client. A client already registered under the same ID
// is replaced and its channel closed.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.events)
	}
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends e to every client whose ID matches pattern
// (filepath.Match syntax).
func (h *Hub) Publish(pattern string, e Event) {
	select {
	case h.broadcast <- message{pattern: pattern, event: e}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for id, c := range h.clients {
		ok, err := filepath.Match(m.pattern, id)
		if err != nil {
			h.log.Error("invalid sse pattern", logger.Fields("pattern", m.pattern, logger.FieldError, err.Error()))
			return
		}
		if !ok {
			continue
		}
		if !c.send(m.event) {
			h.log.Warn("sse client too slow, event dropped", logger.Fields("client_id", id, "event", m.event.Type))
			continue
		}
		matched++
	}
	h.log.Debug("sse event published", logger.Fields("pattern", m.pattern, "event", m.event.Type, "delivered", matched))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}
