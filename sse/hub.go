package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/streamkit/logger"
)

// defaultClientBuffer is the per-client event buffer used when no explicit
// buffer is configured. A full buffer drops events rather than blocking the
// fan-out loop.
const defaultClientBuffer = 256

// Client is a single connected event stream consumer.
type Client struct {
	id       string
	metadata map[string]string
	events   chan []byte
	buffer   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) {
		c.metadata[key] = value
	}
}

// WithUserID sets the user ID metadata.
func WithUserID(userID string) ClientOption {
	return WithMetadata(logger.FieldUserID, userID)
}

// WithSessionID sets the session ID metadata.
func WithSessionID(sessionID string) ClientOption {
	return WithMetadata(logger.FieldSessionID, sessionID)
}

// WithBuffer overrides the client's event buffer size.
func WithBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// NewClient creates a client with the given ID and options.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		buffer:   defaultClientBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan []byte, c.buffer)
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Metadata returns all client metadata.
func (c *Client) Metadata() map[string]string {
	return c.metadata
}

// GetMetadata returns a specific metadata value.
func (c *Client) GetMetadata(key string) string {
	return c.metadata[key]
}

// UserID returns the client's user ID metadata.
func (c *Client) UserID() string {
	return c.metadata[logger.FieldUserID]
}

// SessionID returns the client's session ID metadata.
func (c *Client) SessionID() string {
	return c.metadata[logger.FieldSessionID]
}

// Events returns the channel delivering this client's events.
func (c *Client) Events() <-chan []byte {
	return c.events
}

// Send queues data for the client. It reports false when the client's
// buffer is full; the event is dropped so one slow consumer cannot stall
// the fan-out loop.
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		logger.Warn("Client buffer full, dropping event", map[string]interface{}{
			logger.FieldClientID: c.id,
		})
		return false
	}
}

// Close closes the client's event channel.
func (c *Client) Close() {
	close(c.events)
}

// Hub tracks connected clients and fans broadcast data out to the ones
// whose ID matches the broadcast pattern.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	stopped    bool
	mu         sync.RWMutex
}

// Message pairs broadcast data with the glob pattern selecting its
// recipients.
type Message struct {
	Pattern string
	Data    []byte
}

// NewHub creates an empty hub. Call Run to start the fan-out loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
	}
}

// Run drives registration and fan-out until Stop is called. Run it in a
// goroutine; Register, Unregister, and BroadcastToPattern block until the
// loop picks them up.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			logger.Debug("Client registered", map[string]interface{}{
				logger.FieldClientID: client.id,
				"total_clients":      len(h.clients),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			h.mu.Unlock()
			logger.Debug("Client unregistered", map[string]interface{}{
				logger.FieldClientID: client.id,
				"total_clients":      len(h.clients),
			})

		case msg := <-h.broadcast:
			h.fanOut(msg.Pattern, msg.Data)
		}
	}
}

// Stop shuts the hub down: all clients are closed and Run returns. Safe to
// call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	logger.Debug("All clients closed during shutdown")
}

// Done is closed when the hub stops. Long-lived consumers select on it to
// end their streams.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds a client to the hub. After the hub has stopped it is a
// no-op.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client and closes its event channel. After the hub
// has stopped it is a no-op; shutdown already closed every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToPattern sends data to every client whose ID matches the glob
// pattern, e.g. "stream:*" or "stream:abc123". Broadcasts to a stopped hub
// are dropped.
func (h *Hub) BroadcastToPattern(pattern string, data []byte) {
	msg := &Message{
		Pattern: pattern,
		Data:    data,
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// fanOut delivers data to matching clients. Runs on the hub goroutine.
func (h *Hub) fanOut(pattern string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := 0
	for clientID, client := range h.clients {
		ok, err := filepath.Match(pattern, clientID)
		if err != nil {
			logger.Error("Bad broadcast pattern", map[string]interface{}{
				logger.FieldPattern: pattern,
				logger.FieldError:   err.Error(),
			})
			continue
		}
		if ok && client.Send(data) {
			matched++
		}
	}

	logger.Debug("Broadcast delivered", map[string]interface{}{
		logger.FieldPattern: pattern,
		"matched":           matched,
		"data_size":         len(data),
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Lookup returns the client with the given ID, or nil.
func (h *Hub) Lookup(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

var _ Broadcaster = (*Hub)(nil)
