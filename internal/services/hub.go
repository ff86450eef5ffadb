package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collabdeck/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	PongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// Maximum message size allowed from peer
	MaxMessageSize = 1 << 20

	// Per-client outbound buffer. Events for a client that cannot drain
	// this fast are dropped rather than blocking the publisher.
	sendBufferSize = 256
)

// Envelope is the server-to-client wire frame
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client is one connected session registered with the hub
type Client struct {
	ID   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Send queues a pre-marshalled frame for delivery. Returns false if the
// frame was dropped because the buffer is full or the queue is closed.
// The closed flag and the channel send share one lock: a Send racing
// Close observes the flag, never a closed channel.
func (c *Client) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close shuts down the client's outbound queue; safe to call repeatedly
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump pumps queued frames to the websocket connection. It runs in a
// per-connection goroutine and exits when the outbound queue is closed or a
// write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub maps logical channel names to the set of subscribed clients and fans
// events out to them. Channel names are namespaced by purpose (edit vs
// present) so editing traffic and presenter traffic never cross.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[string]*Client // channel name -> client ID -> client
	joined   map[string]map[string]bool    // client ID -> channel names
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[string]*Client),
		joined:   make(map[string]map[string]bool),
	}
}

// EditChannelName returns the broadcast channel for a presentation's
// editing traffic
func EditChannelName(presentationID int) string {
	return fmt.Sprintf("edit:%d", presentationID)
}

// PresentChannelName returns the broadcast channel for a presentation's
// presenter-follow traffic
func PresentChannelName(presentationID int) string {
	return fmt.Sprintf("present:%d", presentationID)
}

// Register adds a connection to the hub and starts its write pump
func (h *Hub) Register(id string, conn *websocket.Conn) *Client {
	client := &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[id] = client
	h.joined[id] = make(map[string]bool)
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	go client.WritePump()
	return client
}

// Unregister removes a client from every channel and closes its queue
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	for channel := range h.joined[client.ID] {
		if subs, ok := h.channels[channel]; ok {
			delete(subs, client.ID)
			if len(subs) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.joined, client.ID)
	delete(h.clients, client.ID)
	h.mu.Unlock()

	metrics.ActiveConnections.Dec()
	client.Close()
}

// Subscribe adds a client to a channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]*Client)
		h.channels[channel] = subs
	}
	subs[client.ID] = client
	h.joined[client.ID][channel] = true
}

// Unsubscribe removes a client from a channel; no-op if not subscribed
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.channels[channel]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	if joined, ok := h.joined[client.ID]; ok {
		delete(joined, channel)
	}
}

// Publish delivers an event to every client currently subscribed to the
// channel. Delivery is at-least-once relative to connections alive at send
// time; frames for clients with a full buffer are dropped.
func (h *Hub) Publish(channel, event string, payload interface{}) {
	frame, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	subs := make([]*Client, 0, len(h.channels[channel]))
	for _, client := range h.channels[channel] {
		subs = append(subs, client)
	}
	h.mu.RUnlock()

	for _, client := range subs {
		if !client.Send(frame) {
			log.Printf("Dropped %s event for slow client %s", event, client.ID)
		}
	}
	metrics.EventsPublished.WithLabelValues(event).Inc()
}

// PublishToCaller delivers an event to a single client (directed reply)
func (h *Hub) PublishToCaller(client *Client, event string, payload interface{}) {
	frame, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event, err)
		return
	}
	if !client.Send(frame) {
		log.Printf("Dropped %s reply for slow client %s", event, client.ID)
	}
	metrics.EventsPublished.WithLabelValues(event).Inc()
}

// SubscriberCount returns the number of clients subscribed to a channel
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
