package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"yaca/internal/metrics"
	"yaca/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 256

// State is a subscriber connection's lifecycle position: Connecting -> Open -> Closed.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// OutboundEvent is the frame pushed to subscribers.
type OutboundEvent struct {
	Type    string             `json:"type"`
	Message models.ChatMessage `json:"message"`
}

const EventNewChatMessage = "newChatMessage"

// Hub owns the registry of open subscriber connections. Only its run loop
// touches the registry; it consumes three kinds of events: register (connect),
// unregister (disconnect) and broadcast (new message).
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	online     atomic.Int32
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			h.drop(c)
		}
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.online.Store(int32(len(h.clients)))
			metrics.WsConnections.Inc()
			c.state.Store(int32(StateOpen))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				// Never wait on a subscriber: a full buffer means it is too slow, evict it.
				select {
				case c.send <- msg:
				default:
					log.Debug().Str("client", c.id).Str("username", c.username).Msg("evicting slow subscriber")
					metrics.BroadcastDropped.Inc()
					h.drop(c)
				}
			}
		}
	}
}

// drop removes c from the registry and closes its send channel. Run loop only.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	h.online.Store(int32(len(h.clients)))
	metrics.WsConnections.Dec()
	close(c.send)
	c.state.Store(int32(StateClosed))
}

// Register moves c to Open. When it returns, every later Publish reaches c.
// It reports false if the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		c.state.Store(int32(StateClosed))
		return false
	}
}

// Unregister moves c to Closed. It is idempotent; when it returns no later
// Publish reaches c.
func (h *Hub) Unregister(c *Client) {
	if c.State() == StateClosed {
		return
	}
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues msg for every open subscriber. Delivery is best effort and
// never reports an error.
func (h *Hub) Publish(msg models.ChatMessage) {
	b, err := json.Marshal(OutboundEvent{Type: EventNewChatMessage, Message: msg})
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("encode broadcast")
		return
	}
	select {
	case h.broadcast <- b:
	case <-h.done:
	}
}

// Online returns the number of open subscribers.
func (h *Hub) Online() int { return int(h.online.Load()) }

// Client is one subscriber connection.
type Client struct {
	id       string
	username string
	send     chan []byte
	state    atomic.Int32
}

func NewClient(username string) *Client {
	return &Client{id: uuid.NewString(), username: username, send: make(chan []byte, sendBuffer)}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) Username() string { return c.username }
func (c *Client) State() State     { return State(c.state.Load()) }

// Outbound yields frames queued for this client; it is closed when the client leaves the hub.
func (c *Client) Outbound() <-chan []byte { return c.send }
