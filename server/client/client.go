package client

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// SendQueueSize bounds the frames buffered for one connection
const SendQueueSize = 100

// Client is one websocket connection on the room server
type Client struct {
	Conn      *websocket.Conn
	SendQueue chan []byte
	ID        string

	mu       sync.Mutex
	playerID string
	roomCode string
	unsubs   map[string]func()
	closed   bool
}

func New(conn *websocket.Conn, id string) *Client {
	return &Client{
		Conn:      conn,
		SendQueue: make(chan []byte, SendQueueSize),
		ID:        id,
		unsubs:    make(map[string]func()),
	}
}

// Enqueue hands msg to the writer without blocking. It drops the message
// and returns false when the queue is full or the client is closed.
func (c *Client) Enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.SendQueue <- msg:
		return true
	default:
		slog.Warn("dropping message, send queue full", slog.String("client", c.ID))
		return false
	}
}

// Seat records the room and player this connection plays as
func (c *Client) Seat(code, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
	c.playerID = playerID
}

// Membership returns the room code and player id, empty if not in a room
func (c *Client) Membership() (code, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode, c.playerID
}

// Track keeps the unsubscribe func for key, replacing an older one
func (c *Client) Track(key string, unsub func()) {
	c.mu.Lock()
	old := c.unsubs[key]
	c.unsubs[key] = unsub
	c.mu.Unlock()
	if old != nil {
		old()
	}
}

// Untrack cancels the subscription for key
func (c *Client) Untrack(key string) {
	c.mu.Lock()
	unsub := c.unsubs[key]
	delete(c.unsubs, key)
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Reset cancels every subscription and forgets the room
func (c *Client) Reset() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = make(map[string]func())
	c.roomCode = ""
	c.playerID = ""
	c.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// Close stops accepting messages and closes the queue. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.SendQueue)
}
