package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Client is one authenticated connection. Its identity is fixed at creation; outbound
// frames go through a bounded queue drained by the transport's write loop.
type Client struct {
	id       string
	userID   string
	username string

	// ctx is cancelled when the connection goes away and bounds any in-flight work.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(userID, username string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		username: username,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, buffer),
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) UserID() string   { return c.userID }
func (c *Client) Username() string { return c.username }

// Context is done once the client is closed.
func (c *Client) Context() context.Context { return c.ctx }

// Outbound yields queued frames and is closed when the client closes.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Enqueue never blocks. A client whose queue is full is closed and the frame dropped.
func (c *Client) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.closeLocked()
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}
