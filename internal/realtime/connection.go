package realtime

import (
	"context"
	"slices"
	"sync"

	"github.com/matheus3301/chatsync/internal/protocol"
)

// Connection is the logical link to the hub for one identity. It survives
// transport drops; the Manager redials underneath it until it is closed.
type Connection struct {
	identityID string
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	mu        sync.Mutex
	transport Transport
	closed    bool
	listeners map[int]func(protocol.Message)
	nextID    int
}

func newConnection(parent context.Context, identityID string) *Connection {
	ctx, cancel := context.WithCancel(parent)
	return &Connection{
		identityID: identityID,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		listeners:  make(map[int]func(protocol.Message)),
	}
}

// IdentityID returns the identity the connection was opened for.
func (c *Connection) IdentityID() string { return c.identityID }

// Done is closed once the connection's run loop has exited.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Listen registers fn for every message delivered on this connection. fn runs
// on the connection's read goroutine, so deliveries arrive in hub order.
// The returned function detaches fn and may be called any number of times.
func (c *Connection) Listen(fn func(protocol.Message)) (stop func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Listeners returns the number of attached delivery listeners.
func (c *Connection) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Connection) dispatch(msg protocol.Message) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(protocol.Message), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// attach records t as the live transport. It fails once the connection is closed.
func (c *Connection) attach(t Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.transport = t
	return true
}

func (c *Connection) detach(t Transport) {
	c.mu.Lock()
	if c.transport == t {
		c.transport = nil
	}
	c.mu.Unlock()
	_ = t.Close()
}

// close stops the run loop and tears down the live transport, if any.
func (c *Connection) close() {
	c.cancel()
	c.mu.Lock()
	c.closed = true
	t := c.transport
	c.transport = nil
	c.mu.Unlock()
	if t != nil {
		_ = t.Close()
	}
}
