package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classboard/pkg/interfaces"
)

var _ interfaces.Connection = (*Connection)(nil)

// Connection wraps one push channel to a client. WebSocket writes must be
// serialized, so all frames funnel through a single writer goroutine.
//
// A connection starts unbound: it exists and is registered, but receives no
// targeted events until the client's auth frame binds a user identity.
// Binding happens at most once.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte // buffered so broadcasts never block on one slow client
	userID    string
	role      string
	bound     bool
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex // protects userID, role, bound
}

// NewConnection creates a connection wrapper with a fresh opaque ID and
// starts its writer goroutine.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer for the underlying socket. writeCh is never
// closed: a concurrent WriteJSON may be parked on the send case at any
// moment, so shutdown is signalled through ctx alone and undelivered frames
// are simply abandoned.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON sends a JSON frame to the client. Returns ErrConnectionClosed
// once the connection is shut down, which the broadcaster treats as a signal
// to de-register.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the connection. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// ID returns the opaque per-socket identity.
func (c *Connection) ID() string {
	return c.id
}

// Bind attaches a user identity to the connection. The transition is
// Unbound -> Bound, never re-enterable: a second call is ignored and
// reported false.
func (c *Connection) Bind(userID, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound {
		return false
	}

	c.userID = userID
	c.role = role
	c.bound = true

	return true
}

// IsBound reports whether the connection has a user identity.
func (c *Connection) IsBound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bound
}

// UserID returns the bound user, or "" while unbound.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Role returns the bound user's role, or "" while unbound.
func (c *Connection) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}
