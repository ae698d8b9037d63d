package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// upgrader with settings shared by all handler instances. All origins are
// allowed; the app is served same-origin in deployment and origin checks are
// out of scope.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler accepts push-channel connections and manages their lifecycle:
// register on open, bind on the client's auth frame, unregister on close or
// error. The channel is opened immediately after login, before any identity
// is attached, so the upgrade happens first and authentication arrives as
// the first client frame.
type Handler struct {
	registry     *Registry
	store        interfaces.Store
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a new push-channel handler. Zero durations fall back to
// a 30-second ping interval and a 60-second read timeout.
func NewHandler(registry *Registry, store interfaces.Store, pingInterval, readTimeout time.Duration) *Handler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	return &Handler{
		registry:     registry,
		store:        store,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket upgrades the request and hands the connection to its
// lifecycle goroutine.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn)

	if err := h.registry.Register(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	log.Printf("Connection registered: id=%s", wsConn.ID())

	go h.handleConnection(wsConn)
}

// handleConnection runs the read loop and heartbeat for one connection.
// Every registered connection is unregistered exactly once, through the
// deferred cleanup here or through broadcaster de-registration after a
// failed send (Unregister is idempotent either way).
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn.ID())
		_ = conn.Close()
		log.Printf("Connection closed: id=%s user=%s", conn.ID(), conn.UserID())
	}()

	// Read deadline refreshed by pongs; pings at the configured interval.
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			h.handleClientFrame(conn, data)
		}
	}
}

// handleClientFrame processes one client-to-server frame. The only expected
// frame is the initial auth message; everything else is logged and dropped.
func (h *Handler) handleClientFrame(conn *Connection, data []byte) {
	var msg types.AuthMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Discarding malformed frame from connection %s: %v", conn.ID(), err)
		return
	}

	if msg.Type != "auth" {
		log.Printf("Discarding unexpected frame type %q from connection %s", msg.Type, conn.ID())
		return
	}

	if !types.IsValidUserID(msg.UserID) {
		log.Printf("Discarding auth with invalid user ID from connection %s", conn.ID())
		return
	}

	// The binding is set by the client's own first message; the role comes
	// from the account record so students cannot claim admin delivery.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := h.store.GetUser(ctx, msg.UserID)
	if err != nil {
		log.Printf("Auth for unknown user %s on connection %s: %v", msg.UserID, conn.ID(), err)
		return
	}

	if !types.IsValidRole(user.Role) {
		log.Printf("Auth for user %s with unrecognized role %q on connection %s", user.ID, user.Role, conn.ID())
		return
	}

	if h.registry.Bind(conn.ID(), user.ID, user.Role) {
		log.Printf("Connection bound: id=%s user=%s role=%s", conn.ID(), user.ID, user.Role)
	}
}
