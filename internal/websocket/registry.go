package websocket

import (
	"log"
	"sync"

	"classboard/pkg/types"
)

// Registry tracks live client connections keyed by connection ID, with a
// per-user index for targeted delivery and an admin index for audience
// expansion. A user may hold several connections at once (multiple tabs or
// devices), so the per-user index maps to a set, not a single connection.
//
// Register/Bind/Unregister run concurrently from connection lifecycle
// goroutines; the RWMutex keeps the three indices consistent.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection            // connectionID -> connection
	byUser      map[string]map[string]*Connection // userID -> connectionID -> connection
	admins      map[string]*Connection            // connectionID -> bound admin connection
}

// NewRegistry creates a new connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[string]map[string]*Connection),
		admins:      make(map[string]*Connection),
	}
}

// Register adds an unbound connection.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID()] = conn
	return nil
}

// Bind attaches a user identity to a registered connection and indexes it
// for delivery. Called upon receipt of the client's auth frame. A second
// bind on the same connection fails silently (logs only) and is ignored, as
// is a bind for a connection that was never registered or already
// unregistered.
func (r *Registry) Bind(connectionID, userID, role string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		log.Printf("Bind ignored for unknown connection: id=%s user=%s", connectionID, userID)
		return false
	}

	if !conn.Bind(userID, role) {
		log.Printf("Bind ignored, connection already bound: id=%s user=%s", connectionID, conn.UserID())
		return false
	}

	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Connection)
	}
	r.byUser[userID][connectionID] = conn

	if role == types.RoleAdmin {
		r.admins[connectionID] = conn
	}

	return true
}

// Unregister removes a connection from all indices. Idempotent: called on
// transport close or error, and again by the broadcaster when a send fails.
// Once Unregister returns, no broadcast delivers to the connection.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return
	}

	delete(r.connections, connectionID)
	delete(r.admins, connectionID)

	if userID := conn.UserID(); userID != "" {
		if userConns, ok := r.byUser[userID]; ok {
			delete(userConns, connectionID)
			if len(userConns) == 0 {
				delete(r.byUser, userID)
			}
		}
	}
}

// ConnectionsFor returns all bound connections for a user. Returns an empty
// slice for unknown or unbound users, never fails.
func (r *Registry) ConnectionsFor(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []*Connection
	for _, conn := range r.byUser[userID] {
		connections = append(connections, conn)
	}

	return connections
}

// AdminConnections returns all bound admin connections.
func (r *Registry) AdminConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []*Connection
	for _, conn := range r.admins {
		connections = append(connections, conn)
	}

	return connections
}

// Stats returns registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bound := 0
	for _, conns := range r.byUser {
		bound += len(conns)
	}

	return map[string]int{
		"total_connections": len(r.connections),
		"bound_connections": bound,
		"admin_connections": len(r.admins),
	}
}
