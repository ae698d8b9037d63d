package broadcast

import (
	"log"

	"classboard/internal/websocket"
	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

var _ interfaces.Notifier = (*Broadcaster)(nil)

// Registry is the slice of the connection registry the broadcaster needs.
// Narrowing the dependency keeps this package decoupled from registry
// internals and lets tests substitute a stub.
type Registry interface {
	ConnectionsFor(userID string) []*websocket.Connection
	AdminConnections() []*websocket.Connection
	Unregister(connectionID string)
}

// Broadcaster translates session-state transitions into push events and
// delivers them to the audience's connections.
//
// Delivery is best-effort and at-most-once per connected client per
// transition. The broadcaster never retries and never queues: it operates
// only on the connections registered at the moment of the transition, and a
// client that is offline converges through its poll fallback. A failed send
// is swallowed and de-registers the connection; nothing propagates to the
// admin request that triggered the transition.
type Broadcaster struct {
	registry Registry
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(registry Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// ClassStarted pushes a class:started event to every listed student plus all
// connected admins.
func (b *Broadcaster) ClassStarted(meetingID, message string, students []string) {
	event := &types.Event{
		Type:      types.EventClassStarted,
		Message:   message,
		MeetingID: meetingID,
	}
	b.deliver(event, students)
}

// ClassEnded pushes a class:ended event to every listed student plus all
// connected admins.
func (b *Broadcaster) ClassEnded(students []string) {
	event := &types.Event{
		Type: types.EventClassEnded,
	}
	b.deliver(event, students)
}

// deliver fans an event out to the audience: the listed students' bound
// connections, plus admin connections by policy. The seen set enforces
// at-most-once per connection even when an admin is also in the student
// list or a user appears twice.
func (b *Broadcaster) deliver(event *types.Event, students []string) {
	if err := event.Validate(); err != nil {
		log.Printf("Refusing to broadcast invalid event: %v", err)
		return
	}

	seen := make(map[string]bool)
	sent, failed := 0, 0

	audience := make([]*websocket.Connection, 0, len(students)+1)
	for _, studentID := range students {
		audience = append(audience, b.registry.ConnectionsFor(studentID)...)
	}
	audience = append(audience, b.registry.AdminConnections()...)

	for _, conn := range audience {
		if seen[conn.ID()] {
			continue
		}
		seen[conn.ID()] = true

		if err := conn.WriteJSON(event); err != nil {
			// Dead connection: swallow the error, drop it from the registry.
			failed++
			b.registry.Unregister(conn.ID())
			_ = conn.Close()
			log.Printf("Broadcast send failed, connection dropped: id=%s user=%s err=%v",
				conn.ID(), conn.UserID(), err)
			continue
		}
		sent++
	}

	log.Printf("Broadcast complete: type=%s sent=%d failed=%d", event.Type, sent, failed)
}
