package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"classboard/pkg/types"
)

func TestConnectionWriteJSONDeliversFrame(t *testing.T) {
	conn, clientConn := newTestConnection(t)

	event := &types.Event{
		Type:      types.EventClassStarted,
		Message:   "Live class has started. Tap to join.",
		MeetingID: "room-1",
	}
	if err := conn.WriteJSON(event); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var received types.Event
	if err := json.Unmarshal(data, &received); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if received.Type != types.EventClassStarted || received.MeetingID != "room-1" {
		t.Errorf("Unexpected event: %+v", received)
	}
}

func TestConnectionWriteAfterClose(t *testing.T) {
	conn, _ := newTestConnection(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	if err := conn.WriteJSON(&types.Event{Type: types.EventClassEnded}); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestConnectionConcurrentWritesAndClose(t *testing.T) {
	conn, clientConn := newTestConnection(t)

	// Drain the client side so the server's writes never back up.
	go func() {
		for {
			if _, _, err := clientConn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writers racing with Close: every write either delivers or reports the
	// connection closed; nothing may panic.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 300; j++ {
				err := conn.WriteJSON(&types.Event{Type: types.EventClassEnded})
				if err != nil && err != ErrConnectionClosed && err != ErrWriteTimeout {
					t.Errorf("Unexpected write error: %v", err)
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	_ = conn.Close()
	wg.Wait()

	if err := conn.WriteJSON(&types.Event{Type: types.EventClassEnded}); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed after close, got %v", err)
	}
}

func TestConnectionBindOnce(t *testing.T) {
	conn, _ := newTestConnection(t)

	if conn.IsBound() {
		t.Error("Expected connection to start unbound")
	}
	if !conn.Bind("student-1", types.RoleStudent) {
		t.Fatal("Expected first bind to succeed")
	}
	if conn.Bind("student-2", types.RoleAdmin) {
		t.Error("Expected rebind to be rejected")
	}
	if conn.UserID() != "student-1" || conn.Role() != types.RoleStudent {
		t.Errorf("Expected original identity kept, got %s/%s", conn.UserID(), conn.Role())
	}
}

func TestConnectionIDsAreUnique(t *testing.T) {
	first, _ := newTestConnection(t)
	second, _ := newTestConnection(t)

	if first.ID() == second.ID() {
		t.Error("Expected distinct connection IDs")
	}
}
