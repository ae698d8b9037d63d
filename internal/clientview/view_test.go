package clientview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"classboard/pkg/types"
)

// sessionServer fakes the API: a mutable live-session record behind
// GET /api/live-class, and a push endpoint that forwards injected events to
// every connected client after its auth frame.
type sessionServer struct {
	mu      sync.Mutex
	session *types.LiveSession
	conns   []*websocket.Conn

	server *httptest.Server
}

func newSessionServer(t *testing.T) *sessionServer {
	t.Helper()

	s := &sessionServer{session: types.IdleSession()}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/live-class", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.session)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var auth types.AuthMessage
		if err := conn.ReadJSON(&auth); err != nil || auth.Type != "auth" {
			_ = conn.Close()
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *sessionServer) baseURL() string { return s.server.URL }

func (s *sessionServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

func (s *sessionServer) setSession(session *types.LiveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *sessionServer) push(event *types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.WriteJSON(event)
	}
}

func (s *sessionServer) hasClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns) > 0
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

type recorder struct {
	mu      sync.Mutex
	started []string
	ended   int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		ClassStarted: func(meetingID, message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.started = append(r.started, meetingID)
		},
		ClassEnded: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ended++
		},
	}
}

func (r *recorder) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func (r *recorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

func TestPushEventFiresJoinPrompt(t *testing.T) {
	server := newSessionServer(t)
	rec := &recorder{}

	view := NewView(server.baseURL(), server.wsURL(), "student-1", time.Hour, rec.callbacks())
	view.Start(context.Background())
	defer view.Stop()

	waitFor(t, 2*time.Second, server.hasClient)

	server.push(&types.Event{
		Type:      types.EventClassStarted,
		Message:   "Live class has started. Tap to join.",
		MeetingID: "room-1",
	})

	waitFor(t, 2*time.Second, func() bool { return rec.startedCount() == 1 })

	if session := view.Session(); !session.IsActive || session.MeetingID != "room-1" {
		t.Errorf("Unexpected snapshot after push: %+v", session)
	}

	// The same event again must not re-prompt.
	server.push(&types.Event{
		Type:      types.EventClassStarted,
		Message:   "Live class has started. Tap to join.",
		MeetingID: "room-1",
	})
	time.Sleep(100 * time.Millisecond)
	if rec.startedCount() != 1 {
		t.Errorf("Expected one prompt, got %d", rec.startedCount())
	}

	server.push(&types.Event{Type: types.EventClassEnded})
	waitFor(t, 2*time.Second, func() bool { return rec.endedCount() == 1 })

	if session := view.Session(); session.IsActive {
		t.Error("Expected idle snapshot after ended push")
	}
}

func TestPollRecoversMissedTransition(t *testing.T) {
	server := newSessionServer(t)
	rec := &recorder{}

	// Short poll interval; the push channel points nowhere useful, so every
	// transition must arrive through polling alone.
	view := NewView(server.baseURL(), "ws://127.0.0.1:1/ws", "student-1", 50*time.Millisecond, rec.callbacks())
	view.Start(context.Background())
	defer view.Stop()

	server.setSession(&types.LiveSession{
		MeetingID:       "room-1",
		IsActive:        true,
		InvitedStudents: []string{"student-1"},
		UpdatedAt:       time.Now().UTC(),
	})

	waitFor(t, 2*time.Second, func() bool { return rec.startedCount() == 1 })

	server.setSession(types.IdleSession())
	waitFor(t, 2*time.Second, func() bool { return rec.endedCount() == 1 })
}

func TestPollIgnoresUninvitedSession(t *testing.T) {
	server := newSessionServer(t)
	rec := &recorder{}

	server.setSession(&types.LiveSession{
		MeetingID:       "room-1",
		IsActive:        true,
		InvitedStudents: []string{"someone-else"},
		UpdatedAt:       time.Now().UTC(),
	})

	view := NewView(server.baseURL(), "ws://127.0.0.1:1/ws", "student-1", 50*time.Millisecond, rec.callbacks())
	view.Start(context.Background())
	defer view.Stop()

	time.Sleep(200 * time.Millisecond)
	if rec.startedCount() != 0 {
		t.Error("Expected no prompt for a class the user is not invited to")
	}

	// The snapshot still reflects server state.
	if session := view.Session(); !session.IsActive {
		t.Error("Expected snapshot to track the server even without a prompt")
	}
}

func TestPushThenPollDoesNotDoublePrompt(t *testing.T) {
	server := newSessionServer(t)
	rec := &recorder{}

	view := NewView(server.baseURL(), server.wsURL(), "student-1", 50*time.Millisecond, rec.callbacks())
	view.Start(context.Background())
	defer view.Stop()

	waitFor(t, 2*time.Second, server.hasClient)

	// The push and the next poll describe the same transition.
	server.setSession(&types.LiveSession{
		MeetingID:       "room-1",
		IsActive:        true,
		InvitedStudents: []string{"student-1"},
		UpdatedAt:       time.Now().UTC(),
	})
	server.push(&types.Event{
		Type:      types.EventClassStarted,
		Message:   "Live class has started. Tap to join.",
		MeetingID: "room-1",
	})

	waitFor(t, 2*time.Second, func() bool { return rec.startedCount() >= 1 })
	time.Sleep(200 * time.Millisecond)

	if rec.startedCount() != 1 {
		t.Errorf("Expected exactly one prompt, got %d", rec.startedCount())
	}
}
