package clientview

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classboard/pkg/types"
)

// Callbacks receives session-state transitions observed by the view. Both
// are optional; nil callbacks are skipped.
type Callbacks struct {
	// ClassStarted fires when a live class the user is invited to becomes
	// active (the join prompt).
	ClassStarted func(meetingID, message string)
	// ClassEnded fires when the active class ends, so an open meeting widget
	// can be torn down.
	ClassEnded func()
}

// View maintains a client's local copy of the live-session record. It layers
// two inputs:
//
//   - push events over the WebSocket channel, for low latency
//   - a periodic poll of GET /api/live-class, for reliability
//
// The poll result always overwrites the local snapshot, so a missed push is
// corrected within one poll interval. Transitions are deduplicated by meeting
// ID so a push followed by a poll of the same state fires the callbacks once.
type View struct {
	baseURL      string
	wsURL        string
	userID       string
	pollInterval time.Duration
	httpClient   *http.Client
	callbacks    Callbacks

	mu       sync.RWMutex
	session  *types.LiveSession
	promptID string // meeting ID the join prompt last fired for

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewView creates a session view for one user. baseURL is the API root
// (e.g. "http://localhost:8080"), wsURL the push endpoint
// (e.g. "ws://localhost:8080/ws").
func NewView(baseURL, wsURL, userID string, pollInterval time.Duration, callbacks Callbacks) *View {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &View{
		baseURL:      baseURL,
		wsURL:        wsURL,
		userID:       userID,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		callbacks:    callbacks,
		session:      types.IdleSession(),
	}
}

// Start launches the push listener and the poll loop. It returns after the
// first poll attempt so callers start from a fresh snapshot.
func (v *View) Start(ctx context.Context) {
	ctx, v.cancel = context.WithCancel(ctx)

	v.pollOnce(ctx)

	v.wg.Add(2)
	go v.pollLoop(ctx)
	go v.pushLoop(ctx)
}

// Stop terminates both loops and waits for them to exit.
func (v *View) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
	v.wg.Wait()
}

// Session returns the current local snapshot.
func (v *View) Session() *types.LiveSession {
	v.mu.RLock()
	defer v.mu.RUnlock()
	copied := *v.session
	return &copied
}

// pollLoop refreshes the snapshot at the configured interval.
func (v *View) pollLoop(ctx context.Context) {
	defer v.wg.Done()

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v.pollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce fetches the live-session record and reconciles the snapshot.
// Failures leave the previous snapshot in place; the next tick retries.
func (v *View) pollOnce(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/api/live-class", nil)
	if err != nil {
		return
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		log.Printf("Session poll failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Session poll returned status %d", resp.StatusCode)
		return
	}

	var session types.LiveSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		log.Printf("Session poll returned malformed body: %v", err)
		return
	}
	if session.InvitedStudents == nil {
		session.InvitedStudents = []string{}
	}

	v.applySnapshot(&session)
}

// pushLoop dials the push channel and processes events, reconnecting with a
// fixed backoff. The poll loop keeps the snapshot fresh while disconnected.
func (v *View) pushLoop(ctx context.Context) {
	defer v.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := v.runConnection(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Push channel disconnected: %v", err)
		}

		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

// runConnection handles one connection lifetime: dial, send the auth frame,
// then read events until the connection drops or the context ends.
func (v *View) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, v.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	auth := types.AuthMessage{Type: "auth", UserID: v.userID}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth frame failed: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var event types.Event
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}
		v.handleEvent(&event)
	}
}

// handleEvent applies a push event to the snapshot. Push events carry less
// state than the full record (no invitee list), so they update only the
// fields they carry; the next poll fills in the rest.
func (v *View) handleEvent(event *types.Event) {
	switch event.Type {
	case types.EventClassStarted:
		v.mu.Lock()
		v.session = &types.LiveSession{
			MeetingID:       event.MeetingID,
			IsActive:        true,
			InvitedStudents: v.session.InvitedStudents,
			UpdatedAt:       time.Now().UTC(),
		}
		fire := v.promptID != event.MeetingID
		if fire {
			v.promptID = event.MeetingID
		}
		v.mu.Unlock()

		if fire && v.callbacks.ClassStarted != nil {
			v.callbacks.ClassStarted(event.MeetingID, event.Message)
		}

	case types.EventClassEnded:
		v.mu.Lock()
		wasActive := v.session.IsActive
		v.session = types.IdleSession()
		v.promptID = ""
		v.mu.Unlock()

		if wasActive && v.callbacks.ClassEnded != nil {
			v.callbacks.ClassEnded()
		}

	default:
		log.Printf("Ignoring unknown event type %q", event.Type)
	}
}

// applySnapshot overwrites the local snapshot with a polled record and fires
// the callbacks for any transition the push channel missed.
func (v *View) applySnapshot(session *types.LiveSession) {
	v.mu.Lock()
	prev := v.session
	v.session = session

	var startedID string
	ended := false

	if session.IsActive && session.IsInvited(v.userID) && v.promptID != session.MeetingID {
		startedID = session.MeetingID
		v.promptID = session.MeetingID
	}
	if !session.IsActive && prev.IsActive {
		ended = true
		v.promptID = ""
	}
	v.mu.Unlock()

	if startedID != "" && v.callbacks.ClassStarted != nil {
		v.callbacks.ClassStarted(startedID, "Live class has started. Tap to join.")
	}
	if ended && v.callbacks.ClassEnded != nil {
		v.callbacks.ClassEnded()
	}
}
