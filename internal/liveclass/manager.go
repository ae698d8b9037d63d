package liveclass

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// startedMessage is the human-readable text carried by class:started pushes.
const startedMessage = "Live class has started. Tap to join."

// Manager is the authoritative state machine for the singleton live-class
// record: Idle -> Live -> Idle, nothing else.
//
// Writes are unconditional overwrites with no compare-and-swap against
// UpdatedAt. Two admin requests racing on Start interleave as last-write-wins
// with no detectable conflict; acceptable for a single-admin deployment.
type Manager struct {
	store    interfaces.Store
	notifier interfaces.Notifier
}

// NewManager creates a new live-class manager. The notifier may be nil in
// tests that only exercise state transitions.
func NewManager(store interfaces.Store, notifier interfaces.Notifier) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
	}
}

// NewMeetingID generates an opaque conferencing-room identifier, unique per
// session instance.
func NewMeetingID() string {
	return "class-" + uuid.New().String()
}

// Start begins a live class, overwriting any session already live. No
// precondition is enforced against concurrent starts: a start while another
// class is live replaces it entirely, with no merge and no rejection.
// Every invited student (plus connected admins) gets a class:started push.
// An empty invitee set is accepted and stored as such; only connected admins
// hear about the class in that case.
func (m *Manager) Start(ctx context.Context, meetingID string, invited []string) (*types.LiveSession, error) {
	if !types.IsValidMeetingID(meetingID) {
		return nil, ErrInvalidMeetingID
	}

	unique := removeDuplicates(invited)
	for _, studentID := range unique {
		if !types.IsValidUserID(studentID) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStudentID, studentID)
		}
	}

	prev, err := m.store.GetLiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	session := &types.LiveSession{
		MeetingID:       meetingID,
		IsActive:        true,
		InvitedStudents: unique,
		UpdatedAt:       nextTimestamp(prev.UpdatedAt),
	}

	if err := m.store.PutLiveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	log.Printf("Live class started: meeting=%s invited=%d", meetingID, len(unique))

	if m.notifier != nil {
		m.notifier.ClassStarted(meetingID, startedMessage, unique)
	}

	return session, nil
}

// UpdateInvitees replaces the invitee set of the currently live class.
// The target meeting must be the live one; otherwise the update is rejected
// with ErrInvalidTransition and state is left untouched.
//
// Only students newly added by the replacement are notified. Students already
// in the set were notified at Start, and the delivery contract is at-most-once
// per client per transition.
func (m *Manager) UpdateInvitees(ctx context.Context, meetingID string, invited []string) (*types.LiveSession, error) {
	if !types.IsValidMeetingID(meetingID) {
		return nil, ErrInvalidMeetingID
	}

	unique := removeDuplicates(invited)
	for _, studentID := range unique {
		if !types.IsValidUserID(studentID) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStudentID, studentID)
		}
	}

	current, err := m.store.GetLiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	if !current.IsActive || current.MeetingID != meetingID {
		return nil, ErrInvalidTransition
	}

	newlyAdded := difference(unique, current.InvitedStudents)

	session := &types.LiveSession{
		MeetingID:       meetingID,
		IsActive:        true,
		InvitedStudents: unique,
		UpdatedAt:       nextTimestamp(current.UpdatedAt),
	}

	if err := m.store.PutLiveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	log.Printf("Live class invitees updated: meeting=%s invited=%d newly_added=%d",
		meetingID, len(unique), len(newlyAdded))

	if m.notifier != nil && len(newlyAdded) > 0 {
		m.notifier.ClassStarted(meetingID, startedMessage, newlyAdded)
	}

	return session, nil
}

// End flags the live class inactive and notifies the previously invited
// students plus connected admins. Ending when no class is live is a no-op,
// not an error; calling End twice produces the same observable state both
// times. The record is overwritten to idle, never deleted, so Current always
// returns a defined object.
func (m *Manager) End(ctx context.Context, meetingID string) error {
	current, err := m.store.GetLiveSession(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	if !current.IsActive {
		log.Printf("End requested but no class is live: meeting=%s", meetingID)
		return nil
	}

	idle := types.IdleSession()
	idle.UpdatedAt = nextTimestamp(current.UpdatedAt)

	if err := m.store.PutLiveSession(ctx, idle); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}

	log.Printf("Live class ended: meeting=%s", current.MeetingID)

	if m.notifier != nil {
		m.notifier.ClassEnded(current.InvitedStudents)
	}

	return nil
}

// Current returns the singleton record verbatim, defaulting to the idle
// value if nothing was ever written. It never fails on absence.
func (m *Manager) Current(ctx context.Context) (*types.LiveSession, error) {
	session, err := m.store.GetLiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStorageUnavailable, err)
	}
	return session, nil
}

// nextTimestamp keeps UpdatedAt monotonically non-decreasing per write even
// if the wall clock steps backwards between writes.
func nextTimestamp(prev time.Time) time.Time {
	now := time.Now().UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}

// removeDuplicates drops repeated student IDs while preserving order.
func removeDuplicates(studentIDs []string) []string {
	seen := make(map[string]bool)
	unique := make([]string, 0, len(studentIDs))

	for _, id := range studentIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	return unique
}

// difference returns the IDs in next that are absent from prev.
func difference(next, prev []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, id := range prev {
		seen[id] = true
	}

	var added []string
	for _, id := range next {
		if !seen[id] {
			added = append(added, id)
		}
	}

	return added
}
