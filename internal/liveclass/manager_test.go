package liveclass

import (
	"context"
	"errors"
	"testing"

	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// fakeStore implements the two session operations the manager uses. The
// embedded interface panics on anything else, which would indicate the
// manager reaching outside its contract.
type fakeStore struct {
	interfaces.Store

	session *types.LiveSession
	getErr  error
	putErr  error
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{session: types.IdleSession()}
}

func (f *fakeStore) GetLiveSession(ctx context.Context) (*types.LiveSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copied := *f.session
	return &copied, nil
}

func (f *fakeStore) PutLiveSession(ctx context.Context, session *types.LiveSession) error {
	if f.putErr != nil {
		return f.putErr
	}
	copied := *session
	f.session = &copied
	f.puts++
	return nil
}

type notification struct {
	event     string
	meetingID string
	students  []string
}

type fakeNotifier struct {
	calls []notification
}

func (f *fakeNotifier) ClassStarted(meetingID, message string, students []string) {
	f.calls = append(f.calls, notification{event: "started", meetingID: meetingID, students: students})
}

func (f *fakeNotifier) ClassEnded(students []string) {
	f.calls = append(f.calls, notification{event: "ended", students: students})
}

func TestStartCreatesActiveSession(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	manager := NewManager(store, notifier)

	session, err := manager.Start(context.Background(), "room-1", []string{"s1", "s2", "s1"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !session.IsActive {
		t.Error("Expected session to be active")
	}
	if session.MeetingID != "room-1" {
		t.Errorf("Expected meeting room-1, got %s", session.MeetingID)
	}
	if len(session.InvitedStudents) != 2 {
		t.Errorf("Expected duplicates removed, got %v", session.InvitedStudents)
	}

	if len(notifier.calls) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifier.calls))
	}
	call := notifier.calls[0]
	if call.event != "started" || call.meetingID != "room-1" || len(call.students) != 2 {
		t.Errorf("Unexpected notification: %+v", call)
	}
}

func TestStartOverwritesLiveSession(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	manager := NewManager(store, notifier)

	if _, err := manager.Start(context.Background(), "room-1", []string{"s1"}); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	first := store.session.UpdatedAt

	// No rejection, no merge: the second start replaces the first entirely.
	session, err := manager.Start(context.Background(), "room-2", []string{"s2"})
	if err != nil {
		t.Fatalf("Second start failed: %v", err)
	}

	if session.MeetingID != "room-2" {
		t.Errorf("Expected room-2 to replace room-1, got %s", session.MeetingID)
	}
	if len(session.InvitedStudents) != 1 || session.InvitedStudents[0] != "s2" {
		t.Errorf("Expected invitee set replaced, got %v", session.InvitedStudents)
	}
	if session.UpdatedAt.Before(first) {
		t.Error("Expected UpdatedAt to be non-decreasing")
	}
	if len(notifier.calls) != 2 {
		t.Errorf("Expected each start to notify, got %d calls", len(notifier.calls))
	}
}

func TestStartValidation(t *testing.T) {
	manager := NewManager(newFakeStore(), nil)

	cases := []struct {
		name      string
		meetingID string
		invited   []string
		wantErr   error
	}{
		{"empty meeting ID", "", []string{"s1"}, ErrInvalidMeetingID},
		{"meeting ID with spaces", "room one", []string{"s1"}, ErrInvalidMeetingID},
		{"invalid student ID", "room-1", []string{"s 1"}, ErrInvalidStudentID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Start(context.Background(), tc.meetingID, tc.invited)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestStartWithNoInvitees(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	manager := NewManager(store, notifier)

	// An empty invitee set is accepted; the record stores it as such and the
	// started push goes out with no student audience (admins only).
	session, err := manager.Start(context.Background(), "room-1", nil)
	if err != nil {
		t.Fatalf("Start with no invitees failed: %v", err)
	}

	if !session.IsActive {
		t.Error("Expected session to be active")
	}
	if session.InvitedStudents == nil || len(session.InvitedStudents) != 0 {
		t.Errorf("Expected empty non-nil invitee set, got %#v", session.InvitedStudents)
	}

	if len(notifier.calls) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifier.calls))
	}
	if len(notifier.calls[0].students) != 0 {
		t.Errorf("Expected no student audience, got %v", notifier.calls[0].students)
	}
}

func TestUpdateInviteesNotifiesNewlyAddedOnly(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	manager := NewManager(store, notifier)

	if _, err := manager.Start(context.Background(), "room-1", []string{"s1", "s2"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	session, err := manager.UpdateInvitees(context.Background(), "room-1", []string{"s1", "s2", "s3"})
	if err != nil {
		t.Fatalf("UpdateInvitees failed: %v", err)
	}
	if len(session.InvitedStudents) != 3 {
		t.Errorf("Expected 3 invitees, got %v", session.InvitedStudents)
	}

	if len(notifier.calls) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(notifier.calls))
	}
	added := notifier.calls[1]
	if len(added.students) != 1 || added.students[0] != "s3" {
		t.Errorf("Expected only s3 notified on update, got %v", added.students)
	}
}

func TestUpdateInviteesNoNewStudentsSkipsNotification(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	manager := NewManager(store, notifier)

	if _, err := manager.Start(context.Background(), "room-1", []string{"s1", "s2"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Shrinking the set adds nobody, so nobody is notified.
	if _, err := manager.UpdateInvitees(context.Background(), "room-1", []string{"s1"}); err != nil {
		t.Fatalf("UpdateInvitees failed: %v", err)
	}

	if len(notifier.calls) != 1 {
		t.Errorf("Expected no notification for removal-only update, got %d calls", len(notifier.calls))
	}
	if len(store.session.InvitedStudents) != 1 {
		t.Errorf("Expected invitee set replaced, got %v", store.session.InvitedStudents)
	}
}

func TestUpdateInviteesRejectsWrongMeeting(t *testing.T) {
	store := newFakeStore()
	manager := NewManager(store, nil)

	// Nothing live yet.
	if _, err := manager.UpdateInvitees(context.Background(), "room-1", []string{"s1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition while idle, got %v", err)
	}

	if _, err := manager.Start(context.Background(), "room-1", []string{"s1"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := manager.UpdateInvitees(context.Background(), "room-2", []string{"s1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for stale meeting, got %v", err)
	}

	// The rejected update must not touch state.
	if store.session.MeetingID != "room-1" || !store.session.IsActive {
		t.Errorf("Expected state untouched after rejection, got %+v", store.session)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	manager := NewManager(store, notifier)

	// Ending while idle is a no-op, not an error.
	if err := manager.End(context.Background(), "room-1"); err != nil {
		t.Fatalf("End while idle failed: %v", err)
	}
	if store.puts != 0 {
		t.Error("Expected no write for idle End")
	}
	if len(notifier.calls) != 0 {
		t.Error("Expected no notification for idle End")
	}

	if _, err := manager.Start(context.Background(), "room-1", []string{"s1", "s2"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := manager.End(context.Background(), "room-1"); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	session := store.session
	if session.IsActive {
		t.Error("Expected session to be idle after End")
	}
	if session.MeetingID != "" {
		t.Errorf("Expected idle record to carry no meeting, got %s", session.MeetingID)
	}

	// The previously invited students get the ended push.
	last := notifier.calls[len(notifier.calls)-1]
	if last.event != "ended" || len(last.students) != 2 {
		t.Errorf("Unexpected end notification: %+v", last)
	}

	// Second End observes idle and does nothing.
	calls := len(notifier.calls)
	if err := manager.End(context.Background(), "room-1"); err != nil {
		t.Fatalf("Second End failed: %v", err)
	}
	if len(notifier.calls) != calls {
		t.Error("Expected no notification on repeated End")
	}
}

func TestCurrentDefaultsToIdle(t *testing.T) {
	manager := NewManager(newFakeStore(), nil)

	session, err := manager.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if session.IsActive {
		t.Error("Expected idle default")
	}
	if session.InvitedStudents == nil {
		t.Error("Expected empty slice, not nil")
	}
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("disk on fire")
	manager := NewManager(store, nil)

	_, err := manager.Start(context.Background(), "room-1", []string{"s1"})
	if !errors.Is(err, interfaces.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}

	store.getErr = nil
	store.putErr = errors.New("disk still on fire")
	_, err = manager.Start(context.Background(), "room-1", []string{"s1"})
	if !errors.Is(err, interfaces.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable on write, got %v", err)
	}
}

func TestNewMeetingIDIsUnique(t *testing.T) {
	a := NewMeetingID()
	b := NewMeetingID()
	if a == b {
		t.Error("Expected distinct meeting IDs")
	}
	if !types.IsValidMeetingID(a) {
		t.Errorf("Generated meeting ID fails validation: %s", a)
	}
}
