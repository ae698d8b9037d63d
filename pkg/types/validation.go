package types

import (
	"regexp"
)

// Compiled once at package initialization; identifier validation runs on
// every connection bind and every live-class write.
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements.
// The 1-50 character limit keeps IDs usable as map keys and display values.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return idRegex.MatchString(userID)
}

// IsValidMeetingID checks the conferencing-room identifier format. The ID is
// opaque to this system and handed verbatim to the video widget.
func IsValidMeetingID(meetingID string) bool {
	if len(meetingID) < 1 || len(meetingID) > 100 {
		return false
	}
	return idRegex.MatchString(meetingID)
}

// IsValidRole checks if the role is one of the allowed roles.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStudent
}

// Validate ensures a live session record meets all requirements before it is
// written to the singleton key. Idle records carry no meeting ID.
func (s *LiveSession) Validate() error {
	if !s.IsActive {
		return nil
	}
	if !IsValidMeetingID(s.MeetingID) {
		return ErrInvalidMeetingID
	}
	for _, id := range s.InvitedStudents {
		if !IsValidUserID(id) {
			return ErrInvalidStudentID
		}
	}
	return nil
}

// Validate checks a push event before delivery.
func (e *Event) Validate() error {
	switch e.Type {
	case EventClassStarted:
		if !IsValidMeetingID(e.MeetingID) {
			return ErrInvalidMeetingID
		}
		return nil
	case EventClassEnded:
		return nil
	default:
		return ErrInvalidEventType
	}
}
