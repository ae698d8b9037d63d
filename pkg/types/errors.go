package types

import "errors"

// Validation errors shared across the API and state-machine layers.
var (
	ErrInvalidUserID    = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidMeetingID = errors.New("meeting ID must be 1-100 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole      = errors.New("invalid role: must be 'student' or 'admin'")
	ErrInvalidStudentID = errors.New("invalid student ID format")
	ErrInvalidEventType = errors.New("invalid event type")
)
