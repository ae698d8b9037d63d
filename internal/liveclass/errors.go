package liveclass

import "errors"

// State-machine error types. These surface synchronously to the HTTP caller;
// broadcast-level failures never appear here.
var (
	ErrInvalidTransition = errors.New("no active class with matching meeting ID")
	ErrInvalidMeetingID  = errors.New("invalid meeting ID format")
	ErrInvalidStudentID  = errors.New("invalid student ID format")
)
