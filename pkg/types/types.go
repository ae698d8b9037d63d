package types

import (
	"time"
)

// User roles. The push channel and the broadcast audience logic only
// distinguish these two.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Event types delivered on the push channel. No other server-initiated
// message types flow on this channel.
const (
	EventClassStarted = "class:started"
	EventClassEnded   = "class:ended"
)

// LiveSession is the singleton record describing the currently live (or idle)
// class. Exactly one record exists at the well-known storage key; ending a
// class overwrites it with IsActive=false rather than deleting it, so readers
// always see a defined object.
type LiveSession struct {
	MeetingID       string    `json:"meeting_id"`
	IsActive        bool      `json:"is_active"`
	InvitedStudents []string  `json:"invited_students"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IdleSession returns the well-known idle value of the singleton record.
func IdleSession() *LiveSession {
	return &LiveSession{IsActive: false, InvitedStudents: []string{}}
}

// IsInvited reports whether the given student is in the invitee set.
// Insertion order is irrelevant; membership is the operative use.
func (s *LiveSession) IsInvited(studentID string) bool {
	for _, id := range s.InvitedStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

// Event is a transient push notification derived from a session transition.
// It is never persisted and has no existence outside the broadcast call.
type Event struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	MeetingID string `json:"meeting_id,omitempty"`
}

// AuthMessage is the first (and only expected) client-to-server frame on the
// push channel. It binds the connection to a user identity.
type AuthMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// User is an account record. Password handling is intentionally plain; the
// deployment trusts its single admin and hardening is out of scope.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Banner is a carousel image shown on the dashboard.
type Banner struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Announcement is a short admin-authored notice.
type Announcement struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
)

// Payment is a fee-screenshot submission awaiting admin review.
type Payment struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	Amount        float64   `json:"amount"`
	ScreenshotURL string    `json:"screenshot_url"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Material kinds.
const (
	MaterialNote          = "note"
	MaterialPracticeSheet = "practice_sheet"
)

// Material is a study document distributed to one student or to everyone
// (StudentID empty means shared with all students).
type Material struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	FileURL   string    `json:"file_url"`
	StudentID string    `json:"student_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
