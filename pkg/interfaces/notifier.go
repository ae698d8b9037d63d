package interfaces

// Notifier receives session-state transitions and fans them out to connected
// clients. Delivery is best-effort and at-most-once per connected client per
// transition: nothing is queued or retried, and a client that is offline at
// the moment of the transition converges through its poll fallback instead.
//
// Implementations must contain transport failures entirely; notification
// errors never propagate back to the admin request that caused the
// transition, which is why these methods return nothing.
type Notifier interface {
	// ClassStarted notifies every listed student, plus all connected admins,
	// that a class is live.
	ClassStarted(meetingID, message string, students []string)

	// ClassEnded notifies every listed student, plus all connected admins,
	// that the class is over.
	ClassEnded(students []string)
}
