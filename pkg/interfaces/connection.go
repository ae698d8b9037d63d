package interfaces

// Connection represents one open push channel to a client. Implementations
// must make WriteJSON safe for concurrent use (the broadcaster fans out from
// a single goroutine but API handlers may write concurrently).
type Connection interface {
	// ID returns the opaque per-socket identity assigned at registration.
	ID() string

	// WriteJSON sends a JSON frame to the client.
	WriteJSON(v interface{}) error

	// Close closes the connection and releases resources. Safe to call more
	// than once.
	Close() error

	// Bind attaches a user identity and role to the connection. Binding
	// happens at most once; subsequent calls are ignored and reported false.
	Bind(userID, role string) bool

	// IsBound reports whether the connection has been bound to a user.
	IsBound() bool

	// UserID returns the bound user, or "" while unbound.
	UserID() string

	// Role returns the bound user's role, or "" while unbound.
	Role() string
}
