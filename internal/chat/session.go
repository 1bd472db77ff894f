package chat

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Session is the identity bound to one active connection for its lifetime.
type Session struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ErrSessionExists reports an attempt to register a connection id twice.
// This is an internal invariant violation, not a user error: the transport
// layer hands out unique connection ids.
var ErrSessionExists = fmt.Errorf("session already registered")

// SessionRegistry tracks the sessions of currently connected clients,
// keyed by connection id. It is not safe for concurrent use; the hub run
// loop is its sole owner.
type SessionRegistry struct {
	sessions map[string]Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]Session)}
}

// Register stores a new session for the given connection id and returns it.
// Registering an id that is already present returns ErrSessionExists.
func (r *SessionRegistry) Register(id, username string) (Session, error) {
	if _, exists := r.sessions[id]; exists {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	session := Session{ID: id, Username: username, JoinedAt: time.Now()}
	r.sessions[id] = session
	return session, nil
}

// Unregister removes and returns the session for id. The second return
// value is false when no session exists, e.g. on a duplicate disconnect.
func (r *SessionRegistry) Unregister(id string) (Session, bool) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, id)
	return session, true
}

// Get looks up the session for id without removing it.
func (r *SessionRegistry) Get(id string) (Session, bool) {
	session, ok := r.sessions[id]
	return session, ok
}

// List returns a snapshot of all connected sessions in no particular
// order. Consumers re-render the full list on every change.
func (r *SessionRegistry) List() []Session {
	return lo.Values(r.sessions)
}

// Len returns the number of connected sessions.
func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}
