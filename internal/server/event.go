package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/driftchat/drift/internal/chat"
)

// Outbound event names emitted to clients.
const (
	EventIdentityAssigned   = "identity-assigned"
	EventGlobalHistory      = "global-history"
	EventSessionList        = "session-list"
	EventUserJoined         = "user-joined"
	EventUserLeft           = "user-left"
	EventNewGlobalMessage   = "new-global-message"
	EventPrivateChatStarted = "private-chat-started"
	EventNewPrivateMessage  = "new-private-message"
)

// IdentityAssigned tells a freshly connected client who it is.
type IdentityAssigned struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GlobalHistory carries the buffered global messages sent to a new client.
type GlobalHistory struct {
	Messages []chat.Message `json:"messages"`
}

// SessionList carries the full set of connected sessions. Clients
// re-render the list wholesale on every update.
type SessionList struct {
	Sessions []chat.Session `json:"sessions"`
}

// Presence announces a user joining or leaving the relay.
type Presence struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// PrivateChatStarted announces a private room to both of its members,
// including the room's log so far.
type PrivateChatStarted struct {
	RoomID       string         `json:"roomId"`
	Participants []chat.Session `json:"participants"`
	Messages     []chat.Message `json:"messages"`
}

// marshalEvent frames an event payload for the wire. A marshal failure is
// a programming error in the payload types; it is logged and the event is
// dropped rather than crashing the hub.
func marshalEvent(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling %s payload: %v", event, err)
		return nil, false
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Printf("Error framing %s event: %v", event, err)
		return nil, false
	}

	return frame, true
}
