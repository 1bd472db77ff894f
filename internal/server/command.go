package server

import "encoding/json"

// Inbound event names accepted from clients. Anything else is dropped.
const (
	EventSendGlobalMessage  = "send-global-message"
	EventStartPrivateChat   = "start-private-chat"
	EventSendPrivateMessage = "send-private-message"
)

// Envelope is the wire frame used in both directions: an event name plus
// an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendGlobalMessage asks the relay to broadcast text to everyone.
type SendGlobalMessage struct {
	Text string `json:"text"`
}

// StartPrivateChat asks the relay to open (or re-open) the private room
// shared with the target connection.
type StartPrivateChat struct {
	TargetID string `json:"targetId"`
}

// SendPrivateMessage asks the relay to deliver text to the members of an
// existing private room.
type SendPrivateMessage struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// command pairs a decoded envelope with the client that sent it.
type command struct {
	sender   *Client
	envelope Envelope
}
