package chat

import "time"

// MessageKind distinguishes global broadcast messages from private room
// messages.
type MessageKind string

// Message kinds carried in the wire payload's "type" field.
const (
	KindGlobal  MessageKind = "global"
	KindPrivate MessageKind = "private"
)

// Message is a single chat message, global or private. IDs come from a
// coarse millisecond clock and are only suitable as list-rendering keys;
// rapid successive messages may share an ID.
type Message struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      MessageKind `json:"type"`
	RoomID    string      `json:"roomId,omitempty"`
}

// NewGlobalMessage builds a global message authored by username.
func NewGlobalMessage(username, text string) Message {
	now := time.Now()
	return Message{
		ID:        now.UnixMilli(),
		Username:  username,
		Text:      text,
		Timestamp: now,
		Kind:      KindGlobal,
	}
}

// NewPrivateMessage builds a private message bound to a room.
func NewPrivateMessage(username, text, roomID string) Message {
	now := time.Now()
	return Message{
		ID:        now.UnixMilli(),
		Username:  username,
		Text:      text,
		Timestamp: now,
		Kind:      KindPrivate,
		RoomID:    roomID,
	}
}
