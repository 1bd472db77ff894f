package chat

import "fmt"

// ErrRoomNotFound reports a room id that was never created. Callers treat
// it as a no-op since clients can reference stale room ids.
var ErrRoomNotFound = fmt.Errorf("room not found")

// RoomID derives the deterministic identity of the private room shared by
// two connections. The pair is sorted so both sides compute the same id
// regardless of argument order.
func RoomID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

// Room is a private two-party conversation with its own message log.
// Membership is fixed at creation and never changes; rooms are never
// destroyed for the lifetime of the process.
type Room struct {
	ID       string
	members  [2]string
	messages []Message
}

// Members returns the two connection ids recorded at creation time.
func (r *Room) Members() [2]string {
	return r.members
}

// Has reports whether the given connection id is one of the room's members.
func (r *Room) Has(id string) bool {
	return r.members[0] == id || r.members[1] == id
}

// Messages returns a copy of the room's log, oldest first.
func (r *Room) Messages() []Message {
	log := make([]Message, len(r.messages))
	copy(log, r.messages)
	return log
}

// RoomManager indexes private rooms by their deterministic id. Like the
// registry, it is owned by the hub run loop and not internally locked.
type RoomManager struct {
	rooms map[string]*Room
}

// NewRoomManager creates an empty room index.
func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room)}
}

// Ensure returns the room for the pair (a, b), creating it with an empty
// log on first use. It is idempotent and commutative in its arguments.
func (m *RoomManager) Ensure(a, b string) *Room {
	id := RoomID(a, b)
	if room, ok := m.rooms[id]; ok {
		return room
	}
	room := &Room{ID: id}
	room.members[0], room.members[1] = a, b
	if b < a {
		room.members[0], room.members[1] = b, a
	}
	m.rooms[id] = room
	return room
}

// Get looks up a room by id.
func (m *RoomManager) Get(id string) (*Room, bool) {
	room, ok := m.rooms[id]
	return room, ok
}

// Append adds a message to the log of the room identified by id, or
// returns ErrRoomNotFound if no such room was ever created.
func (m *RoomManager) Append(id string, msg Message) error {
	room, ok := m.rooms[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	room.messages = append(room.messages, msg)
	return nil
}

// Len returns the number of rooms ever created.
func (m *RoomManager) Len() int {
	return len(m.rooms)
}
