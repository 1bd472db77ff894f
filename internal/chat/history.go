package chat

// DefaultHistoryLimit bounds the global history when no explicit limit is
// configured.
const DefaultHistoryLimit = 100

// History is a bounded, append-only log of global messages. When the limit
// is exceeded the oldest entries are evicted first.
type History struct {
	limit    int
	messages []Message
}

// NewHistory creates a history bounded to limit entries. A non-positive
// limit falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds a message at the tail, evicting from the head if the buffer
// is full. Append never fails.
func (h *History) Append(msg Message) {
	h.messages = append(h.messages, msg)
	if overflow := len(h.messages) - h.limit; overflow > 0 {
		h.messages = append(h.messages[:0], h.messages[overflow:]...)
	}
}

// Snapshot returns a copy of the buffered messages, oldest first. Callers
// may iterate the copy while the history keeps mutating.
func (h *History) Snapshot() []Message {
	snapshot := make([]Message, len(h.messages))
	copy(snapshot, h.messages)
	return snapshot
}

// Len returns the number of buffered messages.
func (h *History) Len() int {
	return len(h.messages)
}
