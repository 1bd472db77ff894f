package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryNeverExceedsLimit(t *testing.T) {
	history := NewHistory(100)

	for i := 0; i < 150; i++ {
		history.Append(Message{ID: int64(i), Text: fmt.Sprintf("msg %d", i)})
		assert.LessOrEqual(t, history.Len(), 100)
	}

	snapshot := history.Snapshot()
	require.Len(t, snapshot, 100)

	// Oldest evicted first: the survivors are messages 50..149 in their
	// original relative order.
	for i, msg := range snapshot {
		assert.Equal(t, int64(i+50), msg.ID)
	}
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	history := NewHistory(10)
	history.Append(Message{ID: 1, Text: "hello"})

	snapshot := history.Snapshot()
	snapshot[0].Text = "mutated"

	assert.Equal(t, "hello", history.Snapshot()[0].Text)
}

func TestHistorySnapshotUnaffectedByLaterAppends(t *testing.T) {
	history := NewHistory(10)
	history.Append(Message{ID: 1})

	snapshot := history.Snapshot()
	history.Append(Message{ID: 2})

	assert.Len(t, snapshot, 1)
	assert.Len(t, history.Snapshot(), 2)
}

func TestHistoryDefaultLimit(t *testing.T) {
	history := NewHistory(0)

	for i := 0; i < DefaultHistoryLimit+25; i++ {
		history.Append(Message{ID: int64(i)})
	}

	assert.Equal(t, DefaultHistoryLimit, history.Len())
}

func TestHistoryEmptySnapshot(t *testing.T) {
	history := NewHistory(5)

	snapshot := history.Snapshot()
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
}
