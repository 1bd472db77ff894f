package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/drift/internal/chat"
)

func TestEnvelopeDecode(t *testing.T) {
	raw := []byte(`{"event":"send-private-message","data":{"roomId":"a-b","text":"hi"}}`)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, EventSendPrivateMessage, envelope.Event)

	var payload SendPrivateMessage
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "a-b", payload.RoomID)
	assert.Equal(t, "hi", payload.Text)
}

func TestEnvelopeDecodeMissingData(t *testing.T) {
	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"event":"send-global-message"}`), &envelope))

	assert.Equal(t, EventSendGlobalMessage, envelope.Event)
	assert.Nil(t, envelope.Data)
}

func TestMarshalEventFrame(t *testing.T) {
	frame, ok := marshalEvent(EventIdentityAssigned, IdentityAssigned{ID: "c1", Username: "SwiftFox1"})
	require.True(t, ok)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(frame, &envelope))
	assert.Equal(t, EventIdentityAssigned, envelope.Event)

	var payload IdentityAssigned
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "c1", payload.ID)
	assert.Equal(t, "SwiftFox1", payload.Username)
}

func TestMarshalEventEmptyHistoryIsArray(t *testing.T) {
	// Clients iterate "messages" unconditionally; an empty snapshot must
	// stay a JSON array on the wire, not become null.
	history := chat.NewHistory(5)
	frame, ok := marshalEvent(EventGlobalHistory, GlobalHistory{Messages: history.Snapshot()})
	require.True(t, ok)

	assert.JSONEq(t, `{"event":"global-history","data":{"messages":[]}}`, string(frame))
}
