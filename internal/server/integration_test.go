package server

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/drift/internal/chat"
)

// These tests run the complete relay: chi router, real WebSocket
// upgrades, the hub loop, and the event protocol over the wire.

type testRelay struct {
	hub    *Hub
	server *httptest.Server
	wsURL  string
	origin string
}

func startTestRelay(t *testing.T, customize func(cfg *Config)) *testRelay {
	t.Helper()
	SetConfig(nil)

	hub := NewHub()
	go hub.Run()

	ts := httptest.NewServer(NewRouter(hub))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
		SetConfig(nil)
	})

	cfg := NewConfig()
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, ts.URL)
	if customize != nil {
		customize(cfg)
	}
	SetConfig(cfg)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	return &testRelay{hub: hub, server: ts, wsURL: u.String(), origin: ts.URL}
}

func (r *testRelay) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", r.origin)

	conn, resp, err := websocket.DefaultDialer.Dial(r.wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func writeCommand(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: data}))
}

func readEvent[T any](t *testing.T, conn *websocket.Conn, event string) T {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, frame, err := conn.ReadMessage()
	require.NoError(t, err, "waiting for %s", event)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(frame, &envelope))
	require.Equal(t, event, envelope.Event)

	var payload T
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	return payload
}

func expectSilence(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))

	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", frame)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	t.Fatalf("unexpected error while waiting for silence: %v", err)
}

// handshake consumes the connect-time events and returns the assigned
// identity.
func handshake(t *testing.T, conn *websocket.Conn) IdentityAssigned {
	t.Helper()
	identity := readEvent[IdentityAssigned](t, conn, EventIdentityAssigned)
	readEvent[GlobalHistory](t, conn, EventGlobalHistory)
	readEvent[SessionList](t, conn, EventSessionList)
	readEvent[SessionList](t, conn, EventSessionList)
	return identity
}

func TestHealthEndpoint(t *testing.T) {
	relay := startTestRelay(t, nil)

	resp, err := http.Get(relay.server.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "running")
}

func TestRejectsDisallowedOrigin(t *testing.T) {
	relay := startTestRelay(t, nil)

	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")
	conn, resp, err := websocket.DefaultDialer.Dial(relay.wsURL, header)
	if conn != nil {
		_ = conn.Close()
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	require.Error(t, err)
}

func TestRelayScenario(t *testing.T) {
	relay := startTestRelay(t, nil)

	c1 := relay.dial(t)
	identity1 := readEvent[IdentityAssigned](t, c1, EventIdentityAssigned)
	assert.NotEmpty(t, identity1.ID)
	assert.NotEmpty(t, identity1.Username)

	history := readEvent[GlobalHistory](t, c1, EventGlobalHistory)
	assert.Empty(t, history.Messages)

	list := readEvent[SessionList](t, c1, EventSessionList)
	require.Len(t, list.Sessions, 1)
	readEvent[SessionList](t, c1, EventSessionList)

	c2 := relay.dial(t)
	identity2 := handshake(t, c2)

	joined := readEvent[Presence](t, c1, EventUserJoined)
	assert.Equal(t, identity2.Username, joined.Username)
	list = readEvent[SessionList](t, c1, EventSessionList)
	assert.Len(t, list.Sessions, 2)

	// Global chat reaches everyone, including the sender.
	writeCommand(t, c1, EventSendGlobalMessage, SendGlobalMessage{Text: "hello"})
	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readEvent[chat.Message](t, conn, EventNewGlobalMessage)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, identity1.Username, msg.Username)
	}

	c3 := relay.dial(t)
	handshake(t, c3)
	for _, conn := range []*websocket.Conn{c1, c2} {
		readEvent[Presence](t, conn, EventUserJoined)
		readEvent[SessionList](t, conn, EventSessionList)
	}

	// Private chat is visible to its two members only.
	writeCommand(t, c1, EventStartPrivateChat, StartPrivateChat{TargetID: identity2.ID})
	started1 := readEvent[PrivateChatStarted](t, c1, EventPrivateChatStarted)
	started2 := readEvent[PrivateChatStarted](t, c2, EventPrivateChatStarted)
	assert.Equal(t, started1.RoomID, started2.RoomID)
	assert.Empty(t, started1.Messages)
	require.Len(t, started1.Participants, 2)

	writeCommand(t, c2, EventSendPrivateMessage, SendPrivateMessage{RoomID: started2.RoomID, Text: "hi"})
	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readEvent[chat.Message](t, conn, EventNewPrivateMessage)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, identity2.Username, msg.Username)
		assert.Equal(t, started1.RoomID, msg.RoomID)
	}
	expectSilence(t, c3, 300*time.Millisecond)

	// Disconnecting c1 notifies the survivors.
	require.NoError(t, c1.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = c1.Close()

	for _, conn := range []*websocket.Conn{c2, c3} {
		left := readEvent[Presence](t, conn, EventUserLeft)
		assert.Equal(t, identity1.Username, left.Username)

		list := readEvent[SessionList](t, conn, EventSessionList)
		require.Len(t, list.Sessions, 2)
		for _, session := range list.Sessions {
			assert.NotEqual(t, identity1.ID, session.ID)
		}
	}
}

func TestLateJoinerReceivesHistory(t *testing.T) {
	relay := startTestRelay(t, nil)

	c1 := relay.dial(t)
	handshake(t, c1)

	writeCommand(t, c1, EventSendGlobalMessage, SendGlobalMessage{Text: "first"})
	readEvent[chat.Message](t, c1, EventNewGlobalMessage)
	writeCommand(t, c1, EventSendGlobalMessage, SendGlobalMessage{Text: "second"})
	readEvent[chat.Message](t, c1, EventNewGlobalMessage)

	c2 := relay.dial(t)
	readEvent[IdentityAssigned](t, c2, EventIdentityAssigned)
	history := readEvent[GlobalHistory](t, c2, EventGlobalHistory)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "first", history.Messages[0].Text)
	assert.Equal(t, "second", history.Messages[1].Text)
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	relay := startTestRelay(t, nil)

	c1 := relay.dial(t)
	handshake(t, c1)

	require.NoError(t, c1.WriteMessage(websocket.TextMessage, []byte("this is not json")))

	// The connection survives and keeps relaying.
	writeCommand(t, c1, EventSendGlobalMessage, SendGlobalMessage{Text: "still here"})
	msg := readEvent[chat.Message](t, c1, EventNewGlobalMessage)
	assert.Equal(t, "still here", msg.Text)
}

func TestOversizedMessageClosesConnection(t *testing.T) {
	relay := startTestRelay(t, func(cfg *Config) {
		cfg.MaxMessageSize = 64
	})

	c1 := relay.dial(t)
	handshake(t, c1)

	big := strings.Repeat("x", 256)
	writeCommand(t, c1, EventSendGlobalMessage, SendGlobalMessage{Text: big})

	requireConnectionClosed(t, c1)
}

// requireConnectionClosed reads until the server closes the connection,
// failing if nothing happens before the deadline.
func requireConnectionClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			t.Fatal("server did not close the connection")
		}
		return
	}
}

func TestGracefulShutdownClosesClients(t *testing.T) {
	relay := startTestRelay(t, nil)

	c1 := relay.dial(t)
	handshake(t, c1)

	require.NoError(t, relay.hub.Shutdown(2*time.Second))

	requireConnectionClosed(t, c1)
}
