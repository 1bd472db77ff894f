package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/driftchat/drift/internal/chat"
)

// Hub owns every piece of shared chat state: the session registry, the
// global history, the room index, and the set of connected clients. All
// mutations flow through the Run loop, which processes one command at a
// time, so each handler is atomic with respect to every other command.
type Hub struct {
	clients map[*Client]bool
	byID    map[string]*Client

	sessions *chat.SessionRegistry
	history  *chat.History
	rooms    *chat.RoomManager
	names    *chat.NameGenerator

	register   chan *Client
	unregister chan *Client
	inbound    chan command

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub with empty state. The history capacity comes from
// the active configuration.
func NewHub() *Hub {
	cfg := currentConfig()
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		byID:       make(map[string]*Client),
		sessions:   chat.NewSessionRegistry(),
		history:    chat.NewHistory(cfg.HistoryLimit),
		rooms:      chat.NewRoomManager(),
		names:      chat.NewNameGenerator(nil),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan command, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It should be called in its own
// goroutine and runs until Shutdown cancels the hub context.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.handleConnect(client)

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case cmd := <-h.inbound:
			h.dispatch(cmd)
		}
	}
}

// handleConnect registers the connection, assigns its identity, starts
// the pump goroutines, and performs the connect fan-out: snapshot events
// to the newcomer, a join notice to everyone else, and the refreshed
// session list to all.
func (h *Hub) handleConnect(client *Client) {
	session, err := h.sessions.Register(client.id, h.names.Generate())
	if err != nil {
		// A duplicate connection id means the transport broke its
		// contract; refuse the connection rather than corrupt state.
		log.Printf("Refusing connection %s from %s: %v", client.id, client.addr, err)
		if client.conn != nil {
			_ = client.conn.Close()
		}
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	h.byID[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Client %s connected as %s from %s. Total clients: %d",
		client.id, session.Username, client.addr, clientCount)

	if client.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			client.writePump()
		}()
		go func() {
			defer h.wg.Done()
			client.readPump()
		}()
	}

	h.sendEvent(client, EventIdentityAssigned, IdentityAssigned{ID: session.ID, Username: session.Username})
	h.sendEvent(client, EventGlobalHistory, GlobalHistory{Messages: h.history.Snapshot()})
	h.sendEvent(client, EventSessionList, SessionList{Sessions: h.sessions.List()})
	h.broadcastEvent(client, EventUserJoined, Presence{Username: session.Username, Timestamp: time.Now()})
	h.broadcastEvent(nil, EventSessionList, SessionList{Sessions: h.sessions.List()})
}

// handleDisconnect removes the client and, if it still had a session,
// tells the remaining clients who left. Duplicate disconnects are no-ops.
func (h *Hub) handleDisconnect(client *Client) {
	h.mutex.Lock()
	_, registered := h.clients[client]
	if registered {
		delete(h.clients, client)
		delete(h.byID, client.id)
		client.closed = true
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if !registered {
		return
	}
	close(client.send)

	session, found := h.sessions.Unregister(client.id)
	log.Printf("Client %s disconnected from %s. Total clients: %d", client.id, client.addr, clientCount)
	if !found {
		return
	}

	h.broadcastEvent(nil, EventUserLeft, Presence{Username: session.Username, Timestamp: time.Now()})
	h.broadcastEvent(nil, EventSessionList, SessionList{Sessions: h.sessions.List()})
}

// dispatch routes one decoded client command. Commands referencing
// unknown senders, targets, or rooms are dropped without a reply; a stale
// or misbehaving client must not disturb anyone else.
func (h *Hub) dispatch(cmd command) {
	switch cmd.envelope.Event {
	case EventSendGlobalMessage:
		h.handleGlobalMessage(cmd)
	case EventStartPrivateChat:
		h.handleStartPrivateChat(cmd)
	case EventSendPrivateMessage:
		h.handlePrivateMessage(cmd)
	default:
		log.Printf("Dropping unknown event %q from %s", cmd.envelope.Event, cmd.sender.id)
	}
}

func (h *Hub) handleGlobalMessage(cmd command) {
	var payload SendGlobalMessage
	if err := json.Unmarshal(cmd.envelope.Data, &payload); err != nil {
		log.Printf("Invalid %s payload from %s: %v", cmd.envelope.Event, cmd.sender.id, err)
		return
	}

	session, ok := h.sessions.Get(cmd.sender.id)
	if !ok {
		return
	}

	msg := chat.NewGlobalMessage(session.Username, payload.Text)
	h.history.Append(msg)
	h.broadcastEvent(nil, EventNewGlobalMessage, msg)
}

func (h *Hub) handleStartPrivateChat(cmd command) {
	var payload StartPrivateChat
	if err := json.Unmarshal(cmd.envelope.Data, &payload); err != nil {
		log.Printf("Invalid %s payload from %s: %v", cmd.envelope.Event, cmd.sender.id, err)
		return
	}

	sender, ok := h.sessions.Get(cmd.sender.id)
	if !ok {
		return
	}
	target, ok := h.sessions.Get(payload.TargetID)
	if !ok {
		return
	}

	room := h.rooms.Ensure(sender.ID, target.ID)
	h.sendToRoom(room, EventPrivateChatStarted, PrivateChatStarted{
		RoomID:       room.ID,
		Participants: []chat.Session{sender, target},
		Messages:     room.Messages(),
	})
}

func (h *Hub) handlePrivateMessage(cmd command) {
	var payload SendPrivateMessage
	if err := json.Unmarshal(cmd.envelope.Data, &payload); err != nil {
		log.Printf("Invalid %s payload from %s: %v", cmd.envelope.Event, cmd.sender.id, err)
		return
	}

	session, ok := h.sessions.Get(cmd.sender.id)
	if !ok {
		return
	}
	room, ok := h.rooms.Get(payload.RoomID)
	if !ok {
		log.Printf("Dropping private message from %s for unknown room %q", cmd.sender.id, payload.RoomID)
		return
	}

	msg := chat.NewPrivateMessage(session.Username, payload.Text, room.ID)
	if err := h.rooms.Append(room.ID, msg); err != nil {
		return
	}
	h.sendToRoom(room, EventNewPrivateMessage, msg)
}

// sendEvent delivers one event to one client, dropping the client if its
// send buffer is full.
func (h *Hub) sendEvent(client *Client, event string, data any) {
	frame, ok := marshalEvent(event, data)
	if !ok {
		return
	}
	if !h.safeSend(client, frame) {
		log.Printf("Dropping client %s: failed to deliver %s", client.id, event)
		h.handleDisconnect(client)
	}
}

// broadcastEvent delivers an event to every connected client except the
// given one. Delivery is best-effort: clients that cannot keep up are
// dropped so they never stall the rest of the fan-out.
func (h *Hub) broadcastEvent(except *Client, event string, data any) {
	frame, ok := marshalEvent(event, data)
	if !ok {
		return
	}

	var failed []*Client
	for _, client := range h.clientSnapshot() {
		if client == except {
			continue
		}
		if !h.safeSend(client, frame) {
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		log.Printf("Dropping client %s: send buffer full during %s", client.id, event)
		h.handleDisconnect(client)
	}
}

// sendToRoom delivers an event to the room's members that are still
// connected. A self-room delivers once.
func (h *Hub) sendToRoom(room *chat.Room, event string, data any) {
	frame, ok := marshalEvent(event, data)
	if !ok {
		return
	}

	members := room.Members()
	targets := lo.Uniq(members[:])

	for _, id := range targets {
		h.mutex.RLock()
		client := h.byID[id]
		h.mutex.RUnlock()
		if client == nil {
			continue
		}
		if !h.safeSend(client, frame) {
			log.Printf("Dropping client %s: send buffer full during %s", client.id, event)
			h.handleDisconnect(client)
		}
	}
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock for the whole send so the channel cannot be closed
	// between the membership check and the send.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return lo.Keys(h.clients)
}

// shutdownClients closes all active client connections so their pumps
// drain and exit.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown cancels the run loop and waits for all client goroutines to
// finish, or until the timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
