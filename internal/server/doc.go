// Package server implements the WebSocket relay: client pumps, the hub
// that owns all shared chat state, the command/event wire protocol, and
// the HTTP surface.
//
// The hub's run loop is the single writer for sessions, history, and
// rooms, so every inbound command executes atomically with respect to
// every other command.
package server
