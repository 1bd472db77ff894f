// Package chat holds the in-memory domain state of the relay: session
// identities, the bounded global history, and private pair rooms.
//
// Nothing in this package is synchronized. All state is exclusively owned by
// the server hub, which serializes every mutation through its single run loop.
package chat
