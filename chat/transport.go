// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "context"

// Conn is one live connection to the chat server. Implementations
// deliver inbound events on Events until the connection dies, then
// emit a single KindDisconnect event and close the channel.
//
// Write methods (Register, Join, Send, Probe) are safe for concurrent
// use; command handlers reply from their own goroutines.
type Conn interface {
	// Register announces the bot's identity to the server. The server
	// confirms with a KindWelcome event.
	Register(nick, user, realName string) error

	// Join requests channel membership. Fire-and-forget: the session
	// does not wait for a join confirmation.
	Join(channel string) error

	// Send delivers one message line to a channel or nick. The text
	// must already fit the per-recipient payload limit; splitting is
	// the session's job.
	Send(target, text string) error

	// Probe issues a harmless identity query to provoke a server
	// response, used as a liveness check on quiet links.
	Probe(nick string) error

	// Events returns the inbound event stream.
	Events() <-chan Event

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens fresh connections. The session redials through it on
// every reconnect attempt.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
