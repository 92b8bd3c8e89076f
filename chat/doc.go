// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat provides the chat-side transport and connection
// lifecycle for the relay bot.
//
// The package has two layers. [Conn] and [Dialer] are the transport
// primitives: register, join, send, probe, and a stream of inbound
// [Event] values. [LineDialer] is the production implementation,
// speaking a 512-byte CRLF line protocol over TCP. Tests substitute
// an in-memory Conn.
//
// [Session] sits on top and owns the connection lifecycle state
// machine (Disconnected → Connecting → Registered → Joined), the
// keepalive probe, reconnection, and the reply path — including the
// per-recipient payload limit and message splitting.
package chat
