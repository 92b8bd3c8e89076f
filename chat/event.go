// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"sort"
	"strings"
)

// EventKind classifies inbound transport events.
type EventKind string

const (
	// KindWelcome is the server's registration confirmation.
	KindWelcome EventKind = "welcome"
	// KindMessage is a public or private chat message.
	KindMessage EventKind = "message"
	// KindJoin reports a user (possibly the bot) joining a channel.
	KindJoin EventKind = "join"
	// KindPing is a server liveness check. The transport answers it
	// itself; the session only counts it as traffic.
	KindPing EventKind = "ping"
	// KindNotice is a server or user notice.
	KindNotice EventKind = "notice"
	// KindDisconnect reports that the transport connection is gone.
	// No further events follow it.
	KindDisconnect EventKind = "disconnect"
	// KindRaw is any protocol event without a dedicated kind. The
	// session logs these as diagnostics rather than dropping them.
	KindRaw EventKind = "raw"
	// KindInternal is transport housekeeping (for example a helper
	// process exiting). Suppressed from diagnostic logging.
	KindInternal EventKind = "internal"
)

// Event is one inbound transport event.
type Event struct {
	Kind EventKind

	// Sender is the originating nick for messages, joins, and
	// notices.
	Sender string

	// Target is the destination of a message: a channel name or the
	// bot's own nick for private messages.
	Target string

	// Text is the message or notice body.
	Text string

	// Identified reports whether the transport vouches for the
	// sender's identity (services account login).
	Identified bool

	// Name is the raw protocol event name for KindRaw events.
	Name string

	// Args are the positional arguments of a KindRaw event.
	Args []any

	// Err is the cause of a KindDisconnect event, nil on a clean
	// close.
	Err error
}

// Message is an inbound chat message handed to the session's message
// callback.
type Message struct {
	Sender     string
	Target     string
	Text       string
	Identified bool
}

// Public reports whether the message arrived on a channel rather
// than as a private message.
func (m Message) Public() bool {
	return strings.HasPrefix(m.Target, "#") || strings.HasPrefix(m.Target, "&")
}

// ReplyTarget is where a response to this message belongs: the
// channel for public messages, the sender for private ones.
func (m Message) ReplyTarget() string {
	if m.Public() {
		return m.Target
	}
	return m.Sender
}

// renderArgs renders a raw event's positional arguments for
// diagnostic logging: sequences as bracketed comma-joined lists,
// mappings as brace-delimited comma-joined key/value pairs.
func renderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = renderValue(arg)
	}
	return strings.Join(parts, ", ")
}

func renderValue(v any) string {
	switch value := v.(type) {
	case []any:
		parts := make([]string, len(value))
		for i, element := range value {
			parts[i] = renderValue(element)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		return "[" + strings.Join(value, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = key + ": " + renderValue(value[key])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", value)
	}
}
