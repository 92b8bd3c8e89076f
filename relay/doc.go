// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is the bot core: the command router, the command set
// (help, issue, key, topic, reload), the recent-key history, and the
// on-disk data tables.
//
// [Bot] ties the pieces to a chat session. Inbound messages either
// carry the trigger character and flow into the [Router], or get
// scanned for tracker-key tokens that feed [History]. Command
// handlers run on their own goroutines so a slow tracker fetch stalls
// only its own invocation, never the session's event loop; every
// reply — including every `ERROR:`-prefixed failure — travels back
// through the session's reply path.
package relay
