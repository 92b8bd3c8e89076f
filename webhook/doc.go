// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package webhook bridges tracker events into the chat channel. The
// tracker POSTs a JSON event envelope to the configured endpoint; the
// bridge announces newly created issues on allow-listed projects as a
// single colorized channel message and acknowledges everything else
// silently. The flow is one-way and independent of the command router.
package webhook
