// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that the
// session's keepalive and reconnect timers can be driven
// deterministically in tests.
//
// Production code uses [Real]; tests construct a [FakeClock] with
// [Fake] and move time forward with Advance. Code under this module
// never calls time.Now, time.After, time.AfterFunc, or time.NewTicker
// directly on a path a test needs to control.
package clock
