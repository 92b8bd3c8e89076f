// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultHistorySize is how many recently seen tracker keys the bot
// remembers for positional back-references.
const DefaultHistorySize = 15

// History is a bounded FIFO of tracker keys observed in channel
// traffic. Index 1 is the most recently seen key, 2 the one before
// it. Entries leave only by eviction when the capacity is exceeded.
//
// Observe runs on the session's event loop while Nth is called from
// handler goroutines, so access is mutex-guarded.
type History struct {
	pattern *regexp.Regexp

	mu   sync.Mutex
	keys []string
	cap  int
}

// NewHistory creates a History holding up to capacity keys, scanning
// text with the given key pattern. Capacity <= 0 means
// DefaultHistorySize.
func NewHistory(capacity int, pattern *regexp.Regexp) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{pattern: pattern, cap: capacity}
}

// Observe scans one message for tracker-key tokens and appends every
// match, upper-cased, in left-to-right order, then trims to capacity.
func (h *History) Observe(text string) {
	matches := h.pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, match := range matches {
		h.keys = append(h.keys, strings.ToUpper(match))
	}
	if overflow := len(h.keys) - h.cap; overflow > 0 {
		h.keys = append(h.keys[:0], h.keys[overflow:]...)
	}
}

// Nth returns the nth-most-recent key, 1-based from the end. ok is
// false when fewer than n keys have been seen.
func (h *History) Nth(n int) (key string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 1 || n > len(h.keys) {
		return "", false
	}
	return h.keys[len(h.keys)-n], true
}

// Len returns the number of keys currently held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.keys)
}
