// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"fmt"
	"testing"

	"github.com/chatrelay/chatrelay/tracker"
)

func newTestHistory(capacity int) *History {
	return NewHistory(capacity, tracker.KeyPattern(5))
}

func TestHistoryObserveAppendsLeftToRight(t *testing.T) {
	history := newTestHistory(0)
	history.Observe("comparing ZBX-1 with zbx-2 and OPS-3")

	// Index 1 is the most recent: the rightmost token in the message.
	want := []string{"OPS-3", "ZBX-2", "ZBX-1"}
	for i, key := range want {
		got, ok := history.Nth(i + 1)
		if !ok || got != key {
			t.Errorf("Nth(%d) = %q/%v, want %q", i+1, got, ok, key)
		}
	}
}

func TestHistoryUppercasesKeys(t *testing.T) {
	history := newTestHistory(0)
	history.Observe("see zbx-99")
	if got, _ := history.Nth(1); got != "ZBX-99" {
		t.Errorf("Nth(1) = %q, want ZBX-99", got)
	}
}

func TestHistoryIgnoresKeylessMessages(t *testing.T) {
	history := newTestHistory(0)
	history.Observe("no keys here, just 1234 and words")
	if history.Len() != 0 {
		t.Errorf("Len = %d, want 0", history.Len())
	}
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	history := newTestHistory(15)
	for i := 1; i <= 16; i++ {
		history.Observe(fmt.Sprintf("work on ZBX-%d continues", i))
	}

	if history.Len() != 15 {
		t.Fatalf("Len = %d, want 15", history.Len())
	}
	if got, _ := history.Nth(1); got != "ZBX-16" {
		t.Errorf("Nth(1) = %q, want the 16th key", got)
	}
	if got, _ := history.Nth(15); got != "ZBX-2" {
		t.Errorf("Nth(15) = %q, want ZBX-2 (ZBX-1 evicted)", got)
	}
	if _, ok := history.Nth(16); ok {
		t.Error("Nth(16) found an entry past capacity")
	}
}

func TestHistoryNthOutOfRange(t *testing.T) {
	history := newTestHistory(0)
	history.Observe("ZBX-1")

	for _, n := range []int{0, -1, 2, 999} {
		if _, ok := history.Nth(n); ok {
			t.Errorf("Nth(%d) = ok on a one-entry history", n)
		}
	}
}

func TestHistoryMultipleMessagesAccumulate(t *testing.T) {
	history := newTestHistory(0)
	history.Observe("first ZBX-1")
	history.Observe("then ZBX-2")

	if got, _ := history.Nth(1); got != "ZBX-2" {
		t.Errorf("Nth(1) = %q", got)
	}
	if got, _ := history.Nth(2); got != "ZBX-1" {
		t.Errorf("Nth(2) = %q", got)
	}
}
