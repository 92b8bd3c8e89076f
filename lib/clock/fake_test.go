// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	ch := fake.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(10 * time.Second)

	select {
	case fired := <-ch:
		if !fired.Equal(time.Unix(10, 0)) {
			t.Errorf("fired at %v, want %v", fired, time.Unix(10, 0))
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(time.Unix(0, 0))

	called := false
	timer := fake.AfterFunc(time.Minute, func() { called = true })

	if !timer.Stop() {
		t.Error("Stop on an armed timer returned false")
	}
	fake.Advance(2 * time.Minute)
	if called {
		t.Error("stopped timer still fired")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}
}

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(time.Unix(0, 0))

	var order []string
	fake.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	fake.AfterFunc(1*time.Second, func() { order = append(order, "a") })

	fake.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("fire order = %v, want [a b]", order)
	}
}

func TestFakeTickerRepeatsAndStops(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	ticker := fake.NewTicker(time.Second)

	ticks := 0
	for i := 0; i < 3; i++ {
		fake.Advance(time.Second)
		select {
		case <-ticker.C:
			ticks++
		default:
		}
	}
	if ticks != 3 {
		t.Errorf("got %d ticks, want 3", ticks)
	}

	ticker.Stop()
	fake.Advance(10 * time.Second)
	select {
	case <-ticker.C:
		t.Error("stopped ticker still ticked")
	default:
	}
}

func TestFakeTickerDropsBackedUpTicks(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	ticker := fake.NewTicker(time.Second)

	// Advance through four intervals without draining: only one tick
	// may be buffered.
	fake.Advance(4 * time.Second)

	drained := 0
	for {
		select {
		case <-ticker.C:
			drained++
			continue
		default:
		}
		break
	}
	if drained != 1 {
		t.Errorf("drained %d ticks, want 1", drained)
	}
}

func TestFakeNowAdvances(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	fake.Advance(90 * time.Minute)
	if got, want := fake.Now(), start.Add(90*time.Minute); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}
