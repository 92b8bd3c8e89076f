// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/lib/clock"
	"github.com/chatrelay/chatrelay/lib/testutil"
)

const testTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startSession runs a session against the given dialer and returns a
// channel carrying Run's result.
func startSession(t *testing.T, cfg SessionConfig) (*Session, context.CancelFunc, chan error) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	session, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- session.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(testTimeout):
			t.Error("session did not stop")
		}
	})
	return session, cancel, done
}

func TestSessionRegistersAndJoinsOnWelcome(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)
	fake := clock.Fake(time.Unix(0, 0))

	session, _, _ := startSession(t, SessionConfig{
		Dialer:  dialer,
		Nick:    "relay",
		Channel: "#ops",
		Clock:   fake,
	})

	nick := testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	if nick != "relay" {
		t.Errorf("registered nick = %q, want relay", nick)
	}

	conn.events <- Event{Kind: KindWelcome}

	channel := testutil.RequireReceive(t, conn.joined, testTimeout, "join")
	if channel != "#ops" {
		t.Errorf("joined %q, want #ops", channel)
	}
	if got := session.State(); got != StateJoined {
		t.Errorf("state = %v, want joined", got)
	}
}

func TestSessionMessageCallback(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)

	messages := make(chan Message, 4)
	startSession(t, SessionConfig{
		Dialer:    dialer,
		Nick:      "relay",
		Channel:   "#ops",
		Clock:     clock.Fake(time.Unix(0, 0)),
		OnMessage: func(m Message) { messages <- m },
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	conn.events <- Event{Kind: KindWelcome}
	testutil.RequireReceive(t, conn.joined, testTimeout, "join")

	conn.events <- Event{Kind: KindMessage, Sender: "alice", Target: "#ops", Text: "hello", Identified: true}

	got := testutil.RequireReceive(t, messages, testTimeout, "message callback")
	if got.Sender != "alice" || got.Target != "#ops" || got.Text != "hello" || !got.Identified {
		t.Errorf("message = %+v", got)
	}
}

func TestSessionSelfManagedReconnects(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := newFakeDialer(2)
	dialer.add(first)
	dialer.add(second)
	fake := clock.Fake(time.Unix(0, 0))

	session, _, _ := startSession(t, SessionConfig{
		Dialer:         dialer,
		Nick:           "relay",
		Channel:        "#ops",
		Policy:         ReconnectSelfManaged,
		ReconnectDelay: 60 * time.Second,
		Clock:          fake,
	})

	testutil.RequireReceive(t, dialer.dials, testTimeout, "first dial")
	testutil.RequireReceive(t, first.registered, testTimeout, "first register")
	first.disconnect(errors.New("socket reset"))

	testutil.RequireClosed(t, first.closed, testTimeout, "first conn closed")

	// The redial waits out the back-off on the fake clock. Advancing
	// races the session's timer registration, so advance until the
	// second dial lands.
	deadline := time.Now().Add(testTimeout)
	for {
		fake.Advance(60 * time.Second)
		select {
		case <-dialer.dials:
			testutil.RequireReceive(t, second.registered, testTimeout, "second register")
			if got := session.State(); got == StateDisconnected {
				t.Errorf("state still disconnected after redial")
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("no redial after back-off")
		}
	}
}

func TestSessionSupervisedReturnsOnDisconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)

	_, _, done := startSession(t, SessionConfig{
		Dialer:  dialer,
		Nick:    "relay",
		Channel: "#ops",
		Policy:  ReconnectSupervised,
		Clock:   clock.Fake(time.Unix(0, 0)),
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	conn.disconnect(errors.New("socket reset"))

	err := testutil.RequireReceive(t, done, testTimeout, "Run return")
	if err == nil || !strings.Contains(err.Error(), "socket reset") {
		t.Errorf("Run returned %v, want the disconnect cause", err)
	}
}

func TestSessionKeepaliveProbesQuietLink(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)
	fake := clock.Fake(time.Unix(0, 0))

	startSession(t, SessionConfig{
		Dialer:            dialer,
		Nick:              "relay",
		Channel:           "#ops",
		Policy:            ReconnectSelfManaged,
		KeepaliveInterval: 300 * time.Second,
		Clock:             fake,
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	conn.events <- Event{Kind: KindWelcome}
	testutil.RequireReceive(t, conn.joined, testTimeout, "join")

	// The welcome event counted as traffic, so the first interval
	// passes without a probe and resets the flag.
	fake.Advance(300 * time.Second)
	testutil.RequireNoReceive(t, conn.probes, 50*time.Millisecond, "probe on a link with traffic")

	// No traffic during the second interval: probe expected.
	deadline := time.Now().Add(testTimeout)
	for {
		fake.Advance(300 * time.Second)
		select {
		case nick := <-conn.probes:
			if nick != "relay" {
				t.Errorf("probed %q, want relay", nick)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("no probe on quiet link")
		}
	}
}

func TestSessionKeepaliveAnyEventCountsAsTraffic(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)
	fake := clock.Fake(time.Unix(0, 0))

	startSession(t, SessionConfig{
		Dialer:            dialer,
		Nick:              "relay",
		Channel:           "#ops",
		Policy:            ReconnectSelfManaged,
		KeepaliveInterval: 300 * time.Second,
		Clock:             fake,
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	conn.events <- Event{Kind: KindWelcome}
	testutil.RequireReceive(t, conn.joined, testTimeout, "join")
	fake.Advance(300 * time.Second)

	// A bare server notice is traffic even though it is not a chat
	// message.
	conn.events <- Event{Kind: KindNotice, Text: "maintenance window"}

	// Give the event loop a moment to consume it, then tick.
	time.Sleep(50 * time.Millisecond)
	fake.Advance(300 * time.Second)
	testutil.RequireNoReceive(t, conn.probes, 50*time.Millisecond, "probe despite notice traffic")
}

func TestSessionSendSplitsLongReplies(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)

	session, _, _ := startSession(t, SessionConfig{
		Dialer:  dialer,
		Nick:    "relay",
		Channel: "#ops",
		Clock:   clock.Fake(time.Unix(0, 0)),
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	conn.events <- Event{Kind: KindWelcome}
	testutil.RequireReceive(t, conn.joined, testTimeout, "join")

	long := strings.Repeat("0123456789", 120) // 1200 bytes
	if err := session.Send("#ops", long); err != nil {
		t.Fatalf("Send: %v", err)
	}

	limit := MaxPayload("relay", "relay", "#ops")
	var rebuilt strings.Builder
	for rebuilt.Len() < len(long) {
		line := testutil.RequireReceive(t, conn.sent, testTimeout, "chunk")
		if line.target != "#ops" {
			t.Errorf("chunk target = %q", line.target)
		}
		if len(line.text) > limit {
			t.Errorf("chunk length %d exceeds limit %d", len(line.text), limit)
		}
		rebuilt.WriteString(line.text)
	}
	if rebuilt.String() != long {
		t.Error("concatenated chunks differ from the original reply")
	}
}

func TestSessionSendFlattensLineBreaks(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)

	session, _, _ := startSession(t, SessionConfig{
		Dialer:  dialer,
		Nick:    "relay",
		Channel: "#ops",
		Clock:   clock.Fake(time.Unix(0, 0)),
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	conn.events <- Event{Kind: KindWelcome}
	testutil.RequireReceive(t, conn.joined, testTimeout, "join")

	if err := session.Send("#ops", "summary line one\r\nQUIT :injected\nend"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	line := testutil.RequireReceive(t, conn.sent, testTimeout, "sent text")
	if strings.ContainsAny(line.text, "\r\n") {
		t.Errorf("sent text %q still contains line breaks", line.text)
	}
	if line.text != "summary line one QUIT :injected end" {
		t.Errorf("sent text = %q", line.text)
	}
}

func TestSessionSendWhileDisconnected(t *testing.T) {
	dialer := newFakeDialer(1)
	session, err := NewSession(SessionConfig{
		Dialer:  dialer,
		Nick:    "relay",
		Channel: "#ops",
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := session.Send("#ops", "hello"); err == nil {
		t.Error("Send succeeded with no connection")
	}
}

func TestSessionStopsOnContextCancel(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(1)
	dialer.add(conn)

	_, cancel, done := startSession(t, SessionConfig{
		Dialer:  dialer,
		Nick:    "relay",
		Channel: "#ops",
		Clock:   clock.Fake(time.Unix(0, 0)),
	})

	testutil.RequireReceive(t, conn.registered, testTimeout, "register")
	cancel()

	err := testutil.RequireReceive(t, done, testTimeout, "Run return")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
