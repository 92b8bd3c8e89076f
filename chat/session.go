// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chatrelay/chatrelay/lib/clock"
)

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected means no live connection exists.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight or registration is
	// pending.
	StateConnecting
	// StateRegistered means the server confirmed registration but the
	// channel has not been joined yet.
	StateRegistered
	// StateJoined means the bot requested its channel join. Join is
	// fire-and-forget: there is no join-confirmation wait.
	StateJoined
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateJoined:
		return "joined"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReconnectPolicy selects who schedules redials after a disconnect.
type ReconnectPolicy int

const (
	// ReconnectSelfManaged makes Run redial itself after a fixed
	// back-off delay, and enables the keepalive probe.
	ReconnectSelfManaged ReconnectPolicy = iota
	// ReconnectSupervised makes Run return after one connection; an
	// external supervisor decides when to call it again. No keepalive
	// probing — the supervisor owns liveness.
	ReconnectSupervised
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Dialer opens connections. Required.
	Dialer Dialer

	// Nick, User, and RealName are the fixed identity parameters sent
	// on registration. Nick is required.
	Nick     string
	User     string
	RealName string

	// Channel is joined after registration. Required.
	Channel string

	// Policy selects self-managed or supervised reconnection.
	Policy ReconnectPolicy

	// ReconnectDelay is the back-off before redialing. Self-managed
	// only. Defaults to 60s.
	ReconnectDelay time.Duration

	// KeepaliveInterval is how often the traffic-seen flag is
	// checked. Self-managed only. Defaults to 300s.
	KeepaliveInterval time.Duration

	// Clock drives the keepalive ticker and reconnect back-off. Nil
	// means the real clock.
	Clock clock.Clock

	// Logger receives structured log output. Nil means slog.Default().
	Logger *slog.Logger

	// OnMessage is called from the event loop for every inbound chat
	// message, public or private. The callback must not block: slow
	// work (network fetches) belongs on a handler goroutine, with the
	// reply delivered through Send.
	OnMessage func(Message)
}

// Session owns the connection lifecycle state machine. One goroutine
// (the Run loop) holds the state, the traffic-seen flag, and the
// timers; Send is safe to call from any goroutine.
type Session struct {
	cfg    SessionConfig
	clk    clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	state State
	conn  Conn
}

// NewSession validates the config and creates a Session in
// StateDisconnected.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("chat: SessionConfig.Dialer is required")
	}
	if cfg.Nick == "" {
		return nil, fmt.Errorf("chat: SessionConfig.Nick is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("chat: SessionConfig.Channel is required")
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.RealName == "" {
		cfg.RealName = cfg.Nick
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 60 * time.Second
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = 300 * time.Second
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{cfg: cfg, clk: clk, logger: logger}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the configured channel, the default target for
// webhook announcements.
func (s *Session) Channel() string { return s.cfg.Channel }

// lineBreaks flattens CR/LF out of outbound text. The wire protocol
// is line-delimited, so a line break inside a message body (a tracker
// summary, say) would otherwise inject extra protocol lines.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Send delivers text to a channel or nick, splitting it into as many
// transport messages as the per-recipient payload limit requires.
// Returns an error when no connection is live; callers treat that as
// a dropped reply, never as fatal.
func (s *Session) Send(target, text string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("chat: not connected")
	}

	text = lineBreaks.Replace(text)
	limit := MaxPayload(s.cfg.Nick, s.cfg.User, target)
	for _, chunk := range Split(text, limit) {
		if err := conn.Send(target, chunk); err != nil {
			return fmt.Errorf("chat: sending to %s: %w", target, err)
		}
	}
	return nil
}

// Run drives the connection until ctx is cancelled. Under
// ReconnectSelfManaged it loops forever: connection loss schedules a
// redial after the back-off delay and is never fatal. Under
// ReconnectSupervised it returns after the first disconnect so the
// supervisor can decide.
func (s *Session) Run(ctx context.Context) error {
	for {
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.cfg.Policy == ReconnectSupervised {
			return err
		}

		s.logger.Info("connection lost, scheduling reconnect",
			"delay", s.cfg.ReconnectDelay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(s.cfg.ReconnectDelay):
		}
	}
}

// runConnection performs one dial/register/join cycle and pumps
// events until the connection dies or ctx is cancelled.
func (s *Session) runConnection(ctx context.Context) error {
	s.setState(StateConnecting)

	conn, err := s.cfg.Dialer.Dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("chat: dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.state = StateDisconnected
		s.mu.Unlock()
	}()

	if err := conn.Register(s.cfg.Nick, s.cfg.User, s.cfg.RealName); err != nil {
		return fmt.Errorf("chat: register: %w", err)
	}

	// The keepalive ticker exists only in self-managed mode; a nil
	// channel never fires in the select below. Stopping the ticker on
	// return cancels the probe when the connection drops.
	var keepalive <-chan time.Time
	if s.cfg.Policy == ReconnectSelfManaged {
		ticker := s.clk.NewTicker(s.cfg.KeepaliveInterval)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	trafficSeen := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-keepalive:
			if !trafficSeen {
				s.logger.Debug("no traffic since last check, probing link")
				if err := conn.Probe(s.cfg.Nick); err != nil {
					// A failed probe write means the read side will
					// notice the dead link shortly. The flag resets
					// either way.
					s.logger.Warn("liveness probe failed", "error", err)
				}
			}
			trafficSeen = false

		case event, ok := <-conn.Events():
			if !ok {
				return fmt.Errorf("chat: event stream closed")
			}
			// Every inbound event of any kind counts as link
			// traffic, not just chat messages.
			trafficSeen = true

			done, err := s.handleEvent(conn, event)
			if done {
				return err
			}
		}
	}
}

// handleEvent applies one event to the state machine. It returns
// done=true when the connection is over.
func (s *Session) handleEvent(conn Conn, event Event) (bool, error) {
	switch event.Kind {
	case KindWelcome:
		s.setState(StateRegistered)
		s.logger.Info("registered, joining channel", "channel", s.cfg.Channel)
		if err := conn.Join(s.cfg.Channel); err != nil {
			return true, fmt.Errorf("chat: join %s: %w", s.cfg.Channel, err)
		}
		s.setState(StateJoined)

	case KindMessage:
		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(Message{
				Sender:     event.Sender,
				Target:     event.Target,
				Text:       event.Text,
				Identified: event.Identified,
			})
		}

	case KindDisconnect:
		if event.Err != nil {
			return true, fmt.Errorf("chat: connection lost: %w", event.Err)
		}
		return true, fmt.Errorf("chat: connection closed by server")

	case KindJoin, KindPing, KindNotice:
		// Nothing beyond the traffic accounting done by the caller.

	case KindInternal:
		// Transport housekeeping, deliberately not logged.

	default:
		s.logger.Debug("unhandled transport event",
			"name", event.Name,
			"args", renderArgs(event.Args),
		)
	}
	return false, nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
