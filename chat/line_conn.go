// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Dialer = (*LineDialer)(nil)
	_ Conn   = (*lineConn)(nil)
)

// LineDialer opens TCP connections speaking the CRLF line protocol
// (NICK/USER registration, numeric 001 welcome, PRIVMSG delivery,
// ISON liveness probe).
type LineDialer struct {
	// Address is the server in "host:port" form. Required.
	Address string

	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration

	// Logger receives per-connection debug output. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Dial opens one connection and starts its read loop.
func (d *LineDialer) Dial(ctx context.Context) (Conn, error) {
	if d.Address == "" {
		return nil, fmt.Errorf("chat: LineDialer.Address is required")
	}
	netConn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, err
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn := &lineConn{
		conn:   netConn,
		logger: logger,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go conn.readLoop()
	return conn, nil
}

// lineConn is one live line-protocol connection.
type lineConn struct {
	conn   net.Conn
	logger *slog.Logger
	events chan Event

	// done is closed by Close so a blocked event emit can abandon
	// delivery instead of leaking the read loop.
	done      chan struct{}
	closeOnce sync.Once

	writeMu sync.Mutex
}

func (c *lineConn) Register(nick, user, realName string) error {
	if err := c.writeLine("NICK %s", nick); err != nil {
		return err
	}
	return c.writeLine("USER %s 0 * :%s", user, realName)
}

func (c *lineConn) Join(channel string) error {
	return c.writeLine("JOIN %s", channel)
}

func (c *lineConn) Send(target, text string) error {
	return c.writeLine("PRIVMSG %s :%s", target, text)
}

func (c *lineConn) Probe(nick string) error {
	return c.writeLine("ISON %s", nick)
}

func (c *lineConn) Events() <-chan Event { return c.events }

func (c *lineConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.conn.Close()
}

// writeLine serializes one protocol line. Writes are mutex-guarded so
// handler goroutines and the session loop never interleave lines.
func (c *lineConn) writeLine(format string, args ...any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fmt.Fprintf(c.conn, format+"\r\n", args...)
	return err
}

// readLoop parses inbound lines into events until the connection
// dies, then emits a final KindDisconnect and closes the stream.
func (c *lineConn) readLoop() {
	defer close(c.events)

	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		event, pong := parseLine(line)
		if pong != "" {
			// The transport answers server pings itself; the session
			// only sees them as traffic.
			if err := c.writeLine("%s", pong); err != nil {
				c.logger.Debug("pong write failed", "error", err)
			}
		}
		if !c.emit(event) {
			return
		}
		if event.Kind == KindDisconnect {
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = errors.New("server closed the connection")
	}
	c.emit(Event{Kind: KindDisconnect, Err: err})
}

// emit delivers an event unless the connection was closed first.
func (c *lineConn) emit(event Event) bool {
	select {
	case c.events <- event:
		return true
	case <-c.done:
		return false
	}
}

// parseLine turns one raw protocol line into an Event, plus the
// response line owed to the server (for PING).
func parseLine(line string) (Event, string) {
	identified := false

	// Message tags: "@key=value;account=name ...". The account tag is
	// the transport's identity assertion for the sender.
	if strings.HasPrefix(line, "@") {
		space := strings.Index(line, " ")
		if space < 0 {
			return Event{Kind: KindRaw, Name: line}, ""
		}
		for _, tag := range strings.Split(line[1:space], ";") {
			if strings.HasPrefix(tag, "account=") && len(tag) > len("account=") {
				identified = true
			}
		}
		line = line[space+1:]
	}

	// Prefix: ":nick!user@host ".
	var sender string
	if strings.HasPrefix(line, ":") {
		space := strings.Index(line, " ")
		if space < 0 {
			return Event{Kind: KindRaw, Name: line}, ""
		}
		prefix := line[1:space]
		if bang := strings.Index(prefix, "!"); bang >= 0 {
			sender = prefix[:bang]
		} else {
			sender = prefix
		}
		line = line[space+1:]
	}

	// Trailing parameter: everything after " :".
	var trailing string
	hasTrailing := false
	if i := strings.Index(line, " :"); i >= 0 {
		trailing = line[i+2:]
		line = line[:i]
		hasTrailing = true
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Event{Kind: KindRaw, Name: line}, ""
	}
	command := fields[0]
	params := fields[1:]

	switch command {
	case "001":
		return Event{Kind: KindWelcome}, ""

	case "PING":
		token := trailing
		if token == "" && len(params) > 0 {
			token = params[0]
		}
		return Event{Kind: KindPing, Text: token}, "PONG :" + token

	case "PRIVMSG":
		if len(params) == 0 {
			break
		}
		return Event{
			Kind:       KindMessage,
			Sender:     sender,
			Target:     params[0],
			Text:       trailing,
			Identified: identified,
		}, ""

	case "NOTICE":
		target := ""
		if len(params) > 0 {
			target = params[0]
		}
		return Event{Kind: KindNotice, Sender: sender, Target: target, Text: trailing}, ""

	case "JOIN":
		target := trailing
		if target == "" && len(params) > 0 {
			target = params[0]
		}
		return Event{Kind: KindJoin, Sender: sender, Target: target}, ""

	case "ERROR":
		return Event{Kind: KindDisconnect, Err: fmt.Errorf("server error: %s", trailing)}, ""
	}

	args := make([]any, 0, len(params)+1)
	for _, param := range params {
		args = append(args, param)
	}
	if hasTrailing {
		args = append(args, trailing)
	}
	return Event{Kind: KindRaw, Name: command, Sender: sender, Args: args}, ""
}
