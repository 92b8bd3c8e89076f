// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"sync"
)

// sentLine records one Send call on the fake conn.
type sentLine struct {
	target string
	text   string
}

// fakeConn is an in-memory Conn for session tests. Inbound events are
// injected on events; outbound activity is observable on channels.
type fakeConn struct {
	events     chan Event
	registered chan string
	joined     chan string
	probes     chan string
	sent       chan sentLine

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events:     make(chan Event, 16),
		registered: make(chan string, 4),
		joined:     make(chan string, 4),
		probes:     make(chan string, 16),
		sent:       make(chan sentLine, 64),
		closed:     make(chan struct{}),
	}
}

func (c *fakeConn) Register(nick, user, realName string) error {
	c.registered <- nick
	return nil
}

func (c *fakeConn) Join(channel string) error {
	c.joined <- channel
	return nil
}

func (c *fakeConn) Send(target, text string) error {
	c.sent <- sentLine{target: target, text: text}
	return nil
}

func (c *fakeConn) Probe(nick string) error {
	c.probes <- nick
	return nil
}

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// disconnect injects a disconnect event and ends the stream, the way
// a real transport reports a dead link.
func (c *fakeConn) disconnect(err error) {
	c.events <- Event{Kind: KindDisconnect, Err: err}
}

// fakeDialer hands out queued conns, one per Dial call.
type fakeDialer struct {
	conns chan *fakeConn
	dials chan *fakeConn
}

func newFakeDialer(capacity int) *fakeDialer {
	return &fakeDialer{
		conns: make(chan *fakeConn, capacity),
		dials: make(chan *fakeConn, capacity),
	}
}

func (d *fakeDialer) add(conn *fakeConn) { d.conns <- conn }

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	select {
	case conn := <-d.conns:
		d.dials <- conn
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
