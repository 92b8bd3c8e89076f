// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/lib/testutil"
)

func startTestServer(t *testing.T) (*Server, *collector, <-chan error) {
	t.Helper()
	bridge, sent := newTestBridge(t, []string{"ZBX"})
	server := NewServer(ServerConfig{
		Address: "127.0.0.1:0",
		Path:    "/webhook",
		Bridge:  bridge,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "server shutdown")
	})

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server readiness")
	return server, sent, done
}

func TestServerDeliversToBridge(t *testing.T) {
	server, sent, _ := startTestServer(t)

	url := "http://" + server.Addr().String() + "/webhook"
	response, err := http.Post(url, "application/json", strings.NewReader(createdPayload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	response.Body.Close()

	if response.StatusCode != http.StatusOK {
		t.Errorf("status = %d", response.StatusCode)
	}
	if got := len(sent.all()); got != 1 {
		t.Errorf("sent %d messages, want 1", got)
	}
}

func TestServerUnknownPathIs404(t *testing.T) {
	server, _, _ := startTestServer(t)

	response, err := http.Get("http://" + server.Addr().String() + "/other")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	response.Body.Close()

	if response.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", response.StatusCode)
	}
}

func TestServerBindFailureReturnsWithoutReady(t *testing.T) {
	// Occupy a port so Serve's listen fails.
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer occupied.Close()

	bridge, _ := newTestBridge(t, nil)
	server := NewServer(ServerConfig{
		Address: occupied.Addr().String(),
		Path:    "/webhook",
		Bridge:  bridge,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(context.Background())
	}()

	// Serve must surface the bind error itself, promptly and without
	// signaling readiness — startup code selects on both.
	serveErr := testutil.RequireReceive(t, done, 5*time.Second, "serve return")
	if serveErr == nil {
		t.Fatal("Serve succeeded on an occupied port")
	}
	select {
	case <-server.Ready():
		t.Error("Ready closed despite the bind failure")
	default:
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	bridge, _ := newTestBridge(t, nil)
	server := NewServer(ServerConfig{
		Address: "127.0.0.1:0",
		Path:    "/webhook",
		Bridge:  bridge,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server readiness")

	cancel()
	err := testutil.RequireReceive(t, done, 5*time.Second, "serve return")
	if err != nil {
		t.Errorf("Serve returned %v, want nil on graceful shutdown", err)
	}
}
