// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Call carries the per-invocation context a command handler sees: the
// argument text and the sender's identity as asserted by the
// transport. Identity is read fresh per invocation, never persisted.
type Call struct {
	// Arg is the text after the command prefix, trimmed. Empty when
	// the command was invoked bare.
	Arg string

	// Sender is the invoking nick.
	Sender string

	// Identified reports whether the transport vouches for the
	// sender.
	Identified bool
}

// Command is one registered command. Implementations are immutable
// after registration; all mutable state lives behind them.
type Command interface {
	// Name is the unique full command name users abbreviate.
	Name() string

	// Usage is the one-line help text.
	Usage() string

	// Handle executes the command and returns the reply text. Errors
	// are reported as "ERROR: ..." reply strings, never as Go errors:
	// nothing a handler does may disturb the transport.
	Handle(ctx context.Context, call Call) string
}

// Router resolves a typed prefix against the command table and
// dispatches. Resolution is deterministic: it depends only on the
// registered name set, never on registration or call order.
type Router struct {
	logger   *slog.Logger
	commands map[string]Command
	names    []string // sorted
	ignored  map[string]struct{}
}

// NewRouter builds a Router over the given commands. The ignored
// names belong to other bots sharing the channel; invocations of them
// are dropped without any reply. Duplicate command names are a
// programming error.
func NewRouter(logger *slog.Logger, ignored []string, commands ...Command) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table := make(map[string]Command, len(commands))
	names := make([]string, 0, len(commands))
	for _, command := range commands {
		name := command.Name()
		if _, exists := table[name]; exists {
			return nil, fmt.Errorf("relay: duplicate command %q", name)
		}
		table[name] = command
		names = append(names, name)
	}
	sort.Strings(names)

	ignoredSet := make(map[string]struct{}, len(ignored))
	for _, name := range ignored {
		ignoredSet[name] = struct{}{}
	}

	return &Router{
		logger:   logger,
		commands: table,
		names:    names,
		ignored:  ignoredSet,
	}, nil
}

// Names returns the registered command names, sorted.
func (r *Router) Names() []string { return r.names }

// Lookup returns the command registered under an exact name.
func (r *Router) Lookup(name string) (Command, bool) {
	command, ok := r.commands[name]
	return command, ok
}

// Match returns every command name the prefix matches, sorted. The
// match is a case-sensitive starts-with test; an empty prefix matches
// every command.
func (r *Router) Match(prefix string) []string {
	var matches []string
	for _, name := range r.names {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matches
}

// Ignored reports whether the prefix names a command owned by another
// bot.
func (r *Router) Ignored(prefix string) bool {
	_, ok := r.ignored[prefix]
	return ok
}

// Dispatch resolves the prefix and runs the matching command. The
// returned reply is empty only when the invocation was silently
// dropped (an ignored command name).
func (r *Router) Dispatch(ctx context.Context, prefix string, call Call) string {
	if r.Ignored(prefix) {
		r.logger.Debug("ignoring foreign command", "prefix", prefix)
		return ""
	}

	matches := r.Match(prefix)
	switch len(matches) {
	case 0:
		return fmt.Sprintf("ERROR: unknown command %q", prefix)
	case 1:
		command := r.commands[matches[0]]
		r.logger.Info("dispatching command",
			"command", matches[0],
			"sender", call.Sender,
			"arg", call.Arg,
		)
		return command.Handle(ctx, call)
	default:
		return fmt.Sprintf("ERROR: ambiguous command %q: %s",
			prefix, strings.Join(matches, ", "))
	}
}
