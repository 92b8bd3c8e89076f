// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chatrelay/chatrelay/tracker"
)

// Describer is the slice of tracker.Resolver the issue command needs.
type Describer interface {
	Describe(ctx context.Context, key string) (string, error)
}

// numberPattern recognizes a positional back-reference argument.
var numberPattern = regexp.MustCompile(`^[0-9]+$`)

// --- issue ---

// issueCommand resolves a tracker reference: a positional number into
// the recent-key history, or a tracker-key literal.
type issueCommand struct {
	history  *History
	resolver Describer
	exactKey *regexp.Regexp
}

func (c *issueCommand) Name() string { return "issue" }

func (c *issueCommand) Usage() string {
	return "issue [n|KEY] - describe the nth-most-recent issue seen in the channel (default 1), or the named issue"
}

func (c *issueCommand) Handle(ctx context.Context, call Call) string {
	arg := call.Arg
	if arg == "" {
		// Bare "issue" means the most recent key.
		arg = "1"
	}

	switch {
	case numberPattern.MatchString(arg):
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Sprintf("ERROR: issue %s does not exist in chat history", arg)
		}
		key, ok := c.history.Nth(n)
		if !ok {
			return fmt.Sprintf("ERROR: issue %d does not exist in chat history", n)
		}
		return c.describe(ctx, key)

	case c.exactKey.MatchString(arg):
		return c.describe(ctx, strings.ToUpper(arg))

	default:
		return fmt.Sprintf("ERROR: %q is not a number or an issue identifier", arg)
	}
}

func (c *issueCommand) describe(ctx context.Context, key string) string {
	description, err := c.resolver.Describe(ctx, key)
	if err != nil {
		var remote *tracker.RemoteError
		if errors.As(err, &remote) {
			return fmt.Sprintf("ERROR: could not fetch issue description. Reason: %s", remote.Reason())
		}
		return "ERROR: could not fetch issue description"
	}
	return description
}

// --- key ---

// keyCommand looks item keys up by prefix in the key table.
type keyCommand struct {
	tables *Tables
}

func (c *keyCommand) Name() string { return "key" }

func (c *keyCommand) Usage() string {
	return "key [prefix] - describe the item key matching the prefix, or list all known keys"
}

func (c *keyCommand) Handle(ctx context.Context, call Call) string {
	if call.Arg == "" {
		return "known keys: " + strings.Join(c.tables.KeyNames(), ", ")
	}

	matches := matchPrefix(c.tables.KeyNames(), call.Arg)
	switch len(matches) {
	case 0:
		return fmt.Sprintf("ERROR: unknown key %q", call.Arg)
	case 1:
		description, _ := c.tables.Key(matches[0])
		return matches[0] + ": " + description
	default:
		return fmt.Sprintf("ERROR: ambiguous key %q: %s", call.Arg, strings.Join(matches, ", "))
	}
}

// --- topic ---

// topicCommand looks topics up by prefix, falling back to the keyword
// alias table when no topic name matches.
type topicCommand struct {
	tables *Tables
}

func (c *topicCommand) Name() string { return "topic" }

func (c *topicCommand) Usage() string {
	return "topic [name] - show the named topic, or list all topics"
}

func (c *topicCommand) Handle(ctx context.Context, call Call) string {
	if call.Arg == "" {
		return "known topics: " + strings.Join(c.tables.TopicNames(), ", ")
	}

	matches := matchPrefix(c.tables.TopicNames(), call.Arg)
	if len(matches) == 0 {
		// The keyword table maps informal aliases onto topic names.
		matches = resolveKeywords(c.tables, call.Arg)
	}

	switch len(matches) {
	case 0:
		return fmt.Sprintf("ERROR: unknown topic %q", call.Arg)
	case 1:
		text, ok := c.tables.Topic(matches[0])
		if !ok {
			return fmt.Sprintf("ERROR: unknown topic %q", matches[0])
		}
		return matches[0] + ": " + text
	default:
		return fmt.Sprintf("ERROR: ambiguous topic %q: %s", call.Arg, strings.Join(matches, ", "))
	}
}

// resolveKeywords prefix-matches the alias table and maps the hits to
// their topic names, deduplicated and sorted.
func resolveKeywords(tables *Tables, prefix string) []string {
	seen := make(map[string]struct{})
	for _, alias := range matchPrefix(tables.KeywordAliases(), prefix) {
		if topic, ok := tables.KeywordTopic(alias); ok {
			seen[topic] = struct{}{}
		}
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// --- reload ---

// reloadCommand re-reads the data tables from disk. Restricted to
// identified senders on the admin list.
type reloadCommand struct {
	tables *Tables
	admins map[string]struct{}
}

func (c *reloadCommand) Name() string { return "reload" }

func (c *reloadCommand) Usage() string {
	return "reload - re-read the topic, keyword, and key tables (admins only)"
}

func (c *reloadCommand) Handle(ctx context.Context, call Call) string {
	if !call.Identified {
		return "ERROR: you are not allowed to reload"
	}
	if _, ok := c.admins[call.Sender]; !ok {
		return "ERROR: you are not allowed to reload"
	}

	if err := c.tables.Reload(); err != nil {
		return fmt.Sprintf("ERROR: reload failed: %v", err)
	}
	topics, keywords, keys := c.tables.Counts()
	return fmt.Sprintf("reloaded %d topics, %d keywords, %d keys", topics, keywords, keys)
}

// --- help ---

// helpCommand describes the command set. It resolves its argument
// with the router's own prefix-match policy so "help iss" and "!iss"
// agree on what they mean.
type helpCommand struct {
	// router is set after construction; the router cannot exist
	// before its commands do.
	router *Router
}

func (c *helpCommand) Name() string { return "help" }

func (c *helpCommand) Usage() string {
	return "help [name] - list commands, or show usage for one"
}

func (c *helpCommand) Handle(ctx context.Context, call Call) string {
	if call.Arg == "" {
		return "commands: " + strings.Join(c.router.Names(), ", ")
	}

	matches := c.router.Match(call.Arg)
	switch len(matches) {
	case 0:
		return fmt.Sprintf("ERROR: unknown command %q", call.Arg)
	case 1:
		command, _ := c.router.Lookup(matches[0])
		return command.Usage()
	default:
		return fmt.Sprintf("ERROR: ambiguous command %q: %s", call.Arg, strings.Join(matches, ", "))
	}
}

// matchPrefix returns the names the prefix matches, case-sensitively,
// in sorted order (names arrive sorted from the table accessors).
func matchPrefix(names []string, prefix string) []string {
	var matches []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matches
}
