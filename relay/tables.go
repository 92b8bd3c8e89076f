// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/tidwall/jsonc"
)

// TablePaths names the three on-disk tables. An empty path means the
// corresponding table is simply absent.
type TablePaths struct {
	// Topics maps topic names to reply text.
	Topics string

	// Keywords maps aliases to topic names.
	Keywords string

	// Keys maps item-key names to descriptions.
	Keys string
}

// Tables holds the topic, keyword, and item-key lookup tables. The
// files are JSONC — JSON with comments — so operators can annotate
// entries in place.
//
// Reload swaps all three tables atomically: a failure loading any
// file keeps the previous contents.
type Tables struct {
	paths  TablePaths
	logger *slog.Logger

	mu       sync.RWMutex
	topics   map[string]string
	keywords map[string]string
	keys     map[string]string
}

// LoadTables reads the tables from disk. Any unreadable or malformed
// file fails the load; at startup that is fatal by design.
func LoadTables(paths TablePaths, logger *slog.Logger) (*Tables, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tables := &Tables{paths: paths, logger: logger}
	if err := tables.Reload(); err != nil {
		return nil, err
	}
	return tables, nil
}

// Reload re-reads all three files. On error the in-memory tables are
// left untouched.
func (t *Tables) Reload() error {
	topics, err := loadTable(t.paths.Topics)
	if err != nil {
		return fmt.Errorf("relay: loading topics: %w", err)
	}
	keywords, err := loadTable(t.paths.Keywords)
	if err != nil {
		return fmt.Errorf("relay: loading keywords: %w", err)
	}
	keys, err := loadTable(t.paths.Keys)
	if err != nil {
		return fmt.Errorf("relay: loading keys: %w", err)
	}

	t.mu.Lock()
	t.topics = topics
	t.keywords = keywords
	t.keys = keys
	t.mu.Unlock()

	t.logger.Info("tables loaded",
		"topics", len(topics),
		"keywords", len(keywords),
		"keys", len(keys),
	)
	return nil
}

// Counts returns the sizes of the three tables, for the reload reply.
func (t *Tables) Counts() (topics, keywords, keys int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.topics), len(t.keywords), len(t.keys)
}

// Topic returns the text for an exact topic name.
func (t *Tables) Topic(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	text, ok := t.topics[name]
	return text, ok
}

// KeywordTopic resolves an alias to its topic name.
func (t *Tables) KeywordTopic(alias string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.keywords[alias]
	return name, ok
}

// Key returns the description for an exact item-key name.
func (t *Tables) Key(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	description, ok := t.keys[name]
	return description, ok
}

// TopicNames returns all topic names, sorted.
func (t *Tables) TopicNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedNames(t.topics)
}

// KeywordAliases returns all keyword aliases, sorted.
func (t *Tables) KeywordAliases() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedNames(t.keywords)
}

// KeyNames returns all item-key names, sorted.
func (t *Tables) KeyNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedNames(t.keys)
}

func sortedNames(table map[string]string) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadTable reads one JSONC file into a string map. An empty path
// yields an empty table.
func loadTable(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	table := make(map[string]string)
	if err := json.Unmarshal(jsonc.ToJSON(data), &table); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return table, nil
}
