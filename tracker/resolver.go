// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetcher is the slice of Client the resolver needs. Tests substitute
// a counting fake.
type Fetcher interface {
	// Summary returns the issue's summary field.
	Summary(ctx context.Context, key string) (string, error)

	// BrowseURL returns the human-facing URL for a key.
	BrowseURL(key string) string
}

// Resolver memoizes tracker-key → description lookups for the process
// lifetime. The first successful fetch wins; there is no invalidation
// and no reload. Failures are not cached, so a key that failed once
// is retried on the next request for it.
type Resolver struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]string

	// group collapses concurrent fetches for the same uncached key
	// into one outstanding request.
	group singleflight.Group
}

// NewResolver creates a Resolver over the given fetcher. Panics on a
// nil fetcher — there is no meaningful degraded mode.
func NewResolver(fetcher Fetcher, logger *slog.Logger) *Resolver {
	if fetcher == nil {
		panic("tracker: Resolver requires a Fetcher")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]string),
	}
}

// Describe returns the issue description for a key, in the form
// "[KEY] <summary> (URL: <browse-url>)". Cached descriptions are
// returned without network access.
func (r *Resolver) Describe(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	if description, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return description, nil
	}
	r.mu.Unlock()

	value, err, shared := r.group.Do(key, func() (any, error) {
		summary, err := r.fetcher.Summary(ctx, key)
		if err != nil {
			return nil, err
		}
		description := fmt.Sprintf("[%s] %s (URL: %s)", key, summary, r.fetcher.BrowseURL(key))

		r.mu.Lock()
		r.cache[key] = description
		r.mu.Unlock()
		return description, nil
	})
	if err != nil {
		r.logger.Warn("issue fetch failed", "key", key, "error", err)
		return "", err
	}
	if shared {
		r.logger.Debug("fetch shared with concurrent request", "key", key)
	}
	return value.(string), nil
}

// Cached reports whether a key already has a memoized description.
func (r *Resolver) Cached(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cache[key]
	return ok
}
