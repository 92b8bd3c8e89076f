// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracker talks to the issue tracker's REST API and memoizes
// the results.
//
// [Client] fetches one issue's summary field. [Resolver] sits above it
// with the process-lifetime description cache: at most one successful
// fetch ever happens per key, concurrent misses for the same key share
// a single outstanding request, and failures are never cached.
//
// The package also owns the tracker-key token shape. The digit bound
// of the numeric part varied across deployments, so [KeyPattern]
// takes it as a parameter instead of hard-coding it.
package tracker
