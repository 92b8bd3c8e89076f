// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for chatrelay.
//
// Configuration comes from a single file named by either the
// CHATRELAY_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no ~/.config discovery and no
// automatic file search; deterministic configuration beats convenient
// configuration for a bot that reconnects unattended.
//
// Values start from [Default] so the file only states what differs.
// Data-table paths support ${VAR} and ${VAR:-default} expansion; no
// other environment variables override config values.
package config
