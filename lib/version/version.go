// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the chatrelay binary.
package version

import "runtime/debug"

// Version is overridden at release time via
// -ldflags "-X github.com/chatrelay/chatrelay/lib/version.Version=v1.2.3".
var Version = "dev"

// Info returns the release version, falling back to the VCS revision
// embedded by the Go toolchain for untagged builds.
func Info() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
				return "dev-" + setting.Value[:12]
			}
		}
	}
	return Version
}
