// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"fmt"
	"regexp"
	"strings"
)

// KeyPattern compiles the tracker-key token shape — an alphabetic
// project prefix of 3–7 characters, a hyphen, and up to maxDigits
// digits — for scanning keys out of free-form chat text. The word
// boundaries keep substrings of longer words (an 8-letter prefix, a
// key with too many digits) from scanning as phantom keys.
func KeyPattern(maxDigits int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`\b[A-Za-z]{3,7}-[0-9]{1,%d}\b`, maxDigits))
}

// ExactKeyPattern compiles the same shape anchored to the whole
// string, for deciding whether a command argument is a key.
func ExactKeyPattern(maxDigits int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`^[A-Za-z]{3,7}-[0-9]{1,%d}$`, maxDigits))
}

// ProjectPrefix returns the project part of a tracker key ("ZBX-42" →
// "ZBX"). Returns the whole string when no hyphen is present.
func ProjectPrefix(key string) string {
	if i := strings.Index(key, "-"); i >= 0 {
		return key[:i]
	}
	return key
}
