// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"unicode/utf8"
)

// lineLimit is the transport's hard cap on one protocol line,
// including the delivery envelope and trailing CRLF.
const lineLimit = 512

// maxHostLen is the worst-case length of the bot's own hostname as
// other clients see it in the delivery envelope. The server, not the
// bot, decides the displayed host, so the limit assumes the maximum.
const maxHostLen = 63

// MaxPayload returns the largest message text, in bytes, that fits a
// single line to the given recipient. The envelope the server
// prepends on delivery is ":<nick>!<user>@<host> PRIVMSG <recipient> :",
// so the budget shrinks with the bot's own nick and user and with the
// recipient's name, and must be recomputed per recipient.
func MaxPayload(nick, user, recipient string) int {
	envelope := 1 + len(nick) + 1 + len(user) + 1 + maxHostLen + // :nick!user@host
		len(" PRIVMSG ") + len(recipient) + len(" :") + len("\r\n")
	return lineLimit - envelope
}

// Split cuts text into consecutive chunks of at most limit bytes.
// Concatenating the chunks reproduces text exactly; cuts never land
// inside a multi-byte rune. A limit below the size of one rune is
// widened to utf8.UTFMax so the split always makes progress.
func Split(text string, limit int) []string {
	if limit < utf8.UTFMax {
		limit = utf8.UTFMax
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}

// Color is an in-band color code understood by chat clients.
type Color int

// The mIRC color palette entries the bridge message uses.
const (
	ColorBlue   Color = 2
	ColorGreen  Color = 3
	ColorPurple Color = 6
	ColorTeal   Color = 10
)

// Colorize wraps text in in-band color control codes. The two-digit
// form keeps a leading digit in text from bleeding into the code.
func Colorize(c Color, text string) string {
	return fmt.Sprintf("\x03%02d%s\x03", c, text)
}
