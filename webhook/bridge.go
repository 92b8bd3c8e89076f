// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/chatrelay/chatrelay/chat"
	"github.com/chatrelay/chatrelay/tracker"
)

// maxBodySize bounds a webhook payload. Tracker issue events are a few
// kilobytes; 1 MB is generous.
const maxBodySize = 1 << 20

// issueCreatedEvent is the only envelope type the bridge announces.
const issueCreatedEvent = "jira:issue_created"

// Linker produces the web URL for a tracker key. *tracker.Client
// satisfies it.
type Linker interface {
	BrowseURL(key string) string
}

var _ Linker = (*tracker.Client)(nil)

// event is the subset of the tracker's webhook envelope the bridge
// reads. Everything else in the payload is ignored.
type event struct {
	WebhookEvent string `json:"webhookEvent"`
	Issue        struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
		} `json:"fields"`
	} `json:"issue"`
	User struct {
		DisplayName string `json:"displayName"`
		Name        string `json:"name"`
	} `json:"user"`
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Channel is the chat channel new-issue notifications go to.
	// Required.
	Channel string

	// Projects is the allow-list of project prefixes to announce.
	// Empty announces every project.
	Projects []string

	// Linker turns issue keys into browse URLs. Required.
	Linker Linker

	// Send delivers the notification; wired to chat.Session.Send in
	// production. Required.
	Send func(target, text string) error

	// Logger receives structured log output. Required.
	Logger *slog.Logger
}

// Bridge announces tracker-created issues into the chat channel. It is
// an http.Handler: the tracker POSTs its event envelope to it, and the
// response is 200 for every well-formed POST whether or not a channel
// message results — the tracker does not act on the response body, and
// a non-200 would only provoke pointless retries.
type Bridge struct {
	channel  string
	projects map[string]struct{}
	linker   Linker
	send     func(target, text string) error
	logger   *slog.Logger
}

// NewBridge creates a bridge posting to the given channel. Panics on a
// missing required field — a nil Send would silently discard events.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Channel == "" {
		panic("webhook.Bridge: Channel is required")
	}
	if cfg.Linker == nil {
		panic("webhook.Bridge: Linker is required")
	}
	if cfg.Send == nil {
		panic("webhook.Bridge: Send is required")
	}
	if cfg.Logger == nil {
		panic("webhook.Bridge: Logger is required")
	}

	projects := make(map[string]struct{}, len(cfg.Projects))
	for _, prefix := range cfg.Projects {
		projects[prefix] = struct{}{}
	}

	return &Bridge{
		channel:  cfg.Channel,
		projects: projects,
		linker:   cfg.Linker,
		send:     cfg.Send,
		logger:   cfg.Logger,
	}
}

// ServeHTTP handles one webhook delivery.
func (b *Bridge) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	// Everything past this point acknowledges with 200: a malformed
	// or uninteresting event is the tracker's normal traffic, not a
	// delivery failure it should retry.
	defer writer.WriteHeader(http.StatusOK)

	body, err := io.ReadAll(io.LimitReader(request.Body, maxBodySize))
	if err != nil {
		b.logger.Warn("webhook: reading body failed", "error", err)
		return
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		b.logger.Warn("webhook: malformed payload", "error", err)
		return
	}

	if ev.WebhookEvent != issueCreatedEvent {
		b.logger.Debug("webhook: event type not announced", "event", ev.WebhookEvent)
		return
	}
	if ev.Issue.Key == "" || ev.Issue.Fields.Summary == "" {
		b.logger.Warn("webhook: issue event missing key or summary")
		return
	}
	if !b.announced(ev.Issue.Key) {
		b.logger.Debug("webhook: project not on the allow-list", "key", ev.Issue.Key)
		return
	}

	text := b.format(ev)
	if err := b.send(b.channel, text); err != nil {
		b.logger.Warn("webhook: notification delivery failed",
			"key", ev.Issue.Key,
			"error", err,
		)
		return
	}
	b.logger.Info("webhook: announced new issue", "key", ev.Issue.Key)
}

// announced reports whether the key's project prefix passes the
// allow-list. An empty allow-list passes everything.
func (b *Bridge) announced(key string) bool {
	if len(b.projects) == 0 {
		return true
	}
	_, ok := b.projects[tracker.ProjectPrefix(key)]
	return ok
}

// format composes the single-line notification: key, summary,
// attribution, and browse URL, each in its own color.
func (b *Bridge) format(ev event) string {
	createdBy := "created by " + ev.User.DisplayName
	if ev.User.Name != "" && ev.User.Name != ev.User.DisplayName {
		createdBy += " (" + ev.User.Name + ")"
	}

	return fmt.Sprintf("%s %s %s %s",
		chat.Colorize(chat.ColorGreen, "["+ev.Issue.Key+"]"),
		chat.Colorize(chat.ColorBlue, ev.Issue.Fields.Summary),
		chat.Colorize(chat.ColorPurple, "("+createdBy+")"),
		chat.Colorize(chat.ColorTeal, b.linker.BrowseURL(ev.Issue.Key)),
	)
}
