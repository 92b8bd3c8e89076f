// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/chat"
	"github.com/chatrelay/chatrelay/tracker"
)

// defaultDispatchTimeout bounds a single command invocation,
// including its tracker fetch.
const defaultDispatchTimeout = 30 * time.Second

// BotConfig configures a Bot.
type BotConfig struct {
	// Trigger is the single character that prefixes commands.
	// Required.
	Trigger string

	// IgnoredCommands are command names owned by other bots; see
	// Router.
	IgnoredCommands []string

	// Admins are the nicks allowed to run reload.
	Admins []string

	// HistorySize caps the recent-key history. Zero means
	// DefaultHistorySize.
	HistorySize int

	// MaxKeyDigits bounds the numeric part of a tracker key. Zero
	// means 5.
	MaxKeyDigits int

	// Resolver turns tracker keys into descriptions. Required.
	Resolver Describer

	// Tables are the topic/keyword/item-key tables. Required.
	Tables *Tables

	// Send delivers a reply to a channel or nick. Required; wired to
	// chat.Session.Send in production.
	Send func(target, text string) error

	// DispatchTimeout bounds one command invocation. Zero means 30s.
	DispatchTimeout time.Duration

	// Logger receives structured log output. Nil means slog.Default().
	Logger *slog.Logger
}

// Bot owns the command table and the recent-key history, and connects
// them to the chat session. HandleMessage is the session's OnMessage
// callback: it never blocks, handing each command invocation to its
// own goroutine.
type Bot struct {
	trigger string
	router  *Router
	history *History
	send    func(target, text string) error
	timeout time.Duration
	logger  *slog.Logger
}

// NewBot validates the config and builds the command table.
func NewBot(cfg BotConfig) (*Bot, error) {
	if len(cfg.Trigger) != 1 {
		return nil, fmt.Errorf("relay: Trigger must be one character, got %q", cfg.Trigger)
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("relay: BotConfig.Resolver is required")
	}
	if cfg.Tables == nil {
		return nil, fmt.Errorf("relay: BotConfig.Tables is required")
	}
	if cfg.Send == nil {
		return nil, fmt.Errorf("relay: BotConfig.Send is required")
	}

	maxDigits := cfg.MaxKeyDigits
	if maxDigits == 0 {
		maxDigits = 5
	}
	timeout := cfg.DispatchTimeout
	if timeout == 0 {
		timeout = defaultDispatchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	history := NewHistory(cfg.HistorySize, tracker.KeyPattern(maxDigits))

	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, nick := range cfg.Admins {
		admins[nick] = struct{}{}
	}

	help := &helpCommand{}
	router, err := NewRouter(logger, cfg.IgnoredCommands,
		help,
		&issueCommand{
			history:  history,
			resolver: cfg.Resolver,
			exactKey: tracker.ExactKeyPattern(maxDigits),
		},
		&keyCommand{tables: cfg.Tables},
		&topicCommand{tables: cfg.Tables},
		&reloadCommand{tables: cfg.Tables, admins: admins},
	)
	if err != nil {
		return nil, err
	}
	help.router = router

	return &Bot{
		trigger: cfg.Trigger,
		router:  router,
		history: history,
		send:    cfg.Send,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// History exposes the recent-key history, mainly for tests.
func (b *Bot) History() *History { return b.history }

// HandleMessage routes one inbound chat message: trigger-prefixed
// messages go to the command router on a fresh goroutine, everything
// else public feeds the recent-key history.
func (b *Bot) HandleMessage(msg chat.Message) {
	prefix, arg, isCommand := b.parseInvocation(msg.Text)
	if !isCommand {
		if msg.Public() {
			b.history.Observe(msg.Text)
		}
		return
	}

	go b.dispatch(prefix, arg, msg)
}

// dispatch runs one command invocation to completion and delivers the
// reply to the channel the message came from, or to the sender for a
// private message.
func (b *Bot) dispatch(prefix, arg string, msg chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reply := b.router.Dispatch(ctx, prefix, Call{
		Arg:        arg,
		Sender:     msg.Sender,
		Identified: msg.Identified,
	})
	if reply == "" {
		return
	}

	if err := b.send(msg.ReplyTarget(), reply); err != nil {
		b.logger.Warn("reply delivery failed",
			"target", msg.ReplyTarget(),
			"error", err,
		)
	}
}

// parseInvocation splits "!cmd arg text" into its prefix and argument.
// The trigger must be immediately followed by the command token; a
// bare trigger or "! cmd" is ordinary chatter.
func (b *Bot) parseInvocation(text string) (prefix, arg string, ok bool) {
	if !strings.HasPrefix(text, b.trigger) {
		return "", "", false
	}
	rest := text[len(b.trigger):]
	if rest == "" || rest[0] == ' ' {
		return "", "", false
	}
	prefix, arg, _ = strings.Cut(rest, " ")
	return prefix, strings.TrimSpace(arg), true
}
