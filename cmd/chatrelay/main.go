// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

// chatrelay bridges an IRC-style channel with an issue tracker: it
// answers prefixed commands in the channel (issue lookups, topic and
// item-key reference), and announces tracker-created issues pushed to
// its webhook endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/chatrelay/chatrelay/chat"
	"github.com/chatrelay/chatrelay/lib/config"
	"github.com/chatrelay/chatrelay/lib/version"
	"github.com/chatrelay/chatrelay/relay"
	"github.com/chatrelay/chatrelay/tracker"
	"github.com/chatrelay/chatrelay/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("chatrelay", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "config file path (overrides CHATRELAY_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println("chatrelay", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Data tables first: a missing or malformed table file fails
	// startup, only the reload command tolerates errors later.
	tables, err := relay.LoadTables(relay.TablePaths{
		Topics:   cfg.Data.Topics,
		Keywords: cfg.Data.Keywords,
		Keys:     cfg.Data.Keys,
	}, logger)
	if err != nil {
		return err
	}

	client, err := tracker.NewClient(tracker.ClientConfig{
		BaseURL: cfg.Tracker.URL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	resolver := tracker.NewResolver(client, logger)

	policy := chat.ReconnectSelfManaged
	if cfg.Chat.ReconnectMode == config.ReconnectSupervised {
		policy = chat.ReconnectSupervised
	}

	// The bot sends through the session and the session delivers
	// messages to the bot; the send closure breaks the construction
	// cycle. No message arrives before Run, so the late binding is
	// safe.
	var session *chat.Session

	bot, err := relay.NewBot(relay.BotConfig{
		Trigger:         cfg.Chat.Trigger,
		IgnoredCommands: cfg.Chat.IgnoredCommands,
		Admins:          cfg.Chat.Admins,
		MaxKeyDigits:    cfg.Tracker.MaxKeyDigits,
		Resolver:        resolver,
		Tables:          tables,
		Send: func(target, text string) error {
			return session.Send(target, text)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	session, err = chat.NewSession(chat.SessionConfig{
		Dialer: &chat.LineDialer{
			Address: net.JoinHostPort(cfg.Chat.Server, strconv.Itoa(cfg.Chat.Port)),
			Logger:  logger,
		},
		Nick:              cfg.Chat.Nick,
		User:              cfg.Chat.User,
		RealName:          cfg.Chat.RealName,
		Channel:           cfg.Chat.Channel,
		Policy:            policy,
		ReconnectDelay:    cfg.Chat.ReconnectDelay.Std(),
		KeepaliveInterval: cfg.Chat.KeepaliveInterval.Std(),
		Logger:            logger,
		OnMessage:         bot.HandleMessage,
	})
	if err != nil {
		return err
	}

	bridge := webhook.NewBridge(webhook.BridgeConfig{
		Channel:  cfg.Chat.Channel,
		Projects: cfg.Tracker.Projects,
		Linker:   client,
		Send:     session.Send,
		Logger:   logger,
	})
	httpServer := webhook.NewServer(webhook.ServerConfig{
		Address: cfg.Webhook.Address,
		Path:    cfg.Webhook.Path,
		Bridge:  bridge,
		Logger:  logger,
	})

	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	select {
	case <-httpServer.Ready():
		logger.Info("webhook listener ready", "address", httpServer.Addr().String())
	case err := <-httpDone:
		// Serve failed before the listener was bound (address in
		// use, bad address); Ready never closes in that case.
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Info("chatrelay starting",
		"version", version.Info(),
		"server", cfg.Chat.Server,
		"channel", cfg.Chat.Channel,
		"reconnect_mode", cfg.Chat.ReconnectMode,
	)

	sessionErr := runSession(ctx, session, cfg, logger)

	stop()
	if err := <-httpDone; err != nil {
		logger.Error("webhook server error", "error", err)
	}

	if sessionErr != nil && ctx.Err() == nil {
		return sessionErr
	}
	return nil
}

// runSession drives the chat session until the context is cancelled.
// In supervised mode this loop is the supervisor: the session returns
// after each disconnect and is redialed here after the back-off delay.
func runSession(ctx context.Context, session *chat.Session, cfg config.Config, logger *slog.Logger) error {
	if cfg.Chat.ReconnectMode != config.ReconnectSupervised {
		return session.Run(ctx)
	}

	for {
		err := session.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Info("supervised session ended, redialing",
			"delay", cfg.Chat.ReconnectDelay.Std(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Chat.ReconnectDelay.Std()):
		}
	}
}
