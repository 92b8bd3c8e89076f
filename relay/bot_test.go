// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/chat"
	"github.com/chatrelay/chatrelay/lib/testutil"
)

const botTestTimeout = 5 * time.Second

type capturedReply struct {
	target string
	text   string
}

func newTestBot(t *testing.T, descriptions map[string]string, extra func(*BotConfig)) (*Bot, chan capturedReply) {
	t.Helper()
	replies := make(chan capturedReply, 16)
	cfg := BotConfig{
		Trigger:  "!",
		Resolver: &fakeDescriber{descriptions: descriptions},
		Tables:   loadedTestTables(t),
		Send: func(target, text string) error {
			replies <- capturedReply{target: target, text: text}
			return nil
		},
		Logger: testLogger(),
	}
	if extra != nil {
		extra(&cfg)
	}
	bot, err := NewBot(cfg)
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot, replies
}

func TestBotDispatchesPrefixedCommand(t *testing.T) {
	bot, replies := newTestBot(t, map[string]string{"ZBX-1234": "the description"}, nil)

	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "!iss ZBX-1234"})

	reply := testutil.RequireReceive(t, replies, botTestTimeout, "command reply")
	if reply.target != "#ops" {
		t.Errorf("reply target = %q, want the channel", reply.target)
	}
	if reply.text != "the description" {
		t.Errorf("reply = %q", reply.text)
	}
}

func TestBotRepliesPrivatelyToPrivateMessages(t *testing.T) {
	bot, replies := newTestBot(t, nil, nil)

	bot.HandleMessage(chat.Message{Sender: "bob", Target: "relay", Text: "!help"})

	reply := testutil.RequireReceive(t, replies, botTestTimeout, "help reply")
	if reply.target != "bob" {
		t.Errorf("reply target = %q, want the sender", reply.target)
	}
}

func TestBotIgnoredCommandGetsNoReply(t *testing.T) {
	bot, replies := newTestBot(t, nil, func(cfg *BotConfig) {
		cfg.IgnoredCommands = []string{"karma"}
	})

	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "!karma bob++"})

	testutil.RequireNoReceive(t, replies, 100*time.Millisecond, "reply to a foreign command")
}

func TestBotScansNonCommandMessagesIntoHistory(t *testing.T) {
	bot, replies := newTestBot(t, map[string]string{"ZBX-77": "seen in chatter"}, nil)

	bot.HandleMessage(chat.Message{Sender: "carol", Target: "#ops", Text: "deploy broke zbx-77 again"})
	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "!issue"})

	reply := testutil.RequireReceive(t, replies, botTestTimeout, "back-reference reply")
	if reply.text != "seen in chatter" {
		t.Errorf("reply = %q", reply.text)
	}
}

func TestBotDoesNotScanCommandInvocations(t *testing.T) {
	bot, _ := newTestBot(t, map[string]string{"ZBX-1": "x"}, nil)

	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "!issue ZBX-1"})

	// The key inside the command argument is not channel chatter.
	if bot.History().Len() != 0 {
		t.Errorf("history length = %d, want 0", bot.History().Len())
	}
}

func TestBotDoesNotScanPrivateMessages(t *testing.T) {
	bot, _ := newTestBot(t, nil, nil)

	bot.HandleMessage(chat.Message{Sender: "bob", Target: "relay", Text: "psst ZBX-9"})

	if bot.History().Len() != 0 {
		t.Errorf("history length = %d, want 0", bot.History().Len())
	}
}

func TestBotBareTriggerIsChatter(t *testing.T) {
	bot, replies := newTestBot(t, nil, nil)

	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "!"})
	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "! issue ZBX-5"})

	testutil.RequireNoReceive(t, replies, 100*time.Millisecond, "reply to non-commands")
	// "! issue ZBX-5" is ordinary chatter, so its key was scanned.
	if got, _ := bot.History().Nth(1); got != "ZBX-5" {
		t.Errorf("Nth(1) = %q, want ZBX-5", got)
	}
}

func TestBotHistoryIndexErrorMessage(t *testing.T) {
	bot, replies := newTestBot(t, nil, nil)

	bot.HandleMessage(chat.Message{Sender: "alice", Target: "#ops", Text: "!issue 999"})

	reply := testutil.RequireReceive(t, replies, botTestTimeout, "error reply")
	if reply.text != "ERROR: issue 999 does not exist in chat history" {
		t.Errorf("reply = %q", reply.text)
	}
}
