// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Reconnect policy selection for the chat session.
const (
	// ReconnectSelf makes the session schedule its own redial after a
	// fixed back-off delay.
	ReconnectSelf = "self"
	// ReconnectSupervised makes the session return on disconnect and
	// leaves redialing to the supervising run loop.
	ReconnectSupervised = "supervised"
)

// Duration is a time.Duration that decodes from YAML duration syntax
// ("60s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for the chatrelay bot.
type Config struct {
	// Chat configures the chat transport and session behavior.
	Chat ChatConfig `yaml:"chat"`

	// Tracker configures the issue-tracker REST endpoint.
	Tracker TrackerConfig `yaml:"tracker"`

	// Webhook configures the tracker-event HTTP listener.
	Webhook WebhookConfig `yaml:"webhook"`

	// Data locates the on-disk topic/keyword/item-key tables.
	Data DataConfig `yaml:"data"`
}

// ChatConfig configures the chat connection and command handling.
type ChatConfig struct {
	// Server is the chat server hostname.
	Server string `yaml:"server"`

	// Port is the chat server TCP port.
	Port int `yaml:"port"`

	// Nick is the bot's nickname on the network.
	Nick string `yaml:"nick"`

	// User is the bot's username for registration.
	User string `yaml:"user"`

	// RealName is the bot's real-name field for registration.
	RealName string `yaml:"real_name"`

	// Channel is the channel the bot joins and announces webhook
	// events into.
	Channel string `yaml:"channel"`

	// Trigger is the single character that prefixes commands.
	Trigger string `yaml:"trigger"`

	// IgnoredCommands are command names owned by other bots sharing
	// the channel. Messages invoking them are dropped without reply.
	IgnoredCommands []string `yaml:"ignored_commands"`

	// Admins are the nicks allowed to run the reload command. The
	// transport's identified flag is required in addition.
	Admins []string `yaml:"admins"`

	// ReconnectMode is "self" or "supervised".
	ReconnectMode string `yaml:"reconnect_mode"`

	// ReconnectDelay is the back-off before redialing in self mode.
	ReconnectDelay Duration `yaml:"reconnect_delay"`

	// KeepaliveInterval is how often the session checks for inbound
	// traffic and probes the link when none was seen. Self mode only.
	KeepaliveInterval Duration `yaml:"keepalive_interval"`
}

// TrackerConfig configures the issue tracker.
type TrackerConfig struct {
	// URL is the tracker base URL, e.g. "https://tracker.example.com".
	URL string `yaml:"url"`

	// Projects is the allow-list of project prefixes the webhook
	// bridge announces (e.g. ["ZBX", "OPS"]).
	Projects []string `yaml:"projects"`

	// MaxKeyDigits bounds the numeric part of a tracker key. The
	// digit bound varied historically between 4 and 5, so it is
	// configuration rather than a constant.
	MaxKeyDigits int `yaml:"max_key_digits"`
}

// WebhookConfig configures the webhook HTTP listener.
type WebhookConfig struct {
	// Address is the TCP listen address, e.g. ":8065".
	Address string `yaml:"address"`

	// Path is the URL path the tracker posts events to.
	Path string `yaml:"path"`
}

// DataConfig locates the JSONC data tables. Paths may contain
// ${VAR} or ${VAR:-default} references, expanded at load time.
type DataConfig struct {
	// Topics maps topic names to reply text.
	Topics string `yaml:"topics"`

	// Keywords maps aliases to topic names.
	Keywords string `yaml:"keywords"`

	// Keys maps item-key names to descriptions.
	Keys string `yaml:"keys"`
}

// Default returns a Config with development defaults. Server, channel,
// tracker URL, and data paths still have to be supplied.
func Default() Config {
	return Config{
		Chat: ChatConfig{
			Port:              6667,
			Nick:              "chatrelay",
			User:              "chatrelay",
			RealName:          "chatrelay bot",
			Trigger:           "!",
			ReconnectMode:     ReconnectSelf,
			ReconnectDelay:    Duration(60 * time.Second),
			KeepaliveInterval: Duration(300 * time.Second),
		},
		Tracker: TrackerConfig{
			MaxKeyDigits: 5,
		},
		Webhook: WebhookConfig{
			Address: ":8065",
			Path:    "/webhook",
		},
	}
}

// Load reads the config file named by the CHATRELAY_CONFIG environment
// variable. There is no fallback discovery: an unset variable is an
// error.
func Load() (Config, error) {
	path := os.Getenv("CHATRELAY_CONFIG")
	if path == "" {
		return Config{}, fmt.Errorf("config: CHATRELAY_CONFIG is not set")
	}
	return LoadFile(path)
}

// LoadFile reads and validates the config file at path. Values start
// from Default(), so the file only needs to name what differs.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.Data.Topics = expandVars(cfg.Data.Topics)
	cfg.Data.Keywords = expandVars(cfg.Data.Keywords)
	cfg.Data.Keys = expandVars(cfg.Data.Keys)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Chat.Server == "" {
		return fmt.Errorf("chat.server is required")
	}
	if c.Chat.Port <= 0 || c.Chat.Port > 65535 {
		return fmt.Errorf("chat.port %d out of range", c.Chat.Port)
	}
	if c.Chat.Nick == "" {
		return fmt.Errorf("chat.nick is required")
	}
	if c.Chat.Channel == "" {
		return fmt.Errorf("chat.channel is required")
	}
	if len(c.Chat.Trigger) != 1 {
		return fmt.Errorf("chat.trigger must be a single character, got %q", c.Chat.Trigger)
	}
	switch c.Chat.ReconnectMode {
	case ReconnectSelf, ReconnectSupervised:
	default:
		return fmt.Errorf("chat.reconnect_mode must be %q or %q, got %q",
			ReconnectSelf, ReconnectSupervised, c.Chat.ReconnectMode)
	}
	if c.Chat.ReconnectDelay <= 0 {
		return fmt.Errorf("chat.reconnect_delay must be positive")
	}
	if c.Chat.KeepaliveInterval <= 0 {
		return fmt.Errorf("chat.keepalive_interval must be positive")
	}
	if c.Tracker.URL == "" {
		return fmt.Errorf("tracker.url is required")
	}
	if c.Tracker.MaxKeyDigits < 1 || c.Tracker.MaxKeyDigits > 9 {
		return fmt.Errorf("tracker.max_key_digits %d out of range [1,9]", c.Tracker.MaxKeyDigits)
	}
	if c.Webhook.Path == "" || !strings.HasPrefix(c.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with /, got %q", c.Webhook.Path)
	}
	return nil
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} references against
// the process environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := varPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[2]
	})
}
