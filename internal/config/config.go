// ABOUTME: Configuration loading and parsing for handoff-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete handoff-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Handoff  HandoffConfig  `yaml:"handoff"`
	Bot      BotConfig      `yaml:"bot"`
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HandoffConfig holds escalation and SLA timing configuration
type HandoffConfig struct {
	// ResponseTimeoutSeconds is the stage-1 SLA duration: how long a user may
	// wait for an agent (or an agent reply) before the waiting message fires.
	ResponseTimeoutSeconds int `yaml:"response_timeout_seconds"`

	// RedirectTimeoutMultiplier scales stage 1 into the stage-2 deadline that
	// redirects the conversation back to the bot.
	RedirectTimeoutMultiplier float64 `yaml:"redirect_timeout_multiplier"`

	// WaitingMessage is sent to the user at stage 1.
	WaitingMessage string `yaml:"waiting_message"`

	// TransferMessage confirms to the user that a human will take over.
	TransferMessage string `yaml:"transfer_message"`

	// TriggerPhrases escalate a conversation when found in a bot reply.
	TriggerPhrases []string `yaml:"trigger_phrases"`

	// InactivityTimeout completes conversations with no activity. Default 24h.
	InactivityTimeout    time.Duration `yaml:"-"`
	InactivityTimeoutRaw string        `yaml:"inactivity_timeout"`

	// SweepSchedule is a 5-field cron expression for the inactivity sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// BotConfig holds bot-platform session configuration
type BotConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// TokenTTL controls how long a fetched session token is reused.
	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// TelegramConfig holds the Telegram channel adapter configuration
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default values applied when the file leaves fields unset.
const (
	defaultResponseTimeoutSeconds = 60
	defaultRedirectMultiplier     = 2.0
	defaultInactivityTimeout      = 24 * time.Hour
	defaultTokenTTL               = 55 * time.Minute
	defaultSweepSchedule          = "*/10 * * * *"
	defaultWaitingMessage         = "Todos nuestros agentes están ocupados. Un momento por favor."
	defaultTransferMessage        = "Te transferimos con un agente. En breve te atenderá una persona."
)

// DefaultTriggerPhrases is the built-in escalation phrase list, used when the
// config file does not provide one.
var DefaultTriggerPhrases = []string{
	"hablar con un agente",
	"hablar con una persona",
	"transferir con un agente",
	"no puedo ayudarte con eso",
	"un agente se pondrá en contacto",
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their default values.
func (c *Config) applyDefaults() {
	if c.Handoff.ResponseTimeoutSeconds == 0 {
		c.Handoff.ResponseTimeoutSeconds = defaultResponseTimeoutSeconds
	}
	if c.Handoff.RedirectTimeoutMultiplier == 0 {
		c.Handoff.RedirectTimeoutMultiplier = defaultRedirectMultiplier
	}
	if c.Handoff.InactivityTimeout == 0 {
		c.Handoff.InactivityTimeout = defaultInactivityTimeout
	}
	if c.Handoff.SweepSchedule == "" {
		c.Handoff.SweepSchedule = defaultSweepSchedule
	}
	if c.Handoff.WaitingMessage == "" {
		c.Handoff.WaitingMessage = defaultWaitingMessage
	}
	if c.Handoff.TransferMessage == "" {
		c.Handoff.TransferMessage = defaultTransferMessage
	}
	if len(c.Handoff.TriggerPhrases) == 0 {
		c.Handoff.TriggerPhrases = append([]string(nil), DefaultTriggerPhrases...)
	}
	if c.Bot.TokenTTL == 0 {
		c.Bot.TokenTTL = defaultTokenTTL
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Handoff.ResponseTimeoutSeconds < 0 {
		return fmt.Errorf("handoff.response_timeout_seconds must not be negative")
	}
	if c.Handoff.RedirectTimeoutMultiplier < 1 {
		return fmt.Errorf("handoff.redirect_timeout_multiplier must be at least 1")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}
	return nil
}

// ResponseTimeout returns the stage-1 SLA duration.
func (c *HandoffConfig) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutSeconds) * time.Second
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Handoff.InactivityTimeoutRaw != "" {
		cfg.Handoff.InactivityTimeout, err = time.ParseDuration(cfg.Handoff.InactivityTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing inactivity_timeout %q: %w", cfg.Handoff.InactivityTimeoutRaw, err)
		}
	}

	if cfg.Bot.TokenTTLRaw != "" {
		cfg.Bot.TokenTTL, err = time.ParseDuration(cfg.Bot.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Bot.TokenTTLRaw, err)
		}
	}

	return nil
}
