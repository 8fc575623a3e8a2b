package config

import (
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type AuthMode string

const (
	AuthToken AuthMode = "token"
	AuthOAuth AuthMode = "oauth"
)

type Backend string

const (
	BackendFoundry Backend = "foundry"
	BackendOpenAI  Backend = "openai"
)

type Config struct {
	// Agent platform
	Hostname     string   `env:"HOSTNAME"`
	BearerToken  string   `env:"BEARER_TOKEN"`
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	AuthMode     AuthMode `env:"AUTH_MODE" envDefault:"token"`
	Backend      Backend  `env:"AGENT_BACKEND" envDefault:"foundry"`

	// Default agent reference for new conversations (operators may override it per conversation)
	AgentRID       string        `env:"AIP_AGENT_RID"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`

	// Local OpenAI-compatible backend
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Front-ends
	WebAddr          string  `env:"WEB_ADDR" envDefault:":8080"`
	MCPHTTPAddr      string  `env:"MCP_HTTP_ADDR"`
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AdminUserID      int64   `env:"ADMIN_USER"`

	// Storage
	LogFilePath       string `env:"LOG_FILE_PATH" envDefault:"logs/turns.jsonl"`
	AllowlistFilePath string `env:"ALLOWLIST_FILE_PATH" envDefault:"data/allowlist.json"`
	PendingFilePath   string `env:"PENDING_FILE_PATH" envDefault:"data/pending.json"`

	// Session housekeeping
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`
	SweepSchedule  string        `env:"SWEEP_SCHEDULE" envDefault:"@every 10m"`
}

// MissingError lists every required variable that was not set.
type MissingError struct {
	For     string
	Missing []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing configuration for %s: %s", e.For, strings.Join(e.Missing, ", "))
}

// Parse reads the environment into a Config without validating it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// New parses and validates the environment, exiting on failure.
func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

// Validate checks the values needed by the selected backend and auth mode.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFoundry:
		switch c.AuthMode {
		case AuthToken, AuthOAuth:
		default:
			return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
		}
		return c.RequireAuth(c.AuthMode)
	case BackendOpenAI:
		return c.RequireOpenAI()
	default:
		return fmt.Errorf("unknown AGENT_BACKEND %q", c.Backend)
	}
}

// RequireAuth reports the variables the given auth mode needs but does not have.
func (c *Config) RequireAuth(mode AuthMode) error {
	switch mode {
	case AuthToken:
		return require("token auth", map[string]string{
			"HOSTNAME":     c.Hostname,
			"BEARER_TOKEN": c.BearerToken,
		})
	case AuthOAuth:
		return require("oauth auth", map[string]string{
			"HOSTNAME":      c.Hostname,
			"CLIENT_ID":     c.ClientID,
			"CLIENT_SECRET": c.ClientSecret,
		})
	default:
		return fmt.Errorf("unknown auth mode %q", mode)
	}
}

// RequireOpenAI checks the local OpenAI-compatible backend settings.
func (c *Config) RequireOpenAI() error {
	return require("openai backend", map[string]string{"OPENAI_API_KEY": c.OpenAIAPIKey})
}

// RequireTelegram checks the settings only the telegram front-end uses.
func (c *Config) RequireTelegram() error {
	return require("telegram", map[string]string{"TELEGRAM_BOT_TOKEN": c.TelegramBotToken})
}

func require(what string, values map[string]string) error {
	var missing []string
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{For: what, Missing: missing}
}
